// Package contextstore implements the workflow context store (C2): a
// read-through in-memory tier over an authoritative document store,
// partitioned by workflow_id, with TTL and degrade-to-memory-only behavior
// when the document store is unavailable.
package contextstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
)

// StepResult is one entry of a workflow's append-only step log.
type StepResult struct {
	StepID    string         `json:"step_id" bson:"step_id"`
	AgentID   string         `json:"agent_id" bson:"agent_id"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	Result    map[string]any `json:"result" bson:"result"`
}

// AgentContext is the per-agent sub-context stored within a workflow.
type AgentContext struct {
	AgentID   string         `json:"agent_id" bson:"agent_id"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
	Data      map[string]any `json:"data" bson:"data"`
}

// Metadata tracks workflow progress.
type Metadata struct {
	Status      string `json:"status" bson:"status"`
	CurrentStep int    `json:"current_step" bson:"current_step"`
	TotalSteps  int    `json:"total_steps" bson:"total_steps"`
}

// WorkflowContext is the full document stored per workflow_id.
type WorkflowContext struct {
	ID            string                  `json:"id" bson:"_id"`
	WorkflowID    string                  `json:"workflow_id" bson:"workflow_id"`
	CreatedAt     time.Time               `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at" bson:"updated_at"`
	TTLSeconds    int                     `json:"ttl_seconds" bson:"ttl_seconds"`
	SharedData    map[string]any          `json:"shared_data" bson:"shared_data"`
	AgentContexts map[string]AgentContext `json:"agent_contexts" bson:"agent_contexts"`
	StepResults   []StepResult            `json:"step_results" bson:"step_results"`
	Metadata      Metadata                `json:"metadata" bson:"metadata"`
}

func (w *WorkflowContext) expired(now time.Time) bool {
	if w.TTLSeconds <= 0 {
		return false
	}
	return now.After(w.UpdatedAt.Add(time.Duration(w.TTLSeconds) * time.Second))
}

// DocumentStore is the authoritative, durable backend partitioned by
// workflow_id. Implementations (e.g. pkg/contextstore/mongo) must honor TTL
// natively where the backend supports it.
type DocumentStore interface {
	Upsert(ctx context.Context, w WorkflowContext) error
	Get(ctx context.Context, workflowID string) (WorkflowContext, bool, error)
	Delete(ctx context.Context, workflowID string) error
}

// Store is the read-through context store. The zero value is not usable;
// construct with New.
type Store struct {
	mu       sync.RWMutex
	cache    map[string]WorkflowContext
	doc      DocumentStore
	docAlive bool
	logger   telemetry.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDocumentStore attaches a durable backend. Without one, the store
// degrades to memory-only (matching the source's "no Cosmos configured"
// fallback).
func WithDocumentStore(d DocumentStore) Option { return func(s *Store) { s.doc = d } }

func WithLogger(l telemetry.Logger) Option { return func(s *Store) { s.logger = l } }

// New constructs a Store.
func New(opts ...Option) *Store {
	s := &Store{
		cache:  make(map[string]WorkflowContext),
		logger: telemetry.NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.docAlive = s.doc != nil
	return s
}

// Create creates a new workflow context, durably persisting it (if a
// document store is configured) before placing it in the memory tier.
func (s *Store) Create(ctx context.Context, workflowID string, initialData map[string]any, ttlSeconds int) (WorkflowContext, error) {
	now := time.Now().UTC()
	if initialData == nil {
		initialData = map[string]any{}
	}
	w := WorkflowContext{
		ID:            workflowID,
		WorkflowID:    workflowID,
		CreatedAt:     now,
		UpdatedAt:     now,
		TTLSeconds:    ttlSeconds,
		SharedData:    initialData,
		AgentContexts: map[string]AgentContext{},
		StepResults:   []StepResult{},
		Metadata:      Metadata{Status: "created"},
	}
	s.persist(ctx, w)
	return w, nil
}

// Get returns a workflow context: memory tier first, then the document
// store on a cache miss. Expired entries are treated as not found.
func (s *Store) Get(ctx context.Context, workflowID string) (WorkflowContext, bool) {
	s.mu.RLock()
	w, ok := s.cache[workflowID]
	s.mu.RUnlock()
	if ok {
		if w.expired(time.Now().UTC()) {
			s.mu.Lock()
			delete(s.cache, workflowID)
			s.mu.Unlock()
			return WorkflowContext{}, false
		}
		return w, true
	}

	if s.doc == nil {
		return WorkflowContext{}, false
	}

	w, found, err := s.doc.Get(ctx, workflowID)
	if err != nil {
		s.logger.Error(ctx, "document store read failed, treating as miss", "workflow_id", workflowID, "err", err)
		s.markDocUnavailable()
		return WorkflowContext{}, false
	}
	if !found || w.expired(time.Now().UTC()) {
		return WorkflowContext{}, false
	}

	s.mu.Lock()
	s.cache[workflowID] = w
	s.mu.Unlock()
	return w, true
}

// Update applies a patch to a workflow context: shared_data is
// shallow-merged, and metadata's status, current_step and total_steps
// (as Go int) are merged. Every other patch key is ignored; it does not
// replace any field of the context.
func (s *Store) Update(ctx context.Context, workflowID string, patch map[string]any) bool {
	w, ok := s.Get(ctx, workflowID)
	if !ok {
		s.logger.Error(ctx, "update: workflow context not found", "workflow_id", workflowID)
		return false
	}

	for key, value := range patch {
		switch key {
		case "shared_data":
			m, ok := value.(map[string]any)
			if !ok {
				continue
			}
			for k, v := range m {
				w.SharedData[k] = v
			}
		case "metadata":
			m, ok := value.(map[string]any)
			if !ok {
				continue
			}
			if status, ok := m["status"].(string); ok {
				w.Metadata.Status = status
			}
			if step, ok := m["current_step"].(int); ok {
				w.Metadata.CurrentStep = step
			}
			if total, ok := m["total_steps"].(int); ok {
				w.Metadata.TotalSteps = total
			}
		}
	}

	w.UpdatedAt = time.Now().UTC()
	s.persist(ctx, w)
	return true
}

// SetContextValue sets a single key in shared_data.
func (s *Store) SetContextValue(ctx context.Context, workflowID, key string, value any) bool {
	return s.Update(ctx, workflowID, map[string]any{"shared_data": map[string]any{key: value}})
}

// GetContextValue reads a single key from shared_data, returning fallback
// when the workflow or key is absent.
func (s *Store) GetContextValue(ctx context.Context, workflowID, key string, fallback any) any {
	w, ok := s.Get(ctx, workflowID)
	if !ok {
		return fallback
	}
	if v, ok := w.SharedData[key]; ok {
		return v
	}
	return fallback
}

// SetAgentContext records an agent's sub-context within a workflow.
func (s *Store) SetAgentContext(ctx context.Context, workflowID, agentID string, data map[string]any) bool {
	w, ok := s.Get(ctx, workflowID)
	if !ok {
		s.logger.Error(ctx, "set agent context: workflow not found", "workflow_id", workflowID)
		return false
	}
	w.AgentContexts[agentID] = AgentContext{AgentID: agentID, UpdatedAt: time.Now().UTC(), Data: data}
	w.UpdatedAt = time.Now().UTC()
	s.persist(ctx, w)
	return true
}

// GetAgentContext returns the data set by SetAgentContext for agentID.
func (s *Store) GetAgentContext(ctx context.Context, workflowID, agentID string) (map[string]any, bool) {
	w, ok := s.Get(ctx, workflowID)
	if !ok {
		return nil, false
	}
	ac, ok := w.AgentContexts[agentID]
	if !ok {
		return nil, false
	}
	return ac.Data, true
}

// AddStepResult appends a step result, keeping metadata.current_step equal
// to len(step_results).
func (s *Store) AddStepResult(ctx context.Context, workflowID, stepID, agentID string, result map[string]any) bool {
	w, ok := s.Get(ctx, workflowID)
	if !ok {
		s.logger.Error(ctx, "add step result: workflow not found", "workflow_id", workflowID)
		return false
	}
	w.StepResults = append(w.StepResults, StepResult{
		StepID:    stepID,
		AgentID:   agentID,
		Timestamp: time.Now().UTC(),
		Result:    result,
	})
	w.Metadata.CurrentStep = len(w.StepResults)
	w.UpdatedAt = time.Now().UTC()
	s.persist(ctx, w)
	return true
}

// GetStepResults returns step results, optionally filtered by agentID.
func (s *Store) GetStepResults(ctx context.Context, workflowID, agentID string) []StepResult {
	w, ok := s.Get(ctx, workflowID)
	if !ok {
		return nil
	}
	if agentID == "" {
		return w.StepResults
	}
	out := make([]StepResult, 0, len(w.StepResults))
	for _, r := range w.StepResults {
		if r.AgentID == agentID {
			out = append(out, r)
		}
	}
	return out
}

// Delete removes a workflow context from both tiers.
func (s *Store) Delete(ctx context.Context, workflowID string) bool {
	if s.doc != nil {
		if err := s.doc.Delete(ctx, workflowID); err != nil {
			s.logger.Error(ctx, "document store delete failed", "workflow_id", workflowID, "err", err)
			s.markDocUnavailable()
			return false
		}
	}
	s.mu.Lock()
	delete(s.cache, workflowID)
	s.mu.Unlock()
	return true
}

// Stats reports context store occupancy and backend health.
type Stats struct {
	CachedContexts  int
	DocumentBacked  bool
	StorageBackend  string
}

// Stats returns current store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	backend := "memory_only"
	if s.doc != nil && s.docAlive {
		backend = "document_store"
	}
	return Stats{
		CachedContexts: len(s.cache),
		DocumentBacked: s.doc != nil && s.docAlive,
		StorageBackend: backend,
	}
}

// NewWorkflowID generates a fresh workflow identifier.
func NewWorkflowID() string { return uuid.NewString() }

// persist writes w to the document store (if configured and reachable)
// first, then updates the memory tier — document-store-first so memory
// is never fresher than durable state. Write failures degrade to
// memory-only rather than propagating, matching the "never throw from
// write paths" contract.
func (s *Store) persist(ctx context.Context, w WorkflowContext) {
	if s.doc != nil {
		if err := s.doc.Upsert(ctx, w); err != nil {
			s.logger.Error(ctx, "document store write failed, degrading to memory-only", "workflow_id", w.WorkflowID, "err", err)
			s.markDocUnavailable()
		} else {
			s.markDocAvailable()
		}
	}
	s.mu.Lock()
	s.cache[w.WorkflowID] = w
	s.mu.Unlock()
}

func (s *Store) markDocUnavailable() {
	s.mu.Lock()
	s.docAlive = false
	s.mu.Unlock()
}

func (s *Store) markDocAvailable() {
	s.mu.Lock()
	s.docAlive = true
	s.mu.Unlock()
}
