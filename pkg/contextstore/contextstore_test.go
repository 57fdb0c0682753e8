package contextstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// fakeDocStore is an in-memory stand-in for a durable backend, used to
// verify document-store-first write ordering and degrade-on-failure
// behavior without a real database.
type fakeDocStore struct {
	mu      sync.Mutex
	docs    map[string]contextstore.WorkflowContext
	failing bool
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[string]contextstore.WorkflowContext)}
}

func (f *fakeDocStore) Upsert(_ context.Context, w contextstore.WorkflowContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return assert.AnError
	}
	f.docs[w.WorkflowID] = w
	return nil
}

func (f *fakeDocStore) Get(_ context.Context, workflowID string) (contextstore.WorkflowContext, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return contextstore.WorkflowContext{}, false, assert.AnError
	}
	w, ok := f.docs[workflowID]
	return w, ok, nil
}

func (f *fakeDocStore) Delete(_ context.Context, workflowID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, workflowID)
	return nil
}

func TestCreateAndGet(t *testing.T) {
	s := contextstore.New()
	ctx := context.Background()

	w, err := s.Create(ctx, "wf-1", map[string]any{"a": 1}, 3600)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", w.WorkflowID)

	got, ok := s.Get(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, 1, got.SharedData["a"])
}

func TestUpdateSharedDataShallowMerges(t *testing.T) {
	s := contextstore.New()
	ctx := context.Background()
	s.Create(ctx, "wf-1", map[string]any{"a": 1}, 0)

	ok := s.Update(ctx, "wf-1", map[string]any{"shared_data": map[string]any{"b": 2}})
	require.True(t, ok)

	w, _ := s.Get(ctx, "wf-1")
	assert.Equal(t, 1, w.SharedData["a"])
	assert.Equal(t, 2, w.SharedData["b"])
}

func TestAddStepResultKeepsCurrentStepInSync(t *testing.T) {
	s := contextstore.New()
	ctx := context.Background()
	s.Create(ctx, "wf-1", nil, 0)

	require.True(t, s.AddStepResult(ctx, "wf-1", "step-1", "agent-a", map[string]any{"ok": true}))
	require.True(t, s.AddStepResult(ctx, "wf-1", "step-2", "agent-b", map[string]any{"ok": true}))

	w, _ := s.Get(ctx, "wf-1")
	assert.Equal(t, 2, w.Metadata.CurrentStep)
	assert.Len(t, w.StepResults, 2)
	assert.Equal(t, "step-1", w.StepResults[0].StepID, "step order is append order")
}

func TestGetStepResultsFiltersByAgent(t *testing.T) {
	s := contextstore.New()
	ctx := context.Background()
	s.Create(ctx, "wf-1", nil, 0)
	s.AddStepResult(ctx, "wf-1", "step-1", "agent-a", map[string]any{})
	s.AddStepResult(ctx, "wf-1", "step-2", "agent-b", map[string]any{})

	results := s.GetStepResults(ctx, "wf-1", "agent-a")
	require.Len(t, results, 1)
	assert.Equal(t, "step-1", results[0].StepID)
}

func TestSetAndGetAgentContext(t *testing.T) {
	s := contextstore.New()
	ctx := context.Background()
	s.Create(ctx, "wf-1", nil, 0)

	require.True(t, s.SetAgentContext(ctx, "wf-1", "agent-a", map[string]any{"phase": "triage"}))

	data, ok := s.GetAgentContext(ctx, "wf-1", "agent-a")
	require.True(t, ok)
	assert.Equal(t, "triage", data["phase"])
}

func TestTTLExpiryTreatsEntryAsMissing(t *testing.T) {
	s := contextstore.New()
	ctx := context.Background()
	s.Create(ctx, "wf-1", nil, 1)
	time.Sleep(1100 * time.Millisecond)
	_, ok := s.Get(ctx, "wf-1")
	assert.False(t, ok)
}

func TestDocumentStoreFirstThenMemory(t *testing.T) {
	doc := newFakeDocStore()
	s := contextstore.New(contextstore.WithDocumentStore(doc))
	ctx := context.Background()

	s.Create(ctx, "wf-1", map[string]any{"a": 1}, 0)

	stored, ok, err := doc.Get(ctx, "wf-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, stored.SharedData["a"])
}

func TestDegradesToMemoryOnlyWhenDocumentStoreFails(t *testing.T) {
	doc := newFakeDocStore()
	s := contextstore.New(contextstore.WithDocumentStore(doc))
	ctx := context.Background()

	doc.failing = true
	_, err := s.Create(ctx, "wf-1", map[string]any{"a": 1}, 0)
	require.NoError(t, err, "write paths must never surface a document-store failure")

	w, ok := s.Get(ctx, "wf-1")
	require.True(t, ok, "memory tier must still serve the context")
	assert.Equal(t, 1, w.SharedData["a"])
	assert.False(t, s.Stats().DocumentBacked)
}

func TestDeleteRemovesFromBothTiers(t *testing.T) {
	doc := newFakeDocStore()
	s := contextstore.New(contextstore.WithDocumentStore(doc))
	ctx := context.Background()
	s.Create(ctx, "wf-1", nil, 0)

	require.True(t, s.Delete(ctx, "wf-1"))
	_, ok := s.Get(ctx, "wf-1")
	assert.False(t, ok)
	_, ok, _ = doc.Get(ctx, "wf-1")
	assert.False(t, ok)
}
