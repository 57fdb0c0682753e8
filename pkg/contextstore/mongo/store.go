// Package mongo implements contextstore.DocumentStore on top of MongoDB,
// partitioned by workflow_id with a native TTL index.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

const (
	defaultCollection = "workflow_contexts"
	defaultOpTimeout  = 5 * time.Second
)

// Options configures the Mongo-backed document store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements contextstore.DocumentStore.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New constructs a Store and ensures its TTL index exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	coll := opts.Client.Database(opts.Database).Collection(collName)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ttlIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_updated_at"),
	}
	if _, err := coll.Indexes().CreateOne(ctx, ttlIndex); err != nil {
		return nil, err
	}

	return &Store{coll: coll, timeout: timeout}, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Upsert persists w under _id = w.WorkflowID.
func (s *Store) Upsert(ctx context.Context, w contextstore.WorkflowContext) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": w.WorkflowID}
	update := bson.M{"$set": w}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// Get loads a workflow context by id.
func (s *Store) Get(ctx context.Context, workflowID string) (contextstore.WorkflowContext, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var w contextstore.WorkflowContext
	err := s.coll.FindOne(ctx, bson.M{"_id": workflowID}).Decode(&w)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return contextstore.WorkflowContext{}, false, nil
		}
		return contextstore.WorkflowContext{}, false, err
	}
	return w, true, nil
}

// Delete removes a workflow context by id.
func (s *Store) Delete(ctx context.Context, workflowID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": workflowID})
	return err
}
