// Package mongo implements source.Source for MongoDB using the official v2
// driver. Documents are decoded as bson.D so field order survives into the
// schema merger.
package mongo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mongo2sql/internal/document"
	"mongo2sql/internal/source"
)

// Config carries the source connection descriptor.
type Config struct {
	// URI is a full mongodb:// or mongodb+srv:// connection string.
	URI string
	// Database is the database holding the collections to migrate.
	Database string
	// ConnectTimeout bounds the initial ping. Zero means 10s.
	ConnectTimeout time.Duration
}

// Source is a MongoDB-backed document source.
type Source struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ source.Source = (*Source)(nil)

// Connect dials the source and verifies connectivity with a bounded ping.
// A failure here is a connectivity error: the caller aborts the run, no
// retry is attempted.
func Connect(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongo: database is required")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	return &Source{client: client, db: client.Database(cfg.Database)}, nil
}

// ListCollections returns the database's collection names, sorted for
// deterministic run order when no explicit list is configured.
func (s *Source) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo: list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Sample returns up to n documents from the front of the collection's natural
// order. n <= 0 means no limit (sample the whole collection).
func (s *Source) Sample(ctx context.Context, collection string, n int) (source.Iterator, error) {
	opts := options.Find().SetBatchSize(cursorBatchSize)
	if n > 0 {
		opts = opts.SetLimit(int64(n))
	}
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: sample %s: %w", collection, err)
	}
	return &cursorIter{cur: cur}, nil
}

// Stream returns the full natural-order scan of the collection. The sample
// is a prefix of this sequence.
func (s *Source) Stream(ctx context.Context, collection string) (source.Iterator, error) {
	opts := options.Find().SetBatchSize(cursorBatchSize)
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: stream %s: %w", collection, err)
	}
	return &cursorIter{cur: cur}, nil
}

// Close disconnects from the source.
func (s *Source) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// cursorBatchSize bounds driver round-trip sizes; it has no effect on
// migration batch sizes.
const cursorBatchSize = int32(1000)

// cursorIter adapts a driver cursor to source.Iterator.
type cursorIter struct {
	cur *mongo.Cursor
	err error
}

func (it *cursorIter) Next(ctx context.Context) (document.Doc, bool) {
	if it.err != nil {
		return nil, false
	}
	if !it.cur.Next(ctx) {
		it.err = it.cur.Err()
		return nil, false
	}

	var raw bson.D
	if err := it.cur.Decode(&raw); err != nil {
		it.err = fmt.Errorf("mongo: decode document: %w", err)
		return nil, false
	}
	return docFromBSON(raw), true
}

func (it *cursorIter) Err() error { return it.err }

func (it *cursorIter) Close(ctx context.Context) error {
	return it.cur.Close(ctx)
}

// docFromBSON converts a decoded bson.D into the neutral document form.
// Only the top level is converted; nested values keep their driver types,
// which inference and conversion understand directly.
func docFromBSON(d bson.D) document.Doc {
	out := make(document.Doc, len(d))
	for i, e := range d {
		out[i] = document.Field{Name: e.Key, Value: e.Value}
	}
	return out
}
