// Package source defines the document-store seam the migration reads from.
//
// The migrator depends only on these interfaces; the production MongoDB
// implementation lives in source/mongo, and tests inject deterministic
// in-memory sources.
package source

import (
	"context"

	"mongo2sql/internal/document"
)

// Iterator is a lazy, finite, non-restartable document sequence. Next returns
// false at the end of the sequence or on error; callers must check Err after
// the loop, then Close.
type Iterator interface {
	Next(ctx context.Context) (document.Doc, bool)
	Err() error
	Close(ctx context.Context) error
}

// Source is the read-only document store collaborator.
//
// Sample returns up to n documents drawn from the front of the collection's
// natural order; Stream returns the full scan with the same ordering
// guarantee, so the sample is a prefix of the stream. Neither retries:
// connectivity failures surface directly to the caller.
type Source interface {
	ListCollections(ctx context.Context) ([]string, error)
	Sample(ctx context.Context, collection string, n int) (Iterator, error)
	Stream(ctx context.Context, collection string) (Iterator, error)
	Close(ctx context.Context) error
}
