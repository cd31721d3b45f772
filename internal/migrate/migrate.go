// Package migrate orchestrates the collection-to-table migration: sample
// documents, infer a schema, ensure the target table, then stream, convert
// and batch-insert rows. Each collection progresses through a small state
// machine and finishes with an Outcome; one failed collection never aborts
// the others.
package migrate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"mongo2sql/internal/convert"
	"mongo2sql/internal/inference"
	"mongo2sql/internal/metrics"
	"mongo2sql/internal/source"
	"mongo2sql/internal/storage"
)

// Logger is the minimal logging interface used by the migrator.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// State tracks how far a collection's migration has progressed.
type State int

const (
	StateIdle State = iota
	StateSampling
	StateSchemaReady
	StateTableReady
	StateInserting
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateSampling:    "sampling",
	StateSchemaReady: "schema_ready",
	StateTableReady:  "table_ready",
	StateInserting:   "inserting",
	StateDone:        "done",
	StateFailed:      "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// RowFailure attributes one skipped row to its cause. Row is the 1-based
// position in stream order.
type RowFailure struct {
	Row int
	Err error
}

// Outcome is the per-collection result of a run.
type Outcome struct {
	Collection string
	Table      string
	State      State

	DocsSampled int
	Columns     int

	RowsRead     int
	RowsInserted int
	RowsSkipped  int

	// Failures holds up to maxRecordedFailures skipped-row records; the
	// counters above carry the full totals.
	Failures []RowFailure

	// Err is the failure that stopped the collection, nil when State is Done.
	Err error
}

// Failed reports whether the collection stopped before Done.
func (o Outcome) Failed() bool { return o.State == StateFailed }

// Options controls a run.
type Options struct {
	// SampleSize caps how many documents vote on the schema.
	SampleSize int

	// BatchSize bounds rows buffered between insert flushes.
	BatchSize int

	// Recreate drops and recreates existing target tables.
	Recreate bool

	// Workers > 1 migrates that many collections concurrently. Collections
	// touch disjoint tables and cursors, so they need no coordination.
	Workers int

	// OnMismatch decides what happens to values that violate the committed
	// column type during conversion.
	OnMismatch convert.Policy

	// Infer supplies inference parameters (decimal precision/scale).
	Infer inference.Options
}

// Migrator migrates collections from a document source into a relational
// repository.
type Migrator struct {
	Source  source.Source
	Repo    storage.Repository
	Logger  Logger
	Options Options
}

func (m *Migrator) logger() func(format string, v ...any) {
	if m.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return m.Logger.Printf
}

// Run migrates the named collections and returns one Outcome per collection,
// in input order. An empty list means every collection in the source
// database. The returned error covers setup only (listing collections);
// per-collection failures live in the outcomes.
func (m *Migrator) Run(ctx context.Context, collections []string) ([]Outcome, error) {
	if m.Source == nil {
		return nil, fmt.Errorf("migrate: Source is required")
	}
	if m.Repo == nil {
		return nil, fmt.Errorf("migrate: Repo is required")
	}

	if len(collections) == 0 {
		var err error
		collections, err = m.Source.ListCollections(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: list collections: %w", err)
		}
	}

	workers := m.Options.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(collections) {
		workers = len(collections)
	}

	outcomes := make([]Outcome, len(collections))

	if workers <= 1 {
		for i, coll := range collections {
			outcomes[i] = m.runCollection(ctx, coll)
		}
		return outcomes, nil
	}

	idxCh := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idxCh {
				outcomes[i] = m.runCollection(ctx, collections[i])
			}
		}()
	}
	for i := range collections {
		idxCh <- i
	}
	close(idxCh)
	wg.Wait()

	return outcomes, nil
}

// runCollection drives one collection through the full state machine.
func (m *Migrator) runCollection(ctx context.Context, coll string) Outcome {
	logf := m.logger()
	out := Outcome{Collection: coll, State: StateIdle}

	fail := func(stage string, err error) Outcome {
		out.State = StateFailed
		out.Err = fmt.Errorf("collection %s: %s: %w", coll, stage, err)
		metrics.RecordCollection("failed")
		logf("stage=%s collection=%s status=error err=%v", stage, coll, err)
		return out
	}

	// Sampling: a bounded prefix of the collection votes on the schema.
	out.State = StateSampling
	sampleStart := time.Now()
	merger := inference.NewMerger(coll, m.Options.Infer)

	it, err := m.Source.Sample(ctx, coll, m.Options.SampleSize)
	if err != nil {
		return fail("sample", err)
	}
	for {
		doc, ok := it.Next(ctx)
		if !ok {
			break
		}
		merger.Observe(doc)
	}
	err = it.Err()
	if cerr := it.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		return fail("sample", err)
	}

	out.DocsSampled = merger.Docs()
	cs := merger.Schema()
	out.Columns = len(cs.Columns)
	out.State = StateSchemaReady
	metrics.RecordStage("sample", "ok", time.Since(sampleStart).Seconds())
	logf("stage=sample collection=%s docs=%d columns=%d duration=%s",
		coll, out.DocsSampled, out.Columns, durMS(sampleStart))

	// Table: DDL failure is fatal for the collection, never retried.
	ddlStart := time.Now()
	def := storage.DefFromSchema(cs)
	out.Table = def.Name
	if err := storage.Ensure(ctx, m.Repo, def, m.Options.Recreate); err != nil {
		return fail("ensure_table", err)
	}
	out.State = StateTableReady
	metrics.RecordStage("ddl", "ok", time.Since(ddlStart).Seconds())
	logf("stage=ddl collection=%s table=%s recreate=%t duration=%s",
		coll, def.Name, m.Options.Recreate, durMS(ddlStart))

	// Inserting: stream everything, convert per committed column type,
	// flush in batches with row-level fault isolation.
	out.State = StateInserting
	insertStart := time.Now()

	convOpts := convert.Options{Policy: m.Options.OnMismatch}
	w := newBatchWriter(m.Repo, coll, def, m.Options.BatchSize, logf)

	stream, err := m.Source.Stream(ctx, coll)
	if err != nil {
		finishWriter(&out, w, 0)
		return fail("stream", err)
	}
	rowNum := 0
	for {
		doc, ok := stream.Next(ctx)
		if !ok {
			break
		}
		rowNum++
		row, err := convert.Row(doc, cs, convOpts)
		if err != nil {
			w.skip(rowNum, err)
			continue
		}
		if err := w.add(ctx, rowNum, row); err != nil {
			finishWriter(&out, w, rowNum)
			stream.Close(ctx)
			return fail("insert", err)
		}
	}
	err = stream.Err()
	if cerr := stream.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		finishWriter(&out, w, rowNum)
		return fail("stream", err)
	}
	if err := w.flush(ctx); err != nil {
		finishWriter(&out, w, rowNum)
		return fail("insert", err)
	}

	finishWriter(&out, w, rowNum)
	out.State = StateDone
	metrics.RecordStage("insert", "ok", time.Since(insertStart).Seconds())
	metrics.RecordCollection("done")
	logf("stage=insert collection=%s rows_read=%d inserted=%d skipped=%d duration=%s",
		coll, out.RowsRead, out.RowsInserted, out.RowsSkipped, durMS(insertStart))

	return out
}

func finishWriter(out *Outcome, w *batchWriter, rowsRead int) {
	out.RowsRead = rowsRead
	out.RowsInserted = w.inserted
	out.RowsSkipped = w.skipped
	out.Failures = w.failures
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }
