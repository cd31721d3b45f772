package migrate

import (
	"context"

	"mongo2sql/internal/metrics"
	"mongo2sql/internal/storage"
)

// maxRecordedFailures caps how many per-row failures an outcome retains.
// Counters keep the full totals; the records exist for attribution, not
// completeness.
const maxRecordedFailures = 50

// batchWriter accumulates converted rows and flushes them in batches. A
// rejected batch is retried row by row so one bad row cannot take down its
// neighbors; rows that fail in isolation are counted and recorded, never
// fatal.
type batchWriter struct {
	repo       storage.Repository
	collection string
	table      string
	columns    []string
	size       int

	buf     [][]any
	rowNums []int

	inserted int
	skipped  int
	failures []RowFailure

	logf func(format string, v ...any)
}

func newBatchWriter(repo storage.Repository, collection string, def storage.TableDef, size int, logf func(format string, v ...any)) *batchWriter {
	if size <= 0 {
		size = 1
	}
	return &batchWriter{
		repo:       repo,
		collection: collection,
		table:      def.Name,
		columns:    def.ColumnNames(),
		size:       size,
		buf:        make([][]any, 0, size),
		rowNums:    make([]int, 0, size),
		logf:       logf,
	}
}

// add buffers one row and flushes when the batch is full. rowNum is the
// 1-based position in the stream, kept for failure attribution.
func (w *batchWriter) add(ctx context.Context, rowNum int, row []any) error {
	w.buf = append(w.buf, row)
	w.rowNums = append(w.rowNums, rowNum)
	if len(w.buf) >= w.size {
		return w.flush(ctx)
	}
	return nil
}

// flush commits the buffered batch. On batch rejection it falls back to
// per-row inserts. The only errors returned are context cancellations;
// data-level failures are absorbed into the skip counters.
func (w *batchWriter) flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	buf, rowNums := w.buf, w.rowNums
	w.buf = w.buf[:0]
	w.rowNums = w.rowNums[:0]

	if err := w.repo.InsertBatch(ctx, w.table, w.columns, buf); err == nil {
		w.inserted += len(buf)
		metrics.RecordRows(w.collection, "inserted", len(buf))
		metrics.RecordBatch(w.collection, "ok")
		w.logf("stage=insert collection=%s batch_rows=%d inserted=%d", w.collection, len(buf), w.inserted)
		return nil
	} else if ctx.Err() != nil {
		return ctx.Err()
	} else {
		metrics.RecordBatch(w.collection, "fallback")
		w.logf("stage=insert collection=%s batch_rows=%d status=fallback err=%v", w.collection, len(buf), err)
	}

	for i, row := range buf {
		if err := w.repo.InsertRow(ctx, w.table, w.columns, row); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.skip(rowNums[i], err)
			continue
		}
		w.inserted++
		metrics.RecordRows(w.collection, "inserted", 1)
	}
	return nil
}

// skip records one row that did not make it into the table.
func (w *batchWriter) skip(rowNum int, err error) {
	w.skipped++
	metrics.RecordRows(w.collection, "skipped", 1)
	if len(w.failures) < maxRecordedFailures {
		w.failures = append(w.failures, RowFailure{Row: rowNum, Err: err})
	}
	w.logf("stage=insert collection=%s row=%d status=skipped err=%v", w.collection, rowNum, err)
}
