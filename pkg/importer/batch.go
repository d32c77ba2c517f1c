package importer

import (
	"github.com/kotoba-dict/yomitan-engine/pkg/store"
)

// termBatchAccumulator buffers TermRows and flushes them through
// store.InsertTermsBatch once the buffer reaches rowsPerStatement*20
// rows. It is a single-transaction adaptation of the BatchWriter pattern
// used elsewhere in this codebase: a whole import runs inside one
// transaction already (so the whole import rolls back together on
// failure), so this accumulator has no ticker, no background committer
// goroutine, and no separate transaction per flush — it just reduces the
// number of store.InsertTermsBatch calls against the shared tx.
type termBatchAccumulator struct {
	tx               store.DBExecutor
	rowsPerStatement int
	flushSize        int
	buf              []store.TermRow
	total            int64
}

func newTermBatchAccumulator(tx store.DBExecutor, rowsPerStatement int) *termBatchAccumulator {
	return &termBatchAccumulator{
		tx:               tx,
		rowsPerStatement: rowsPerStatement,
		flushSize:        rowsPerStatement * 20,
	}
}

func (a *termBatchAccumulator) Add(row store.TermRow) error {
	a.buf = append(a.buf, row)
	a.total++
	if len(a.buf) >= a.flushSize {
		return a.Flush()
	}
	return nil
}

func (a *termBatchAccumulator) Flush() error {
	if len(a.buf) == 0 {
		return nil
	}
	if err := store.InsertTermsBatch(a.tx, a.buf, a.rowsPerStatement); err != nil {
		return err
	}
	a.buf = a.buf[:0]
	return nil
}

// Total returns the number of rows added so far, flushed or not.
func (a *termBatchAccumulator) Total() int64 { return a.total }
