package importer

import (
	"runtime"
	"sync"
)

// encodeTermRowsParallel applies encode to every row in rows, preserving
// order, fanning out across workerCount goroutines when the batch is large
// enough to be worth the overhead. This is a chunked fan-out/join adaptation
// of the job-queue WorkerPool pattern used elsewhere in this codebase: each
// worker owns a contiguous chunk of the slice and writes directly into its
// slot of the preallocated results slice, so no result channel or ordering
// step is needed afterward.
func encodeTermRowsParallel(rows []TermBankRow, workerCount int, encode func(TermBankRow) ([]byte, error)) ([][]byte, error) {
	results := make([][]byte, len(rows))
	errs := make([]error, len(rows))

	if workerCount <= 1 || len(rows) < 1024 {
		for i, row := range rows {
			out, err := encode(row)
			if err != nil {
				return nil, err
			}
			results[i] = out
		}
		return results, nil
	}

	if workerCount > runtime.NumCPU() {
		workerCount = runtime.NumCPU()
	}
	if workerCount < 1 {
		workerCount = 1
	}

	chunkSize := (len(rows) + workerCount - 1) / workerCount
	var wg sync.WaitGroup

	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				out, err := encode(rows[i])
				if err != nil {
					errs[i] = err
					continue
				}
				results[i] = out
			}
		}(start, end)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
