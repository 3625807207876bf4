package engine

import (
	"context"
	"sync"

	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
	"github.com/Aman-CERP/linesearch/internal/index"
	"github.com/Aman-CERP/linesearch/internal/logstore"
)

// BatchResult pairs a result with the position of its request.
type BatchResult struct {
	Index   int
	Request Request
	Result  Result
}

// ExecuteBatch runs reqs on the worker pool. It returns one result per
// request in completion order; use Index to map back. A failing request
// does not affect the others.
func (e *Engine) ExecuteBatch(ctx context.Context, reqs []Request) []BatchResult {
	results := make(chan BatchResult, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			results <- BatchResult{Index: i, Request: req, Result: e.Execute(ctx, req)}
		})
		if err != nil {
			wg.Done()
			res := Result{
				Mode:  index.Resolve(req.Mode, e.defaultMode, e.logger),
				Query: logstore.TruncateQuery(req.Query, logstore.MaxQueryBytes),
				Addr:  RequesterIP(req.Addr),
			}
			results <- BatchResult{Index: i, Request: req, Result: e.failure(res, lserrors.InternalError("Worker pool unavailable", err))}
		}
	}

	wg.Wait()
	close(results)

	out := make([]BatchResult, 0, len(reqs))
	for r := range results {
		out = append(out, r)
	}
	return out
}
