package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
)

const defaultBatchConcurrency = 8

type DispatchRequest struct {
	IdempotencyKey string
	Message        *domain.Message
}

type BatchItemResult struct {
	Result *domain.DispatchResult
	Err    error
}

// DispatchBatch runs independent dispatches concurrently, at most
// concurrency at a time. Results keep the order of reqs.
func (c *DispatchCoordinator) DispatchBatch(ctx context.Context, reqs []DispatchRequest, concurrency int) []BatchItemResult {
	if concurrency < 1 {
		concurrency = defaultBatchConcurrency
	}

	results := make([]BatchItemResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			res, err := c.Dispatch(ctx, req.Message, req.IdempotencyKey)
			results[i] = BatchItemResult{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
