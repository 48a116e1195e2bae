// Package fetch resolves batches of item identifiers with bounded
// concurrency. It exists for index-then-detail APIs (one cheap list
// call, then one lookup per item) where a single slow or broken item
// must not sink the batch.
package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultConcurrency = 10
	defaultItemTimeout = 10 * time.Second
)

// Options bounds a Map call.
type Options struct {
	// Concurrency caps the number of in-flight resolutions (default 10).
	Concurrency int
	// ItemTimeout bounds each individual resolution (default 10s).
	ItemTimeout time.Duration
	// Limiter, when set, paces resolutions across workers.
	Limiter *rate.Limiter
}

// Map resolves every id concurrently and returns the successful
// results in no particular order. A resolution that errors or times
// out is dropped; it never aborts its siblings or surfaces to the
// caller. Map returns only after all submitted work has finished.
func Map[ID any, T any](ctx context.Context, ids []ID, opts Options, resolve func(context.Context, ID) (T, error)) []T {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	timeout := opts.ItemTimeout
	if timeout <= 0 {
		timeout = defaultItemTimeout
	}

	var (
		mu      sync.Mutex
		results []T
		wg      sync.WaitGroup
		sem     = make(chan struct{}, concurrency)
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id ID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if opts.Limiter != nil {
				if err := opts.Limiter.Wait(ctx); err != nil {
					return
				}
			}

			itemCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			v, err := resolve(itemCtx, id)
			if err != nil {
				return
			}

			mu.Lock()
			results = append(results, v)
			mu.Unlock()
		}(id)
	}

	wg.Wait()
	return results
}
