// Package scheduler runs a worker over a batch of items with bounded
// concurrency.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when Options.Concurrency is not positive.
var DefaultConcurrency = runtime.NumCPU()

// Options tune a Run.
type Options struct {
	// Concurrency caps the number of workers in flight.
	Concurrency int

	// OnProgress is called after every item settles, successfully or not.
	// Calls are serialized and completed increases by one each time.
	OnProgress func(completed, total int)
}

// ItemError records the failure of one item.
type ItemError[T any] struct {
	Index int
	Item  T
	Err   error
}

func (e ItemError[T]) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError[T]) Unwrap() error { return e.Err }

// Result holds per-item outcomes. Results[i] is the zero value when item i
// failed. Errors are ordered by index.
type Result[T, R any] struct {
	Results []R
	Errors  []ItemError[T]
}

// Run calls worker for every item with at most opts.Concurrency calls in
// flight. A failing or panicking item never stops the others. Items not yet
// started when ctx is cancelled fail with the context error.
func Run[T, R any](ctx context.Context, items []T, worker func(ctx context.Context, item T) (R, error), opts Options) Result[T, R] {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	res := Result[T, R]{Results: make([]R, len(items))}
	errs := make([]error, len(items))

	var (
		completed  atomic.Int64
		progressMu sync.Mutex
	)

	g := new(errgroup.Group)
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			r, err := call(ctx, item, worker)
			if err != nil {
				errs[i] = err
			} else {
				res.Results[i] = r
			}

			if opts.OnProgress != nil {
				progressMu.Lock()
				opts.OnProgress(int(completed.Add(1)), len(items))
				progressMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			res.Errors = append(res.Errors, ItemError[T]{Index: i, Item: items[i], Err: err})
		}
	}
	return res
}

// Serial has the semantics of Run but calls worker for one item at a time on
// the calling goroutine. Concurrency is ignored.
func Serial[T, R any](ctx context.Context, items []T, worker func(ctx context.Context, item T) (R, error), opts Options) Result[T, R] {
	res := Result[T, R]{Results: make([]R, len(items))}
	for i, item := range items {
		r, err := call(ctx, item, worker)
		if err != nil {
			res.Errors = append(res.Errors, ItemError[T]{Index: i, Item: item, Err: err})
		} else {
			res.Results[i] = r
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(items))
		}
	}
	return res
}

func call[T, R any](ctx context.Context, item T, worker func(context.Context, T) (R, error)) (r R, err error) {
	if err := ctx.Err(); err != nil {
		return r, err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return worker(ctx, item)
}
