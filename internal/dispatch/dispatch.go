// Package dispatch runs one task per item on a bounded number of goroutines
// and keeps going when individual items fail.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/logger"
)

// ErrInvalidWorkerLimit is returned when the worker limit is below one.
var ErrInvalidWorkerLimit = errors.New("worker limit must be at least 1")

// Result is the outcome of one item. Results are returned in input order;
// Seq is the 1-based position in completion order.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
	Seq   int
}

// OK reports whether the task for Item returned without error.
func (r Result[T, R]) OK() bool { return r.Err == nil }

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// RunBounded runs fn for every item with at most limit running at once and
// waits for all of them. A failing or panicking item is logged and recorded
// in its Result; it never stops its siblings. The only error returned is
// ErrInvalidWorkerLimit.
func RunBounded[T, R any](ctx context.Context, items []T, limit int, name func(T) string, fn func(context.Context, T) (R, error)) ([]Result[T, R], error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerLimit, limit)
	}

	results := make([]Result[T, R], len(items))
	if len(items) == 0 {
		return results, nil
	}

	l := log.FromContext(ctx).WithPrefix("dispatch")
	var (
		g   errgroup.Group
		seq atomic.Int64
	)
	g.SetLimit(limit)

	for i, item := range items {
		// Go blocks while limit tasks are active.
		g.Go(func() error {
			value, err := call(ctx, item, fn)
			results[i] = Result[T, R]{Item: item, Value: value, Err: err, Seq: int(seq.Add(1))}
			if err != nil {
				LogFailure(l, name(item), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func call[T, R any](ctx context.Context, item T, fn func(context.Context, T) (R, error)) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, item)
}

// LogFailure logs a per-item failure with the item name and the error's type
// and message. The full error, including a panic stack, only at debug level.
func LogFailure(l *log.Logger, item string, err error) {
	l.Errorf("%s generated an exception: %T: %v", item, err, err)
	if logger.IsDebug(l) {
		var pe *PanicError
		if errors.As(err, &pe) {
			l.Debug("stack trace", "item", item, "stack", string(pe.Stack))
		} else {
			l.Debug("error detail", "item", item, "err", fmt.Sprintf("%+v", err))
		}
	}
}
