package intelligence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Status reports how a report section was computed.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// SectionInfo is the outcome of one section, with the reason when it degraded.
type SectionInfo struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Section is the result of one detector call: its value and outcome. A failed
// section carries the zero value.
type Section[T any] struct {
	Value T
	SectionInfo
}

type outcome[T any] struct {
	value T
	err   error
}

// run calls fn under timeout and converts errors, panics and timeouts into a
// failed Section. fn is expected to honour ctx; if it does not, its result is
// discarded once the timeout fires.
func run[T any](ctx context.Context, logger *zap.Logger, name string, timeout time.Duration, fn func(context.Context) (T, error)) Section[T] {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				var zero T
				done <- outcome[T]{value: zero, err: fmt.Errorf("panic: %v", p)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	var res outcome[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("%s: %w", name, ctx.Err())
	}

	if res.err != nil {
		logger.Warn("section degraded", zap.String("section", name), zap.Error(res.err))
		var zero T
		return Section[T]{Value: zero, SectionInfo: SectionInfo{Status: StatusFailed, Reason: res.err.Error()}}
	}
	return Section[T]{Value: res.value, SectionInfo: SectionInfo{Status: StatusOK}}
}

// runList is run for detectors that return partial results with an error.
// Items found before the error are kept and the section is marked partial.
func runList[T any](ctx context.Context, logger *zap.Logger, name string, timeout time.Duration, fn func(context.Context) ([]T, error)) Section[[]T] {
	var partial []T
	var partialErr error
	s := run(ctx, logger, name, timeout, func(ctx context.Context) ([]T, error) {
		items, err := fn(ctx)
		if err != nil && len(items) > 0 {
			partial, partialErr = items, err
			return items, nil
		}
		return items, err
	})
	if s.Status == StatusOK && partialErr != nil {
		logger.Warn("section partially computed", zap.String("section", name), zap.Error(partialErr))
		s.Value = partial
		s.SectionInfo = SectionInfo{Status: StatusPartial, Reason: partialErr.Error()}
	}
	if s.Value == nil {
		s.Value = []T{}
	}
	return s
}
