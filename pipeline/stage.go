package pipeline

import (
	"fmt"
	"time"
)

type stageResult[T any] struct {
	value   T
	elapsed time.Duration
	err     error
}

// timed runs one provider call against the monotonic clock. A panic inside the
// provider is turned into an error.
func timed[T any](fn func() (T, error)) (res stageResult[T]) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = stageResult[T]{value: zero, err: fmt.Errorf("%w: %v", ErrProviderPanic, r)}
		}
	}()
	start := time.Now()
	v, err := fn()
	res.elapsed = time.Since(start)
	res.value = v
	res.err = err
	return res
}
