package profile

import (
	"fmt"
	"time"
)

// evalResult is the internal type used to pass evaluation results through channels.
type evalResult struct {
	value  float64
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error
// once limit has passed. The evaluating goroutine may keep running; its
// buffered send never blocks, so it exits on its own.
func waitWithTimeout(ch <-chan evalResult, limit time.Duration) (evalResult, error) {
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res, res.err
	case <-timer.C:
		return evalResult{}, fmt.Errorf("wall profile evaluation timed out after %s", limit)
	}
}
