package llm

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
)

// Disabled is the engine used when no provider is configured.
type Disabled struct{}

func (Disabled) Name() string     { return "disabled" }
func (Disabled) Enabled() bool    { return false }
func (Disabled) Configured() bool { return false }

func (Disabled) Extract(context.Context, Request) Result {
	return Failed(common.CodeEngineDisabled, "extraction engine is disabled")
}

// sleep is swapped in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Attempt is one provider call.
type Attempt func(ctx context.Context) (Parsed, error)

// Retry runs attempt up to 1+maxRetries times with linear backoff and fills
// the timing and retry bookkeeping of a Result. Context errors stop early.
func Retry(ctx context.Context, maxRetries int, backoff time.Duration, attempt Attempt) Result {
	start := time.Now()
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	retries := 0
	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			retries++
			if err := sleep(ctx, time.Duration(i)*backoff); err != nil {
				lastErr = err
				break
			}
		}
		parsed, err := attempt(ctx)
		if err == nil {
			return Result{
				Success:                 true,
				Data:                    parsed.Data,
				ImplicitMappingsApplied: parsed.ImplicitMappings,
				ThoughtProcess:          parsed.ThoughtProcess,
				LatencyMs:               time.Since(start).Milliseconds(),
				RetryCount:              retries,
			}
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || !retryable(err) {
			break
		}
	}

	res := Failed(common.CodeEngineFailed, lastErr.Error())
	res.LatencyMs = time.Since(start).Milliseconds()
	res.RetryCount = retries
	return res
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
