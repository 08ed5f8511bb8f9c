package resilience

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNoTiers is returned by RunLadder for a ladder without tiers.
var ErrNoTiers = eris.New("resilience: ladder has no tiers")

// Tier is one rung of a fallback ladder: a model variant and the number of
// attempts it gets before the ladder moves on.
type Tier struct {
	Model       string
	MaxAttempts int
}

// Ladder is an ordered list of tiers consumed by the retry loop of a single
// call. A rate-limited attempt skips the rest of its tier and drops to the
// next one; other transient errors retry within the tier with backoff and
// move on once the tier is spent. Build a Ladder per call; nothing about a
// downgrade outlives the call that made it.
type Ladder struct {
	Tiers   []Tier
	Backoff RetryConfig
}

// LadderResult reports which tier served a call.
type LadderResult struct {
	Model      string
	Attempts   int
	Downgraded bool
}

// RunLadder executes fn against the ladder's tiers until one attempt
// succeeds, a non-retryable error occurs, the context ends or every tier is
// exhausted.
func RunLadder[T any](ctx context.Context, l Ladder, fn func(ctx context.Context, model string) (T, error)) (T, LadderResult, error) {
	cfg := applyDefaults(l.Backoff)
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var (
		zero    T
		res     LadderResult
		lastErr error
		step    int
	)

	if len(l.Tiers) == 0 {
		return zero, res, ErrNoTiers
	}

	for ti, tier := range l.Tiers {
		attempts := tier.MaxAttempts
		if attempts <= 0 {
			attempts = 1
		}
		lastTier := ti == len(l.Tiers)-1
		if ti > 0 {
			res.Downgraded = true
		}

		for a := 0; a < attempts; a++ {
			if res.Attempts > 0 {
				if sleep(ctx, computeBackoff(step, cfg)) != nil {
					return zero, res, lastErr
				}
				step++
			}

			res.Model = tier.Model
			res.Attempts++
			val, err := fn(ctx, tier.Model)
			if err == nil {
				return val, res, nil
			}
			lastErr = err

			if ctx.Err() != nil {
				return zero, res, lastErr
			}
			if IsRateLimited(err) && !lastTier {
				zap.L().Warn("resilience: rate limited, downgrading model",
					zap.String("from", tier.Model),
					zap.String("to", l.Tiers[ti+1].Model),
					zap.Int("attempt", res.Attempts),
				)
				break
			}
			if !shouldRetry(err) {
				return zero, res, lastErr
			}
			if cfg.OnRetry != nil {
				cfg.OnRetry(res.Attempts, err)
			}
		}
	}

	return zero, res, lastErr
}
