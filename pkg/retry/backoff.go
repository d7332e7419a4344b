package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"ytshorts/pkg/config"
)

// Backoff curves accepted by the retry settings
const (
	StrategyExponential = "exponential"
	StrategyLinear      = "linear"
	StrategyConstant    = "constant"
)

// BackoffStrategy computes the pause before retry number attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// Schedule is a backoff curve. Linear grows by Base per attempt,
// exponential multiplies by Multiplier, constant always waits Base.
type Schedule struct {
	Strategy   string
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter moves each delay by up to +/- this fraction
	Jitter float64
}

// NextDelay implements BackoffStrategy
func (s Schedule) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var delay float64
	switch s.Strategy {
	case StrategyConstant:
		delay = float64(s.Base)
	case StrategyLinear:
		delay = float64(s.Base) * float64(attempt)
	default:
		m := s.Multiplier
		if m < 1 {
			m = 1
		}
		delay = float64(s.Base) * math.Pow(m, float64(attempt-1))
	}

	if s.Max > 0 && delay > float64(s.Max) {
		delay = float64(s.Max)
	}
	return jittered(delay, s.Jitter)
}

func jittered(delay, factor float64) time.Duration {
	if factor > 0 {
		spread := delay * factor
		delay += rand.Float64()*2*spread - spread
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// ScheduleFromSettings turns the retry settings into a Schedule
func ScheduleFromSettings(s config.RetryConfig) Schedule {
	return Schedule{
		Strategy:   s.Strategy,
		Base:       s.BaseDelay,
		Max:        s.MaxDelay,
		Multiplier: s.Multiplier,
		Jitter:     s.Jitter,
	}
}

// RateLimitSchedule is the slower curve used after a 429. It starts at the
// configured cooldown, or one token interval when no cooldown is set.
func RateLimitSchedule(rl config.RateLimitConfig, s config.RetryConfig) Schedule {
	base := rl.Cooldown
	if base <= 0 {
		rpm := rl.RequestsPerMinute
		if rpm < 1 {
			rpm = 1
		}
		base = time.Minute / time.Duration(rpm)
	}
	max := rl.MaxCooldown
	if max < base {
		max = base
	}
	return Schedule{
		Strategy:   StrategyExponential,
		Base:       base,
		Max:        max,
		Multiplier: s.Multiplier,
		Jitter:     s.Jitter,
	}
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
