// Package retry runs an operation with exponential backoff, retrying only
// failures classified as transient.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/c360/linesink/errors"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Config controls the backoff
type Config struct {
	MaxAttempts  int           // Total attempts; values below 1 mean a single attempt
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Upper bound on any one delay
	Multiplier   float64       // Growth factor between delays
	AddJitter    bool          // Adds up to 25% to each delay
}

// DefaultConfig suits dialing a broker at startup
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Validate rejects configurations that cannot produce a sane schedule
func (c Config) Validate() error {
	if c.InitialDelay < 0 || c.MaxDelay < 0 || c.Multiplier < 0 {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "retry", "Validate", "negative backoff parameter")
	}
	if c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay {
		return errors.WrapConfiguration(errors.ErrInvalidConfig, "retry", "Validate", "max delay below initial delay")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier > 1000 {
		c.Multiplier = 1000
	}
	return c
}

// Do calls fn until it succeeds, returns a non-transient error, attempts run
// out, or ctx is done. The last error from fn is returned wrapped, so its
// classification survives.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return errors.Wrap(lastErr, "retry", "Do", fmt.Sprintf("attempt %d (cancelled)", attempt))
		}
		if !errors.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(jittered(delay, cfg.AddJitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(lastErr, "retry", "Do", fmt.Sprintf("backoff after attempt %d (cancelled)", attempt))
		case <-timer.C:
		}

		next := time.Duration(float64(delay) * cfg.Multiplier)
		if next > cfg.MaxDelay || next <= 0 {
			next = cfg.MaxDelay
		}
		delay = next
	}

	return errors.Wrap(lastErr, "retry", "Do", fmt.Sprintf("%d attempts", cfg.MaxAttempts))
}

func jittered(d time.Duration, enabled bool) time.Duration {
	if !enabled || d < 4 {
		return d
	}
	randMu.Lock()
	defer randMu.Unlock()
	return d + time.Duration(randSource.Int63n(int64(d/4)))
}
