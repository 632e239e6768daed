package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RetryConfig bounds the retry behavior around a flaky backend.
type RetryConfig struct {
	MaxRetries     int           // retries after the first attempt
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration // per-attempt timeout, 0 = none
	RatePerSecond  float64       // request rate cap, 0 = unlimited
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Timeout:        2 * time.Minute,
	}
}

// RetryClient wraps an LLMClient with bounded exponential backoff and an
// optional rate limiter. Context cancellation and contract-level failures
// are not retried; only transport-looking errors are.
type RetryClient struct {
	inner   LLMClient
	cfg     RetryConfig
	limiter *rate.Limiter
}

func NewRetryClient(inner LLMClient, cfg RetryConfig) *RetryClient {
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &RetryClient{inner: inner, cfg: cfg, limiter: limiter}
}

func (c *RetryClient) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	backoff := c.cfg.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if c.cfg.MaxBackoff > 0 && backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		attemptCtx := ctx
		cancel := func() {}
		if c.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		}
		resp, err := c.inner.Generate(attemptCtx, prompt)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			break
		}
	}

	return "", fmt.Errorf("llm call failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

// isRetryable classifies transient transport failures. Anything else is
// surfaced immediately so the caller can degrade the unit of work.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"temporarily unavailable",
		"rate limit",
		"429",
		"500",
		"502",
		"503",
		"529",
		"overloaded",
		"eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
