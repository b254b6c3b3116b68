// Package fetch provides resilient HTTP retrieval for untrusted marketplace
// pages: rotating browser identities, bounded retries with backoff for
// transient overload, and randomized inter-attempt jitter.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrRetriesExhausted is returned when every attempt failed with a retryable
// condition (overload status or network timeout).
var ErrRetriesExhausted = errors.New("all fetch attempts exhausted")

// userAgents is the fixed identity pool; one is picked at random per attempt.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.5; rv:126.0) Gecko/20100101 Firefox/126.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// Config holds fetcher tuning. Zero values fall back to the defaults used
// for well-behaved sources; defensive sources pass tighter values.
type Config struct {
	Timeout    time.Duration // Per-attempt timeout (default 25s)
	MaxRetries int           // Additional attempts after the first
	MinDelay   time.Duration // Jitter lower bound between attempts (default 1s)
	MaxDelay   time.Duration // Jitter upper bound between attempts (default 3s)

	// BackoffUnit is the base of the (attempt+1)*unit overload backoff.
	// Defaults to 5s; tests shrink it.
	BackoffUnit time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 25 * time.Second
	}
	if c.MinDelay == 0 {
		c.MinDelay = 1 * time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 3 * time.Second
	}
	if c.BackoffUnit == 0 {
		c.BackoffUnit = 5 * time.Second
	}
	return c
}

// Fetcher retrieves pages with retry, backoff and identity rotation.
type Fetcher struct {
	client *resty.Client
	cfg    Config
	log    zerolog.Logger
}

// New creates a fetcher with the given policy. Use DefaultConfig for the
// standard policy applied to well-behaved sources.
func New(cfg Config, log zerolog.Logger) *Fetcher {
	cfg = cfg.withDefaults()

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeaders(map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		})

	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "fetcher").Logger(),
	}
}

// DefaultConfig is the policy for well-behaved sources: 25s timeout, two
// retries, 1-3s jitter.
func DefaultConfig() Config {
	return Config{Timeout: 25 * time.Second, MaxRetries: 2}.withDefaults()
}

// Fetch retrieves a URL and returns its body.
//
// Each attempt uses a fresh random User-Agent. Responses with transient
// overload statuses (429/503) and network timeouts are retried up to
// MaxRetries additional times, with an (attempt+1)*BackoffUnit wait after an
// overload response and randomized jitter between attempts. Any other
// non-2xx status, and any non-timeout transport error, fails immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string, params map[string]string) (string, error) {
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := f.sleepJitter(ctx); err != nil {
				return "", err
			}
		}

		resp, err := f.client.R().
			SetContext(ctx).
			SetHeader("User-Agent", userAgents[rand.Intn(len(userAgents))]).
			SetQueryParams(params).
			Get(url)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if !isTimeout(err) {
				// DNS and connection failures are not transient here.
				return "", fmt.Errorf("fetch %s: %w", url, err)
			}
			f.log.Warn().
				Str("url", url).
				Int("attempt", attempt+1).
				Int("max_attempts", f.cfg.MaxRetries+1).
				Msg("Request timed out")
			continue
		}

		status := resp.StatusCode()
		switch {
		case status == http.StatusOK:
			return resp.String(), nil
		case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
			wait := time.Duration(attempt+1) * f.cfg.BackoffUnit
			f.log.Warn().
				Str("url", url).
				Int("status", status).
				Dur("backoff", wait).
				Int("attempt", attempt+1).
				Int("max_attempts", f.cfg.MaxRetries+1).
				Msg("Source overloaded, backing off")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		default:
			return "", fmt.Errorf("fetch %s: unexpected status %d", url, status)
		}
	}

	f.log.Error().Str("url", url).Msg("All fetch attempts exhausted")
	return "", fmt.Errorf("fetch %s: %w", url, ErrRetriesExhausted)
}

// sleepJitter waits a random duration in [MinDelay, MaxDelay].
func (f *Fetcher) sleepJitter(ctx context.Context) error {
	span := f.cfg.MaxDelay - f.cfg.MinDelay
	wait := f.cfg.MinDelay
	if span > 0 {
		wait += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
