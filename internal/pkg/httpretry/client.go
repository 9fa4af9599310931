// Package httpretry wraps an HTTP client with exponential backoff and
// jitter for calls to platform and LLM APIs that rate-limit or flake.
package httpretry

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// HTTPDoer executes an HTTP request. *http.Client and *RetryClient
// both satisfy it, so retry wrapping is transparent to callers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient retries transient failures with exponential backoff and
// full jitter. Rate-limit responses that carry a Retry-After header
// are honored over the computed backoff.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryClient wraps the given HTTPDoer. A nil client gets a default
// http.Client with a 30s timeout; maxRetries <= 0 defaults to 3.
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  1 * time.Second,
		maxDelay:   30 * time.Second,
	}
}

// Do executes the request, retrying on 429/500/502/503/504 and on
// transient network errors. Client errors (400, 401, 403, 404) return
// immediately, as does context cancellation. The final attempt's
// response is returned as-is so the caller can inspect the body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if req.Context().Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, req.Context().Err()
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			if attempt == rc.maxRetries {
				break
			}
			if err := rc.wait(req, attempt+1, 0); err != nil {
				return nil, lastErr
			}
			continue
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt == rc.maxRetries {
			return resp, nil
		}

		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		// Drain so the underlying connection can be reused.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)

		if err := rc.wait(req, attempt+1, retryAfter); err != nil {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// wait sleeps for the backoff delay (or the server-requested delay)
// before the given attempt, rewinding the request body if needed.
func (rc *RetryClient) wait(req *http.Request, attempt int, serverDelay time.Duration) error {
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return fmt.Errorf("httpretry: failed to reset request body: %w", err)
		}
		req.Body = body
	}

	delay := rc.calculateDelay(attempt)
	if serverDelay > delay {
		delay = serverDelay
	}
	if serverDelay > rc.maxDelay {
		delay = rc.maxDelay
	}
	log.Printf("httpretry: retry attempt %d/%d for %s %s%s (waiting %s)",
		attempt, rc.maxRetries, req.Method, req.URL.Host, req.URL.Path, delay)

	timer := time.NewTimer(delay)
	select {
	case <-timer.C:
		return nil
	case <-req.Context().Done():
		timer.Stop()
		return req.Context().Err()
	}
}

// calculateDelay returns the backoff for a retry attempt using full
// jitter: random(0, min(maxDelay, baseDelay * 2^(attempt-1))).
func (rc *RetryClient) calculateDelay(attempt int) time.Duration {
	expDelay := float64(rc.baseDelay) * math.Pow(2, float64(attempt-1))
	if expDelay > float64(rc.maxDelay) {
		expDelay = float64(rc.maxDelay)
	}

	jittered := time.Duration(rand.Float64() * expDelay)

	// Floor to avoid hammering the API in a tight loop.
	if jittered < 100*time.Millisecond {
		jittered = 100 * time.Millisecond
	}
	return jittered
}

// parseRetryAfter reads the delay-seconds form of Retry-After.
// HTTP-date values and garbage return 0 and fall back to backoff.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
