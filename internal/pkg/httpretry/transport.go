// Package httpretry provides an http.RoundTripper with automatic retry,
// exponential backoff and jitter for HTTP-based email providers.
package httpretry

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errBodyNotRewindable = errors.New("httpretry: request body cannot be replayed")

// Transport retries requests on transient network errors and on retryable
// status codes (429, 500, 502, 503, 504). Client errors are returned as-is.
// On the final attempt the response is returned unchanged so the caller can
// read the status and body.
type Transport struct {
	// Base performs the actual requests. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// MaxRetries is the number of attempts after the first one (default 3).
	MaxRetries int
	// InitialInterval and MaxInterval bound the backoff delay (defaults 1s, 30s).
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewClient returns an *http.Client whose transport retries with the given
// number of retries.
func NewClient(timeout time.Duration, maxRetries int) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{MaxRetries: maxRetries},
	}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) maxRetries() int {
	if t.MaxRetries <= 0 {
		return 3
	}
	return t.MaxRetries
}

func (t *Transport) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	if t.InitialInterval > 0 {
		b.InitialInterval = t.InitialInterval
	}
	if t.MaxInterval > 0 {
		b.MaxInterval = t.MaxInterval
	}
	b.MaxElapsedTime = 0
	return b
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	limit := t.maxRetries()
	policy := backoff.WithContext(backoff.WithMaxRetries(t.backOff(), uint64(limit)), ctx)

	var resp *http.Response
	attempt := 0
	op := func() error {
		attempt++
		r := req
		if attempt > 1 {
			var err error
			if r, err = rewind(req); err != nil {
				return backoff.Permanent(err)
			}
		}

		res, err := t.base().RoundTrip(r)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if isRetryableStatus(res.StatusCode) && attempt <= limit {
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
			return fmt.Errorf("httpretry: server returned retryable status %d", res.StatusCode)
		}
		resp = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Printf("httpretry: retry %d/%d for %s %s%s in %s: %v",
			attempt, limit, req.Method, req.URL.Host, req.URL.Path, wait, err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// rewind clones req with a fresh body for a retry.
func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotRewindable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("httpretry: reset request body: %w", err)
	}
	r.Body = body
	return r, nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
