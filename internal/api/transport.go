package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 500 * time.Millisecond
)

// retryableStatus mirrors the transport-level retry policy: throttling and
// transient server errors.
func retryableStatus(code int) bool {
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

// doRetry sends a freshly built request up to retryAttempts times, retrying
// connection errors and retryable statuses with a doubling delay. build must
// produce an independent request each time; only calls with rebuildable
// bodies go through here.
func (c *Client) doRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if retryableStatus(resp.StatusCode) {
			lastErr = statusError(resp)
			resp.Body.Close()
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", retryAttempts, lastErr)
}

// stallReader watches how often the transport pulls request body bytes and
// fires onStall when no Read happens for the timeout. Unlike a whole-call
// deadline it lets an arbitrarily large body through as long as the transfer
// keeps moving.
type stallReader struct {
	r     io.Reader
	d     time.Duration
	timer *time.Timer
}

func newStallReader(r io.Reader, d time.Duration, onStall func()) io.Reader {
	if d <= 0 {
		return r
	}
	return &stallReader{r: r, d: d, timer: time.AfterFunc(d, onStall)}
}

func (s *stallReader) Read(p []byte) (int, error) {
	s.timer.Reset(s.d)
	n, err := s.r.Read(p)
	if err != nil {
		s.timer.Stop()
	}
	return n, err
}

// idleReader closes the wrapped body when a single Read blocks longer than
// the timeout, unblocking readers of streams that have gone quiet.
type idleReader struct {
	rc io.ReadCloser
	d  time.Duration
}

func newIdleReader(rc io.ReadCloser, d time.Duration) io.ReadCloser {
	if d <= 0 {
		return rc
	}
	return &idleReader{rc: rc, d: d}
}

func (r *idleReader) Read(p []byte) (int, error) {
	timer := time.AfterFunc(r.d, func() { r.rc.Close() })
	n, err := r.rc.Read(p)
	if !timer.Stop() && err == nil {
		// Timer fired while the read was returning; surface the timeout
		// instead of letting the next read fail opaquely.
		err = fmt.Errorf("read timed out after %s", r.d)
	}
	return n, err
}

func (r *idleReader) Close() error {
	return r.rc.Close()
}
