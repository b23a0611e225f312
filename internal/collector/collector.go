// Package collector performs a single HTTP request and materializes its full
// response within a bounded wait.
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bft-labs/metricship/internal/ports"
	"github.com/bft-labs/metricship/pkg/log"
)

// Response is the fully read result of one request. The body is returned raw.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Collector drives requests through a transport. It keeps no state between
// calls.
type Collector struct {
	client ports.HTTPClient
	logger log.Logger
}

// New creates a Collector. A nil logger discards output.
func New(client ports.HTTPClient, logger log.Logger) *Collector {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Collector{client: client, logger: logger}
}

// Get sends req and blocks until the status, headers and the whole body have
// arrived, or until timeout elapses. A non-positive timeout leaves the call
// bounded only by ctx. Every failure is returned as a *RequestError naming
// the request target; errors.Is(err, ErrTimeout) reports a timeout.
func (c *Collector) Get(ctx context.Context, req *http.Request, timeout time.Duration) (*Response, error) {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	req = req.WithContext(ctx)
	start := time.Now()

	done := make(chan result, 1)
	go func() {
		resp, err := c.collect(ctx, req)
		done <- result{resp: resp, err: err}
	}()

	// The transport may ignore cancellation, so the wait itself is bounded.
	r, ok := await(ctx, done)
	if !ok {
		return nil, c.fail(req, ctx.Err(), timeout)
	}
	if r.err != nil {
		if ctx.Err() != nil {
			return nil, c.fail(req, ctx.Err(), timeout)
		}
		return nil, c.fail(req, r.err, timeout)
	}
	c.logger.Debug("request complete",
		log.String("method", req.Method),
		log.String("uri", req.URL.String()),
		log.Int("status", r.resp.Status),
		log.Int("bytes", len(r.resp.Body)),
		log.Duration("duration", time.Since(start)),
	)
	return r.resp, nil
}

type result struct {
	resp *Response
	err  error
}

// await returns the result from done, or false when ctx ends first. A
// successful result that is already waiting when ctx ends is still returned.
func await(ctx context.Context, done <-chan result) (result, bool) {
	select {
	case r := <-done:
		return r, true
	case <-ctx.Done():
	}
	select {
	case r := <-done:
		return r, r.err == nil
	default:
		return result{}, false
	}
}

// collect performs the request and accumulates the body in arrival order.
func (c *Collector) collect(ctx context.Context, req *http.Request) (*Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	// Unblocks a body read stuck past the deadline.
	stop := context.AfterFunc(ctx, func() { resp.Body.Close() })
	defer stop()
	defer resp.Body.Close()

	out := &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
	}
	if out.Header == nil {
		out.Header = http.Header{}
	}

	var body bytes.Buffer
	if _, err := io.Copy(&body, resp.Body); err != nil {
		return nil, fmt.Errorf("read body (status %d): %w", out.Status, err)
	}
	out.Body = body.Bytes()
	return out, nil
}

func (c *Collector) fail(req *http.Request, err error, timeout time.Duration) error {
	reqErr := &RequestError{
		Method:  req.Method,
		URI:     req.URL.String(),
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
	c.logger.Debug("request failed",
		log.String("method", reqErr.Method),
		log.String("uri", reqErr.URI),
		log.Bool("timeout", reqErr.Timeout),
		log.Duration("limit", timeout),
		log.Err(err),
	)
	return reqErr
}
