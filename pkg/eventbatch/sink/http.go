package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch"
	eberrors "github.com/randalmurphal/eventbatch/pkg/eventbatch/errors"
)

// DefaultHTTPTimeout bounds one POST when no timeout is configured.
const DefaultHTTPTimeout = 5 * time.Second

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 512

// HTTPSink POSTs each batch as JSON:
//
//	{"batch_id": "...", "events": [{"name": "...", "payload": {...}, "timestamp": "..."}], "created_at": "..."}
//
// Any 2xx response is success.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	headers  http.Header
}

// HTTPOption configures an HTTPSink.
type HTTPOption func(*HTTPSink)

// WithHTTPTimeout sets the per-request timeout. Default: 5s
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSink) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout is used as is.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSink) {
		s.headers.Add(key, value)
	}
}

// NewHTTPSink creates a sink posting to endpoint.
func NewHTTPSink(endpoint string, opts ...HTTPOption) *HTTPSink {
	s := &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultHTTPTimeout},
		headers:  make(http.Header),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver implements eventbatch.Deliverer.
func (s *HTTPSink) Deliver(ctx context.Context, batch *eventbatch.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return eventbatch.ErrEmptyBatch
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return eberrors.Permanent(fmt.Errorf("encode batch: %w", err), "http sink")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return eberrors.Permanent(fmt.Errorf("build request: %w", err), "http sink")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			return &eberrors.TimeoutError{Operation: "POST " + s.endpoint, Duration: time.Since(start).Round(time.Millisecond).String()}
		}
		return fmt.Errorf("post batch %s: %w", batch.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &eberrors.HTTPError{
		StatusCode: resp.StatusCode,
		Message:    string(bytes.TrimSpace(msg)),
		Endpoint:   s.endpoint,
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
