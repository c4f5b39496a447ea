package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/prom"
	"github.com/valyala/fasthttp"
)

var ErrNotConfigured = errors.New("gateway url is not configured")

// Doer is the part of fasthttp.Client the gateways use.
type Doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

func NewHTTPClient(name string, timeout time.Duration) *fasthttp.Client {
	return &fasthttp.Client{
		Name:                name,
		MaxConnsPerHost:     64,
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
		MaxIdleConnDuration: 60 * time.Second,
		ReadBufferSize:      16 * 1024,
		WriteBufferSize:     16 * 1024,
	}
}

// StatusError is returned for upstream answers outside the 2xx range. Body
// keeps the raw upstream payload.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

// Stats tracks the calls made through one upstream.
type Stats struct {
	TotalRequests    atomic.Int64
	FailedRequests   atomic.Int64
	ConsecutiveFails atomic.Int32
	LastLatencyMs    atomic.Int64
	LastErrorTime    atomic.Int64
}

func (s *Stats) recordSuccess(latency time.Duration) {
	s.TotalRequests.Add(1)
	s.LastLatencyMs.Store(latency.Milliseconds())
	s.ConsecutiveFails.Store(0)
}

func (s *Stats) recordFailure(latency time.Duration) {
	s.TotalRequests.Add(1)
	s.FailedRequests.Add(1)
	s.ConsecutiveFails.Add(1)
	s.LastLatencyMs.Store(latency.Milliseconds())
	s.LastErrorTime.Store(time.Now().Unix())
}

func (s *Stats) snapshot(name string) StatsSnapshot {
	return StatsSnapshot{
		Name:             name,
		TotalRequests:    s.TotalRequests.Load(),
		FailedRequests:   s.FailedRequests.Load(),
		ConsecutiveFails: s.ConsecutiveFails.Load(),
		LastLatencyMs:    s.LastLatencyMs.Load(),
	}
}

type StatsSnapshot struct {
	Name             string `json:"name"`
	TotalRequests    int64  `json:"total_requests"`
	FailedRequests   int64  `json:"failed_requests"`
	ConsecutiveFails int32  `json:"consecutive_fails"`
	LastLatencyMs    int64  `json:"last_latency_ms"`
}

// endpoint is one upstream base url with its client and counters.
type endpoint struct {
	name    string
	baseURL string
	client  Doer
	stats   *Stats
}

func newEndpoint(name, baseURL string, client Doer) *endpoint {
	return &endpoint{name: name, baseURL: baseURL, client: client, stats: &Stats{}}
}

func (e *endpoint) snapshot() StatsSnapshot {
	return e.stats.snapshot(e.name)
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	headers     map[string]string
	timeout     time.Duration
}

// do performs one HTTP exchange bounded by the request timeout and the ctx
// deadline, whichever comes first. It returns the status code and a copy of
// the body. Non-2xx answers are reported as *StatusError.
func (e *endpoint) do(ctx context.Context, r request) (int, []byte, error) {
	if e.baseURL == "" {
		return 0, nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(e.baseURL + r.path)
	req.Header.SetMethod(r.method)
	contentType := r.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.SetContentType(contentType)
	req.Header.Set("Accept", "application/json")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if r.body != nil {
		req.SetBody(r.body)
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout || timeout <= 0 {
			timeout = remaining
		}
	}

	start := time.Now()
	err := e.client.DoTimeout(req, resp, timeout)
	latency := time.Since(start)
	if err != nil {
		e.fail(latency, "error")
		return 0, nil, fmt.Errorf("%s request failed: %w", e.name, err)
	}

	status := resp.StatusCode()
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	if status < 200 || status > 299 {
		e.fail(latency, "status")
		return status, body, &StatusError{Code: status, Body: string(body)}
	}

	e.stats.recordSuccess(latency)
	prom.ObserveGatewayRequest(e.name, "success", latency.Seconds())
	logger.Debug("gateway request succeeded", "gateway", e.name, "path", r.path, "status", status, "latency_ms", latency.Milliseconds())
	return status, body, nil
}

func (e *endpoint) fail(latency time.Duration, outcome string) {
	e.stats.recordFailure(latency)
	prom.ObserveGatewayRequest(e.name, outcome, latency.Seconds())
}

func isTimeout(err error) bool {
	return errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
