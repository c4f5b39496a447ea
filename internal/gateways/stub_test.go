package gateway

import (
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

type capturedRequest struct {
	Method  string
	URI     string
	Body    string
	Auth    string
	Type    string
	Timeout time.Duration
}

type stubDoer struct {
	mu      sync.Mutex
	calls   []capturedRequest
	handler func(req *fasthttp.Request, resp *fasthttp.Response) error
}

func respondWith(status int, body string) func(*fasthttp.Request, *fasthttp.Response) error {
	return func(_ *fasthttp.Request, resp *fasthttp.Response) error {
		resp.SetStatusCode(status)
		resp.SetBodyString(body)
		return nil
	}
}

func (s *stubDoer) DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, capturedRequest{
		Method:  string(req.Header.Method()),
		URI:     req.URI().String(),
		Body:    string(req.Body()),
		Auth:    string(req.Header.Peek("Authorization")),
		Type:    string(req.Header.ContentType()),
		Timeout: timeout,
	})
	s.mu.Unlock()
	return s.handler(req, resp)
}

func (s *stubDoer) Calls() []capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]capturedRequest, len(s.calls))
	copy(out, s.calls)
	return out
}
