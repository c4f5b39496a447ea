package xhttp

import (
	"reflect"
	"runtime"
	"slices"
	"time"

	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

// ServerOption holds the knobs of the fasthttp server. Zero values fall back
// to DefaultServerOption.
type ServerOption struct {
	Name               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ReadBufferSize     int
	WriteBufferSize    int
	MaxRequestBodySize int
	Concurrency        int
}

// The intake carries base64 attachments, so bodies are allowed well above
// fasthttp's default.
var DefaultServerOption = ServerOption{
	Name:               "expense-gateway",
	ReadTimeout:        10 * time.Second,
	WriteTimeout:       10 * time.Second,
	IdleTimeout:        30 * time.Second,
	ReadBufferSize:     16 * 1024,
	WriteBufferSize:    16 * 1024,
	MaxRequestBodySize: 16 * 1024 * 1024,
	Concurrency:        10_000,
}

type Server = fasthttp.Server

type Engine struct {
	*Router
	*Server
	middle []MiddlewareFunc
}

func (o ServerOption) withDefaults() ServerOption {
	d := DefaultServerOption
	if o.Name != "" {
		d.Name = o.Name
	}
	if o.ReadTimeout > 0 {
		d.ReadTimeout = o.ReadTimeout
	}
	if o.WriteTimeout > 0 {
		d.WriteTimeout = o.WriteTimeout
	}
	if o.IdleTimeout > 0 {
		d.IdleTimeout = o.IdleTimeout
	}
	if o.ReadBufferSize > 0 {
		d.ReadBufferSize = o.ReadBufferSize
	}
	if o.WriteBufferSize > 0 {
		d.WriteBufferSize = o.WriteBufferSize
	}
	if o.MaxRequestBodySize > 0 {
		d.MaxRequestBodySize = o.MaxRequestBodySize
	}
	if o.Concurrency > 0 {
		d.Concurrency = o.Concurrency
	}
	return d
}

func NewServer(option ServerOption) *Engine {
	option = option.withDefaults()
	return &Engine{
		Router: CreateDefaultRouter(),
		Server: &fasthttp.Server{
			Name:                  option.Name,
			Concurrency:           option.Concurrency,
			ReadBufferSize:        option.ReadBufferSize,
			WriteBufferSize:       option.WriteBufferSize,
			ReadTimeout:           option.ReadTimeout,
			WriteTimeout:          option.WriteTimeout,
			IdleTimeout:           option.IdleTimeout,
			MaxRequestBodySize:    option.MaxRequestBodySize,
			NoDefaultServerHeader: true,
			NoDefaultContentType:  true,
			CloseOnShutdown:       true,
			TCPKeepalive:          true,
			Logger:                logger.GetLogger(),
			ErrorHandler: func(ctx *RequestCtx, err error) {
				logger.Warn("[xhttp] connection error", "error", err)
			},
		},
	}
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	logger.Info("[xhttp] server is listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

// DoRouting installs the router as the server handler wrapped by every
// registered middleware. The first registered middleware runs first.
func (e *Engine) DoRouting() {
	for method, routes := range e.Router.List() {
		for _, r := range routes {
			logger.Debug("[xhttp] route registered", "method", method, "path", r)
		}
	}

	handler := e.Router.Handler
	middle := slices.Clone(e.middle)
	slices.Reverse(middle)
	for _, m := range middle {
		handler = m(handler)
		logger.Debug("[xhttp] middleware registered", "name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	e.Server.Handler = handler
}

// Use appends middleware to the chain run for every request.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down")
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
	}
}
