package xhttp

import (
	"strings"
	"time"

	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

const slowThreshold = 2 * time.Second

var skipPaths = []string{"/api/health", "/metrics"}

type MiddlewareFunc func(next RequestHandler) RequestHandler
type RequestCtx = fasthttp.RequestCtx
type RequestHandler = fasthttp.RequestHandler

func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return fasthttp.TimeoutWithCodeHandler(next, timeout,
			`{"error":"`+StatusText(StatusRequestTimeout)+`"}`, StatusRequestTimeout)
	}
}

func RecoverMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		defer func() {
			if err := recover(); err != nil {
				panicResponse(ctx, err)
			}
		}()
		next(ctx)
	}
}

func panicResponse(ctx *RequestCtx, v any) {
	logger.Error("[xhttp] panic recovered", "error", v, "path", string(ctx.Path()))
	ctx.ResetBody()
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetStatusCode(StatusInternalServerError)
	ctx.SetBodyString(`{"error":"` + StatusText(StatusInternalServerError) + `"}`)
}

// RequestLoggerMiddleware writes one access log entry per request. Server
// errors log at error level, client errors and slow requests at warn.
func RequestLoggerMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		if shouldSkip(path) {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		latency := time.Since(start)
		status := ctx.Response.StatusCode()
		fields := []any{
			"status", status,
			"method", string(ctx.Method()),
			"path", path,
			"latency", latency.String(),
			"bytes_in", len(ctx.PostBody()),
			"bytes_out", len(ctx.Response.Body()),
			"ip", ctx.RemoteIP().String(),
			"request_id", requestID(ctx),
		}

		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400 || latency > slowThreshold:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	}
}

func shouldSkip(p string) bool {
	for _, sp := range skipPaths {
		if strings.HasPrefix(p, sp) {
			return true
		}
	}
	return false
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if v := ctx.Request.Header.Peek("X-Request-Id"); len(v) > 0 {
		return string(v)
	}
	return ""
}
