package xhttp

import (
	"github.com/fasthttp/router"
)

type Router = router.Router
type Group = router.Group

// CreateDefaultRouter returns a router answering unknown paths and methods
// with a JSON 404 and matching paths strictly.
func CreateDefaultRouter() *Router {
	r := router.New()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = NotFoundHandler
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	r.PanicHandler = func(ctx *RequestCtx, v any) {
		panicResponse(ctx, v)
	}
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetStatusCode(StatusNotFound)
	ctx.SetBodyString(`{"error":"` + StatusText(StatusNotFound) + `"}`)
}
