package xhttp

import "github.com/valyala/fasthttp"

const (
	StatusOK                  = fasthttp.StatusOK
	StatusBadRequest          = fasthttp.StatusBadRequest
	StatusUnauthorized        = fasthttp.StatusUnauthorized
	StatusNotFound            = fasthttp.StatusNotFound
	StatusRequestTimeout      = fasthttp.StatusRequestTimeout
	StatusInternalServerError = fasthttp.StatusInternalServerError
	StatusBadGateway          = fasthttp.StatusBadGateway
	StatusGatewayTimeout      = fasthttp.StatusGatewayTimeout
)

func StatusText(code int) string {
	return fasthttp.StatusMessage(code)
}
