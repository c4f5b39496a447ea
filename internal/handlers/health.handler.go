package handlers

import (
	"github.com/nimasrn/expense-gateway/internal/gateways"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type HealthService interface {
	Get() error
	Upstreams() []gateway.StatsSnapshot
}

type HealthHandler struct {
	svc HealthService
}

func RegisterHealthRoutes(e *xhttp.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
	e.GET("/health/upstreams", h.GetUpstreams)
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{
		svc: svc,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	if err := h.svc.Get(); err != nil {
		logger.Warn("health check failed", "error", err)
		ctx.Response.SetStatusCode(503)
		ctx.Response.SetBodyString("unavailable")
		return
	}
	ctx.Response.SetBodyString("success")
}

// GetUpstreams reports the call counters of every outbound gateway.
func (h *HealthHandler) GetUpstreams(ctx *xhttp.RequestCtx) {
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"upstreams": h.svc.Upstreams()})
}
