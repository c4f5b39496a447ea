package handlers

import (
	"context"

	"github.com/nimasrn/expense-gateway/internal/model"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type SweepService interface {
	Run(ctx context.Context) (*model.SweepSummary, error)
	Stats(ctx context.Context) (model.SyncStats, error)
}

type SyncHandler struct {
	svc    SweepService
	secret string
}

func RegisterSyncRoutes(e *xhttp.Group, h *SyncHandler) {
	e.GET("/sync/coordinates", h.Sweep)
	e.POST("/sync/coordinates", h.Sweep)
	e.GET("/sync/coordinates/status", h.Status)
}

func NewSyncHandler(svc SweepService, secret string) *SyncHandler {
	return &SyncHandler{svc: svc, secret: secret}
}

type sweepResponse struct {
	Success bool                `json:"success"`
	Summary *model.SweepSummary `json:"summary"`
}

type syncStatusResponse struct {
	Success bool            `json:"success"`
	Stats   model.SyncStats `json:"stats"`
}

func (h *SyncHandler) Sweep(ctx *xhttp.RequestCtx) {
	if !requireBearer(ctx, h.secret) {
		return
	}

	summary, err := h.svc.Run(ctx)
	if err != nil {
		logger.Error("coordinate sweep failed", "error", err)
		writeErrorDetail(ctx, 500, "sweep failed", err.Error())
		return
	}
	writeJSON(ctx, 200, sweepResponse{Success: true, Summary: summary})
}

func (h *SyncHandler) Status(ctx *xhttp.RequestCtx) {
	stats, err := h.svc.Stats(ctx)
	if err != nil {
		writeErrorDetail(ctx, 500, "failed to read sync status", err.Error())
		return
	}
	writeJSON(ctx, 200, syncStatusResponse{Success: true, Stats: stats})
}
