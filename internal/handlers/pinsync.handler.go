package handlers

import (
	"context"
	"errors"

	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/internal/services"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type PinSyncService interface {
	Run(ctx context.Context, req model.PinSyncRequest) (*model.PinSyncReport, error)
	Summary(ctx context.Context) (*model.PinSyncSummary, error)
}

type PinSyncHandler struct {
	svc    PinSyncService
	secret string
}

func RegisterPinSyncRoutes(e *xhttp.Group, h *PinSyncHandler) {
	e.GET("/employees/pin-sync", h.Summary)
	e.POST("/employees/pin-sync", h.Run)
}

func NewPinSyncHandler(svc PinSyncService, secret string) *PinSyncHandler {
	return &PinSyncHandler{svc: svc, secret: secret}
}

type pinSyncResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Report  *model.PinSyncReport `json:"report"`
}

type pinSummaryResponse struct {
	Success bool                  `json:"success"`
	Summary *model.PinSyncSummary `json:"summary"`
}

// Run accepts an empty body, which registers the default PIN for everyone
// pending.
func (h *PinSyncHandler) Run(ctx *xhttp.RequestCtx) {
	if !requireBearer(ctx, h.secret) {
		return
	}
	var req model.PinSyncRequest
	if len(ctx.PostBody()) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, 400, "invalid JSON: "+err.Error())
			return
		}
	}

	report, err := h.svc.Run(ctx, req)
	if err != nil {
		h.fail(ctx, "pin sync failed", err)
		return
	}
	msg := "pin sync completed"
	if req.DryRun {
		msg = "dry run completed, nothing was changed"
	}
	writeJSON(ctx, 200, pinSyncResponse{Success: true, Message: msg, Report: report})
}

func (h *PinSyncHandler) Summary(ctx *xhttp.RequestCtx) {
	sum, err := h.svc.Summary(ctx)
	if err != nil {
		h.fail(ctx, "pin summary failed", err)
		return
	}
	writeJSON(ctx, 200, pinSummaryResponse{Success: true, Summary: sum})
}

func (h *PinSyncHandler) fail(ctx *xhttp.RequestCtx, msg string, err error) {
	logger.Error(msg, "error", err)
	status := 500
	if errors.Is(err, services.ErrDirectoryUnavailable) {
		status = 502
	}
	writeErrorDetail(ctx, status, msg, err.Error())
}
