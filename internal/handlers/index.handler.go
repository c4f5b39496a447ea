package handlers

import (
	"context"

	"github.com/nimasrn/expense-gateway/internal/services"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type ReindexService interface {
	ReindexRecent(ctx context.Context, requesterID int64, minutes int) (*services.ReindexReport, error)
}

type IndexHandler struct {
	svc ReindexService
}

func RegisterIndexRoutes(e *xhttp.Group, h *IndexHandler) {
	e.POST("/index/sync", h.SyncRecent)
}

func NewIndexHandler(svc ReindexService) *IndexHandler {
	return &IndexHandler{svc: svc}
}

type indexSyncRequest struct {
	RequesterID flexNumber `json:"requester_id"`
	Minutes     flexNumber `json:"minutes"`
}

type indexSyncResponse struct {
	OK bool `json:"ok"`
	*services.ReindexReport
}

func (h *IndexHandler) SyncRecent(ctx *xhttp.RequestCtx) {
	var req indexSyncRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.RequesterID.Empty() {
		writeError(ctx, 400, "requester_id is required")
		return
	}
	requesterID, err := req.RequesterID.Int64()
	if err != nil {
		writeError(ctx, 400, "requester_id must be numeric")
		return
	}
	minutes, _ := req.Minutes.Int64()

	report, err := h.svc.ReindexRecent(ctx, requesterID, int(minutes))
	if err != nil {
		logger.Error("re-index failed", "requester_id", requesterID, "error", err)
		writeErrorDetail(ctx, 500, "failed to index records", err.Error())
		return
	}
	writeJSON(ctx, 200, indexSyncResponse{OK: true, ReindexReport: report})
}
