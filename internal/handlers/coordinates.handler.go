package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/nimasrn/expense-gateway/internal/model"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type ReconcileService interface {
	Reconcile(ctx context.Context, fix model.CoordinateFix) (*model.ReconcileResult, error)
}

type CoordinatesHandler struct {
	svc ReconcileService
}

func RegisterCoordinatesRoutes(e *xhttp.Group, h *CoordinatesHandler) {
	e.POST("/coordinates", h.UpdateCoordinates)
}

func NewCoordinatesHandler(svc ReconcileService) *CoordinatesHandler {
	return &CoordinatesHandler{svc: svc}
}

type updateCoordinatesRequest struct {
	RequesterID flexNumber `json:"requester_id"`
	Lat         flexNumber `json:"lat"`
	Lon         flexNumber `json:"lon"`
	Token       string     `json:"token"`
}

type updateCoordinatesResponse struct {
	Success        bool                  `json:"success"`
	RecordsUpdated int                   `json:"records_updated"`
	SubmittedToERP int                   `json:"submitted_to_erp"`
	Outcomes       []model.RecordOutcome `json:"outcomes"`
}

type missResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Hint    string `json:"hint"`
}

func (h *CoordinatesHandler) UpdateCoordinates(ctx *xhttp.RequestCtx) {
	var req updateCoordinatesRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.RequesterID.Empty() || req.Lat.Empty() || req.Lon.Empty() {
		writeError(ctx, 400, "requester_id, lat and lon are required")
		return
	}
	requesterID, err := req.RequesterID.Int64()
	if err != nil {
		writeError(ctx, 400, "requester_id must be numeric")
		return
	}
	lat, errLat := req.Lat.Float()
	lon, errLon := req.Lon.Float()
	if errLat != nil || errLon != nil {
		writeError(ctx, 400, "lat and lon must be numeric")
		return
	}

	res, err := h.svc.Reconcile(ctx, model.CoordinateFix{
		RequesterID: requesterID,
		Lat:         lat,
		Lon:         lon,
		Token:       strings.TrimSpace(req.Token),
	})
	switch {
	case errors.Is(err, model.ErrInvalidFix):
		writeError(ctx, 400, err.Error())
		return
	case err != nil:
		logger.Error("coordinate reconciliation failed", "requester_id", requesterID, "error", err)
		writeErrorDetail(ctx, 500, "failed to update coordinates", err.Error())
		return
	}

	if !res.Matched {
		writeJSON(ctx, 200, missResponse{
			Error: "no pending record in window",
			Hint:  "the token is unknown or already located, or no expense was registered in the last minutes",
		})
		return
	}
	writeJSON(ctx, 200, updateCoordinatesResponse{
		Success:        true,
		RecordsUpdated: res.RecordsUpdated,
		SubmittedToERP: res.SubmittedToERP,
		Outcomes:       res.Outcomes,
	})
}
