package handlers

import (
	"context"
	"strconv"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
)

type LocationService interface {
	Latest(ctx context.Context, requesterID string, maxAgeMin int) gateway.LatestFix
}

type LocationHandler struct {
	svc LocationService
}

func RegisterLocationRoutes(e *xhttp.Group, h *LocationHandler) {
	e.GET("/locations/latest", h.Latest)
}

func NewLocationHandler(svc LocationService) *LocationHandler {
	return &LocationHandler{svc: svc}
}

func (h *LocationHandler) Latest(ctx *xhttp.RequestCtx) {
	requesterID := query(ctx, "requester_id")
	if requesterID == "" {
		writeError(ctx, 400, "requester_id is required")
		return
	}
	maxAge, _ := strconv.Atoi(query(ctx, "max_age_min"))
	writeJSON(ctx, 200, h.svc.Latest(ctx, requesterID, maxAge))
}
