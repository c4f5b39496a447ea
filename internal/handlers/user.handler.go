package handlers

import (
	"context"
	"strconv"

	"github.com/nimasrn/expense-gateway/internal/services"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type UserService interface {
	CheckRegistration(ctx context.Context, requesterID int64) (services.Registration, error)
	EmployeeName(ctx context.Context, requesterID int64) string
}

type UserHandler struct {
	svc UserService
}

func RegisterUserRoutes(e *xhttp.Group, h *UserHandler) {
	e.GET("/users/registered", h.CheckRegistration)
	e.GET("/users/name", h.EmployeeName)
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) CheckRegistration(ctx *xhttp.RequestCtx) {
	raw := query(ctx, "requester_id")
	if raw == "" {
		writeJSON(ctx, 400, map[string]any{"registered": false, "error": "requester_id is required"})
		return
	}
	requesterID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || requesterID <= 0 {
		writeJSON(ctx, 400, map[string]any{"registered": false, "error": "requester_id must be a positive number"})
		return
	}

	reg, err := h.svc.CheckRegistration(ctx, requesterID)
	if err != nil {
		logger.Error("registration check failed", "requester_id", requesterID, "error", err)
		writeJSON(ctx, 500, map[string]any{"registered": false, "error": "internal server error"})
		return
	}
	writeJSON(ctx, 200, reg)
}

// EmployeeName always answers 200 so the form can render; unknown or
// malformed ids give an empty name.
func (h *UserHandler) EmployeeName(ctx *xhttp.RequestCtx) {
	name := ""
	if requesterID, err := strconv.ParseInt(query(ctx, "requester_id"), 10, 64); err == nil && requesterID > 0 {
		name = h.svc.EmployeeName(ctx, requesterID)
	}
	writeJSON(ctx, 200, map[string]string{"employee_name": name})
}
