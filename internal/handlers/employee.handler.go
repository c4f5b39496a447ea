package handlers

import (
	"context"

	"github.com/nimasrn/expense-gateway/internal/services"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
)

type EmployeeService interface {
	LookupByCode(ctx context.Context, code string) services.EmployeeLookup
}

type EmployeeHandler struct {
	svc EmployeeService
}

func RegisterEmployeeRoutes(e *xhttp.Group, h *EmployeeHandler) {
	e.GET("/employees/lookup", h.LookupByCode)
}

func NewEmployeeHandler(svc EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{svc: svc}
}

// LookupByCode always answers 200; callers read message when the name is empty.
func (h *EmployeeHandler) LookupByCode(ctx *xhttp.RequestCtx) {
	writeJSON(ctx, 200, h.svc.LookupByCode(ctx, query(ctx, "code")))
}
