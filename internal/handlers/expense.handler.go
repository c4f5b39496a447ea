package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/expense-gateway/internal/model"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type IntakeService interface {
	Submit(ctx context.Context, req model.IntakeRequest) (*model.IntakeResult, error)
}

type ExpenseHandler struct {
	svc IntakeService
}

func RegisterExpenseRoutes(e *xhttp.Group, h *ExpenseHandler) {
	e.POST("/expenses", h.CreateExpenses)
}

func NewExpenseHandler(svc IntakeService) *ExpenseHandler {
	return &ExpenseHandler{svc: svc}
}

type attachmentInput struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Base64   string `json:"base64"`
}

type expenseItemInput struct {
	Category   string           `json:"category"`
	Amount     flexNumber       `json:"amount"`
	Attachment *attachmentInput `json:"attachment"`
}

type locationInput struct {
	Lat       flexNumber `json:"lat"`
	Lon       flexNumber `json:"lon"`
	Timestamp string     `json:"timestamp"`
}

type createExpensesRequest struct {
	RequesterID  flexNumber         `json:"requester_id"`
	EmployeeName string             `json:"employee_name"`
	Items        []expenseItemInput `json:"items"`
	Location     *locationInput     `json:"location"`
}

type createExpensesResponse struct {
	Success      bool   `json:"success"`
	EmployeeName string `json:"employee_name"`
	*model.IntakeResult
}

func (h *ExpenseHandler) CreateExpenses(ctx *xhttp.RequestCtx) {
	var req createExpensesRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	p, err := req.toModel()
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	res, err := h.svc.Submit(ctx, p)
	switch {
	case errors.Is(err, model.ErrInvalidIntake):
		writeError(ctx, 400, err.Error())
		return
	case err != nil:
		logger.Error("failed to store expenses", "employee", p.EmployeeName, "error", err)
		writeErrorDetail(ctx, 500, "failed to save expenses", err.Error())
		return
	}
	writeJSON(ctx, 200, createExpensesResponse{
		Success:      true,
		EmployeeName: p.EmployeeName,
		IntakeResult: res,
	})
}

func (r createExpensesRequest) toModel() (model.IntakeRequest, error) {
	p := model.IntakeRequest{EmployeeName: strings.TrimSpace(r.EmployeeName)}

	if !r.RequesterID.Empty() {
		id, err := r.RequesterID.Int64()
		if err != nil {
			return p, errors.New("requester_id must be numeric")
		}
		p.RequesterID = &id
	}

	for i, it := range r.Items {
		item := model.IntakeItem{Category: it.Category}
		if !it.Amount.Empty() {
			amount, err := it.Amount.Decimal()
			if err != nil {
				return p, fmt.Errorf("item %d: amount must be numeric", i)
			}
			item.Amount = &amount
		}
		if a := it.Attachment; a != nil && a.Base64 != "" {
			content, err := decodeAttachment(a.Base64)
			if err != nil {
				return p, fmt.Errorf("item %d: attachment is not valid base64", i)
			}
			item.Attachment = &model.Attachment{Filename: a.Filename, Kind: a.Type, Content: content}
		}
		p.Items = append(p.Items, item)
	}

	if l := r.Location; l != nil && !l.Lat.Empty() && !l.Lon.Empty() {
		lat, errLat := l.Lat.Float()
		lon, errLon := l.Lon.Float()
		if errLat != nil || errLon != nil {
			return p, errors.New("location lat and lon must be numeric")
		}
		loc := &model.Location{Lat: lat, Lon: lon}
		if ts, err := time.Parse(time.RFC3339, l.Timestamp); err == nil {
			loc.CapturedAt = ts.UTC()
		}
		p.Location = loc
	}
	return p, nil
}

// decodeAttachment accepts plain base64 or a data URL.
func decodeAttachment(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
