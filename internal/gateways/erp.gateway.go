package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

type ERPConfig struct {
	URL     string
	Timeout time.Duration
	// SupportsCorrelationID tells whether the intake endpoint answers with
	// the id of the created expense. Without it no id is ever recorded.
	SupportsCorrelationID bool
	// PinTimeout bounds employee PIN registration, which the ERP answers
	// faster than expense intake.
	PinTimeout time.Duration
}

// ExpensePayload is the body of the ERP expense intake.
type ExpensePayload struct {
	Name                       string      `json:"name"`
	ProductID                  int64       `json:"product_id"`
	TotalAmount                json.Number `json:"total_amount"`
	EmployeeID                 int64       `json:"employee_id"`
	Description                string      `json:"description"`
	Date                       string      `json:"date"`
	RequesterID                string      `json:"id_requester,omitempty"`
	CoordinateDescription      string      `json:"coordinate_description"`
	VehicleLocationDescription string      `json:"vehicle_location_description"`
	CompanyID                  int64       `json:"company_id"`
	State                      string      `json:"state"`
	TypeFile                   string      `json:"type_file,omitempty"`
	AttachmentFilename         string      `json:"attachment_filename,omitempty"`
	Attachment                 string      `json:"attachment,omitempty"`
}

type SubmitResult struct {
	Success       bool
	CorrelationID *string
	StatusCode    int
	Raw           string
	Err           error
}

type PatchResult struct {
	Success    bool
	StatusCode int
	Raw        string
	Err        error
}

type PinResult struct {
	Success    bool
	StatusCode int
	Raw        string
	Err        error
}

type ERPGateway struct {
	cfg ERPConfig
	ep  *endpoint
}

func NewERPGateway(cfg ERPConfig, client Doer) *ERPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.PinTimeout <= 0 {
		cfg.PinTimeout = 5 * time.Second
	}
	return &ERPGateway{
		cfg: cfg,
		ep:  newEndpoint("erp", strings.TrimRight(cfg.URL, "/"), client),
	}
}

func (g *ERPGateway) SupportsCorrelationID() bool {
	return g.cfg.SupportsCorrelationID
}

// SubmitExpense posts one expense. It is attempted once; a non-2xx answer is
// a failure with the raw body kept for diagnosis.
func (g *ERPGateway) SubmitExpense(ctx context.Context, token string, payload ExpensePayload) SubmitResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{Err: fmt.Errorf("marshal expense payload: %w", err)}
	}

	status, raw, err := g.ep.do(ctx, request{
		method:  "POST",
		path:    "/api/gastos/register",
		body:    body,
		headers: bearer(token),
		timeout: g.cfg.Timeout,
	})
	if err != nil {
		logger.Warn("erp expense submission failed", "gateway", "erp", "status", status, "error", err)
		return SubmitResult{StatusCode: status, Raw: string(raw), Err: err}
	}

	res := SubmitResult{Success: true, StatusCode: status, Raw: string(raw)}
	if g.cfg.SupportsCorrelationID {
		res.CorrelationID = extractCorrelationID(raw)
	}
	return res
}

// PatchCoordinates writes the GPS description onto an expense already in the ERP.
func (g *ERPGateway) PatchCoordinates(ctx context.Context, token, correlationID string, lat, lon float64) PatchResult {
	body, err := json.Marshal(map[string]string{
		"coordinate_description": FormatCoordinates(lat, lon),
	})
	if err != nil {
		return PatchResult{Err: err}
	}

	status, raw, err := g.ep.do(ctx, request{
		method:  "PATCH",
		path:    "/api/gastos/" + url.PathEscape(correlationID),
		body:    body,
		headers: bearer(token),
		timeout: g.cfg.Timeout,
	})
	if err != nil {
		logger.Warn("erp coordinate patch failed", "gateway", "erp", "erp_id", correlationID, "status", status, "error", err)
		return PatchResult{StatusCode: status, Raw: string(raw), Err: err}
	}
	return PatchResult{Success: true, StatusCode: status, Raw: string(raw)}
}

// RegisterPin assigns a login PIN to the ERP employee identified by its
// directory id and document number.
func (g *ERPGateway) RegisterPin(ctx context.Context, token string, employeeID int64, identifier, pin string) PinResult {
	body, err := json.Marshal(map[string]string{"pin": pin})
	if err != nil {
		return PinResult{Err: err}
	}

	q := url.Values{}
	q.Set("nif", identifier)
	q.Set("id", strconv.FormatInt(employeeID, 10))
	status, raw, err := g.ep.do(ctx, request{
		method:  "POST",
		path:    "/api/empleados/register?" + q.Encode(),
		body:    body,
		headers: bearer(token),
		timeout: g.cfg.PinTimeout,
	})
	if err != nil {
		logger.Warn("erp pin registration failed", "gateway", "erp", "employee_id", employeeID, "status", status, "error", err)
		return PinResult{StatusCode: status, Raw: string(raw), Err: err}
	}
	return PinResult{Success: true, StatusCode: status, Raw: string(raw)}
}

func (g *ERPGateway) Stats() StatsSnapshot {
	return g.ep.snapshot()
}

// extractCorrelationID looks for the created id at the top level or under
// "result". Numbers and strings are both accepted.
func extractCorrelationID(raw []byte) *string {
	var resp struct {
		ID        flexString      `json:"id"`
		ExpenseID flexString      `json:"expense_id"`
		Result    json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}
	if len(resp.Result) > 0 && resp.Result[0] == '{' {
		var nested struct {
			ID flexString `json:"id"`
		}
		if json.Unmarshal(resp.Result, &nested) == nil && resp.ID == "" {
			resp.ID = nested.ID
		}
	}
	for _, v := range []flexString{resp.ID, resp.ExpenseID} {
		if v != "" {
			s := string(v)
			return &s
		}
	}
	return nil
}

// FormatCoordinates renders a fix the way the ERP free text field expects it.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%s° N, %s° E", formatDegrees(lat), formatDegrees(lon))
}

func formatDegrees(v float64) string {
	return decimal.NewFromFloat(v).String()
}
