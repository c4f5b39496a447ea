package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"time"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

const unavailableLocation = "unavailable"

type SubmissionRepository interface {
	MarkSubmitted(ctx context.Context, id int64, correlationID *string) (bool, error)
}

type ERPClient interface {
	SubmitExpense(ctx context.Context, token string, payload gateway.ExpensePayload) gateway.SubmitResult
}

// SubmissionService hands a reconciled record to the ERP exactly once.
type SubmissionService struct {
	repo      SubmissionRepository
	erp       ERPClient
	companyID int64
	now       func() time.Time
}

func NewSubmissionService(repo SubmissionRepository, erp ERPClient, companyID int64) *SubmissionService {
	if companyID == 0 {
		companyID = 1
	}
	return &SubmissionService{
		repo:      repo,
		erp:       erp,
		companyID: companyID,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *SubmissionService) Submit(ctx context.Context, rec *model.ExpenseRecord, emp model.Employee, token string) model.SubmissionOutcome {
	if rec.Submitted() {
		return model.SubmissionOutcome{Status: model.SubmissionSkipped, Reason: "already submitted", CorrelationID: rec.ErpCorrelationID}
	}
	if err := rec.Eligible(); err != nil {
		logger.Warn("expense rejected before erp submission", "record_id", rec.ID, "category", rec.Category, "reason", err)
		return model.SubmissionOutcome{Status: model.SubmissionRejected, Reason: err.Error()}
	}

	payload := BuildExpensePayload(rec, emp, s.companyID, s.now())
	res := s.erp.SubmitExpense(ctx, token, payload)
	if !res.Success {
		reason := "erp rejected the expense"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		return model.SubmissionOutcome{Status: model.SubmissionFailed, Reason: reason, Raw: res.Raw}
	}

	outcome := model.SubmissionOutcome{Status: model.SubmissionSubmitted, CorrelationID: res.CorrelationID}
	marked, err := s.repo.MarkSubmitted(ctx, rec.ID, res.CorrelationID)
	switch {
	case err != nil:
		logger.Error("erp accepted the expense but marking it failed", "record_id", rec.ID, "error", err)
		outcome.Reason = "submission not recorded locally"
	case !marked:
		logger.Warn("record was already marked as submitted", "record_id", rec.ID)
	}
	logger.Info("expense submitted to erp", "record_id", rec.ID, "erp_id", res.CorrelationID, "employee_id", emp.ID)
	return outcome
}

// BuildExpensePayload maps a record to the ERP intake body. Callers check
// eligibility first; an unknown category yields a zero product.
func BuildExpensePayload(rec *model.ExpenseRecord, emp model.Employee, companyID int64, now time.Time) gateway.ExpensePayload {
	product, _ := rec.Category.Product()

	date := now
	coords := unavailableLocation
	if rec.Location != nil {
		coords = gateway.FormatCoordinates(rec.Location.Lat, rec.Location.Lon)
		if !rec.Location.CapturedAt.IsZero() {
			date = rec.Location.CapturedAt
		}
	}

	vehicle := unavailableLocation
	if v := rec.VehicleLocation; v != nil {
		vehicle = gateway.FormatCoordinates(v.Lat, v.Lon)
		if v.Plate != "" {
			vehicle += " - Plate: " + v.Plate
		}
	}

	p := gateway.ExpensePayload{
		Name:                       product.Name,
		ProductID:                  product.ID,
		TotalAmount:                json.Number(rec.Amount.String()),
		EmployeeID:                 emp.ID,
		Description:                "Expense registered by " + rec.EmployeeName,
		Date:                       date.Format("2006-01-02"),
		CoordinateDescription:      coords,
		VehicleLocationDescription: vehicle,
		CompanyID:                  companyID,
		State:                      "draft",
	}
	if rec.RequesterID != nil {
		p.RequesterID = strconv.FormatInt(*rec.RequesterID, 10)
	}
	if a := rec.Attachment; a != nil && len(a.Content) > 0 {
		p.TypeFile = "pdf"
		p.AttachmentFilename = a.Filename
		p.Attachment = base64.StdEncoding.EncodeToString(a.Content)
	}
	return p
}
