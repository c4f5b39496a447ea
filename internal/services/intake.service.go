package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type IntakeRepository interface {
	InsertBatch(ctx context.Context, records []*model.ExpenseRecord) ([]*model.ExpenseRecord, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type VehicleLocator interface {
	VehicleLocation(ctx context.Context, requesterID int64) *model.VehicleLocation
}

type BotNotifier interface {
	Enabled() bool
	Notify(ctx context.Context, action gateway.BotAction, requesterID int64, token string) gateway.BotResult
}

type IntakeService struct {
	repo    IntakeRepository
	vehicle VehicleLocator
	indexer Indexer
	bot     BotNotifier
}

func NewIntakeService(repo IntakeRepository, vehicle VehicleLocator, indexer Indexer, bot BotNotifier) *IntakeService {
	return &IntakeService{
		repo:    repo,
		vehicle: vehicle,
		indexer: indexer,
		bot:     bot,
	}
}

// Submit stores every line item of the request as its own record in one
// transaction. Indexing and the bot notification run afterwards and only
// report their outcome.
func (s *IntakeService) Submit(ctx context.Context, req model.IntakeRequest) (*model.IntakeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var vehicle *model.VehicleLocation
	if req.RequesterID != nil && s.vehicle != nil {
		vehicle = s.vehicle.VehicleLocation(ctx, *req.RequesterID)
	}

	records := make([]*model.ExpenseRecord, 0, len(req.Items))
	for _, item := range req.Items {
		records = append(records, &model.ExpenseRecord{
			EmployeeName:    req.EmployeeName,
			RequesterID:     req.RequesterID,
			Category:        model.ParseCategory(item.Category),
			Amount:          *item.Amount,
			Attachment:      item.Attachment,
			VehicleLocation: vehicle,
		})
	}

	var stored []*model.ExpenseRecord
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		stored, err = s.repo.InsertBatch(ctx, records)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	result := &model.IntakeResult{
		Inserted: len(stored),
		Tokens:   make([]model.TokenAssignment, 0, len(stored)),
	}
	for _, rec := range stored {
		result.Tokens = append(result.Tokens, model.TokenAssignment{
			RecordID: rec.ID,
			Category: rec.Category,
			Token:    rec.CorrelationToken,
		})
	}
	logger.Info("expenses stored", "employee", req.EmployeeName, "requester_id", req.RequesterID, "count", len(stored))

	s.index(ctx, stored, req.Location, result)
	result.BotNotified = s.notifyBot(ctx, req.RequesterID, stored)
	return result, nil
}

// index mirrors the new records into search. The position the form reported
// is indexed as is; the record itself stays unlocated until the bot fix.
func (s *IntakeService) index(ctx context.Context, stored []*model.ExpenseRecord, formLoc *model.Location, result *model.IntakeResult) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.EnsureIndex(ctx); err != nil {
		logger.Warn("search index unavailable", "error", err)
		result.IndexErrors = append(result.IndexErrors, err.Error())
		return
	}
	docs := searchDocuments(stored)
	if formLoc != nil {
		ts := formLoc.CapturedAt.UTC().Format(time.RFC3339)
		for i := range docs {
			docs[i].Location = &gateway.GeoPoint{Lat: formLoc.Lat, Lon: formLoc.Lon}
			if !formLoc.CapturedAt.IsZero() {
				docs[i].LocationTS = &ts
			}
		}
	}
	res := s.indexer.BulkIndex(ctx, docs)
	result.IndexCount = res.Indexed
	if res.Err != nil {
		result.IndexErrors = append(result.IndexErrors, res.Err.Error())
	}
	result.IndexErrors = append(result.IndexErrors, res.Errors...)
}

// notifyBot tells the bot a location is awaited. A single record is bound to
// its token; several records fall back to a plain location request.
func (s *IntakeService) notifyBot(ctx context.Context, requesterID *int64, stored []*model.ExpenseRecord) bool {
	if s.bot == nil || !s.bot.Enabled() || requesterID == nil || len(stored) == 0 {
		return false
	}
	action, token := gateway.BotActionRequestLocation, ""
	if len(stored) == 1 {
		action, token = gateway.BotActionSetPendingLocation, stored[0].CorrelationToken
	}
	res := s.bot.Notify(ctx, action, *requesterID, token)
	if !res.Success {
		logger.Warn("bot notification failed", "requester_id", *requesterID, "action", action, "status", res.StatusCode, "error", res.Err)
	}
	return res.Success
}
