package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/prom"
)

const DefaultReconcileWindow = 10 * time.Minute

var ErrPersistence = errors.New("persistence failure")

type ReconcileRepository interface {
	FindByID(ctx context.Context, id int64) (*model.ExpenseRecord, error)
	FindPendingByToken(ctx context.Context, token string, requesterID int64) (*model.ExpenseRecord, error)
	FindPendingByRequesterRecent(ctx context.Context, requesterID int64, window time.Duration) ([]*model.ExpenseRecord, error)
	AttachLocation(ctx context.Context, id int64, requesterID int64, loc model.Location) (bool, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type DirectoryFetcher interface {
	FetchDirectory(ctx context.Context) gateway.DirectoryResult
}

type Submitter interface {
	Submit(ctx context.Context, rec *model.ExpenseRecord, emp model.Employee, token string) model.SubmissionOutcome
}

// ReindexPublisher schedules a record for re-indexing after its location changed.
type ReindexPublisher interface {
	PublishReindex(ctx context.Context, recordID int64, locatedAt time.Time) error
}

type ReconcileService struct {
	repo      ReconcileRepository
	directory DirectoryFetcher
	submitter Submitter
	publisher ReindexPublisher
	window    time.Duration
	now       func() time.Time
}

func NewReconcileService(repo ReconcileRepository, directory DirectoryFetcher, submitter Submitter, publisher ReindexPublisher, window time.Duration) *ReconcileService {
	if window <= 0 {
		window = DefaultReconcileWindow
	}
	return &ReconcileService{
		repo:      repo,
		directory: directory,
		submitter: submitter,
		publisher: publisher,
		window:    window,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile attaches a GPS fix to the pending records it belongs to and
// submits every record it updated. A fix that matches nothing is not an
// error: the result reports Matched false.
func (s *ReconcileService) Reconcile(ctx context.Context, fix model.CoordinateFix) (*model.ReconcileResult, error) {
	if err := fix.Validate(); err != nil {
		return nil, err
	}

	candidates, err := s.candidates(ctx, fix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	loc := model.Location{Lat: fix.Lat, Lon: fix.Lon, CapturedAt: s.now()}
	var updated []int64
	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		updated = updated[:0]
		for _, rec := range candidates {
			ok, err := s.repo.AttachLocation(ctx, rec.ID, fix.RequesterID, loc)
			if err != nil {
				return err
			}
			if ok {
				updated = append(updated, rec.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	result := &model.ReconcileResult{Outcomes: []model.RecordOutcome{}}
	if len(updated) == 0 {
		prom.IncReconcileOutcome("miss")
		logger.Info("no pending expense matched the location", "requester_id", fix.RequesterID, "token", fix.Token)
		return result, nil
	}
	result.Matched = true
	result.RecordsUpdated = len(updated)
	prom.IncReconcileOutcome("matched")
	logger.Info("location attached to expenses", "requester_id", fix.RequesterID, "records", updated)

	s.publishReindex(ctx, updated, loc.CapturedAt)

	dir := s.directory.FetchDirectory(ctx)
	if dir.Err != nil {
		logger.Warn("employee directory unavailable", "error", dir.Err)
	}

	for _, id := range updated {
		outcome := s.submitOne(ctx, id, dir.Directory)
		if outcome.Status == model.SubmissionSubmitted {
			result.SubmittedToERP++
		}
		prom.IncReconcileOutcome(string(outcome.Status))
		result.Outcomes = append(result.Outcomes, model.RecordOutcome{RecordID: id, Outcome: outcome})
	}
	return result, nil
}

func (s *ReconcileService) candidates(ctx context.Context, fix model.CoordinateFix) ([]*model.ExpenseRecord, error) {
	if _, err := uuid.Parse(fix.Token); err == nil {
		rec, err := s.repo.FindPendingByToken(ctx, fix.Token, fix.RequesterID)
		if err != nil || rec == nil {
			return nil, err
		}
		return []*model.ExpenseRecord{rec}, nil
	}
	return s.repo.FindPendingByRequesterRecent(ctx, fix.RequesterID, s.window)
}

func (s *ReconcileService) submitOne(ctx context.Context, id int64, dir model.Directory) model.SubmissionOutcome {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		logger.Error("failed to reload expense record", "record_id", id, "error", err)
		return model.SubmissionOutcome{Status: model.SubmissionFailed, Reason: "record could not be reloaded"}
	}
	if !dir.Available() {
		logger.Warn("skipping erp submission, no directory token", "record_id", id)
		return model.SubmissionOutcome{Status: model.SubmissionSkipped, Reason: "directory token unavailable"}
	}
	emp, ok := dir.Resolve(rec.RequesterID, rec.EmployeeName)
	if !ok {
		logger.Warn("skipping erp submission, employee not found", "record_id", id, "requester_id", rec.RequesterID)
		return model.SubmissionOutcome{Status: model.SubmissionSkipped, Reason: "employee not found"}
	}
	return s.submitter.Submit(ctx, rec, emp, dir.Token)
}

func (s *ReconcileService) publishReindex(ctx context.Context, ids []int64, at time.Time) {
	if s.publisher == nil {
		return
	}
	for _, id := range ids {
		if err := s.publisher.PublishReindex(ctx, id, at); err != nil {
			logger.Warn("failed to schedule re-index", "record_id", id, "error", err)
		}
	}
}
