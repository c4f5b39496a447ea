package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/prom"
)

const statsWindow = 24 * time.Hour

type SweepRepository interface {
	FindUnsyncedWithErpID(ctx context.Context, maxAge time.Duration, limit int) ([]*model.ExpenseRecord, error)
	MarkCoordinatesSynced(ctx context.Context, id int64) error
	SyncStats(ctx context.Context, since time.Time) (model.SyncStats, error)
}

type CoordinatePatcher interface {
	PatchCoordinates(ctx context.Context, token, correlationID string, lat, lon float64) gateway.PatchResult
}

// SweepService pushes coordinates of records the ERP already knows about.
// Runs are safe to repeat: a synced record never comes back.
type SweepService struct {
	repo      SweepRepository
	directory DirectoryFetcher
	erp       CoordinatePatcher
	maxAge    time.Duration
	limit     int
	deadline  time.Duration
	now       func() time.Time
}

func NewSweepService(repo SweepRepository, directory DirectoryFetcher, erp CoordinatePatcher, maxAge time.Duration, limit int) *SweepService {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if limit <= 0 {
		limit = 50
	}
	return &SweepService{
		repo:      repo,
		directory: directory,
		erp:       erp,
		maxAge:    maxAge,
		limit:     limit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithDeadline bounds each Run. Records not reached before the deadline stay
// unsynced for the next run and are counted in Remaining.
func (s *SweepService) WithDeadline(d time.Duration) *SweepService {
	s.deadline = d
	return s
}

func (s *SweepService) Run(ctx context.Context) (*model.SweepSummary, error) {
	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	records, err := s.repo.FindUnsyncedWithErpID(ctx, s.maxAge, s.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	summary := &model.SweepSummary{Results: []model.SweepRecordResult{}}
	if len(records) == 0 {
		return summary, nil
	}

	dir := s.directory.FetchDirectory(ctx)
	for i, rec := range records {
		if ctx.Err() != nil {
			summary.Remaining = len(records) - i
			logger.Warn("coordinate sweep stopped at deadline", "remaining", summary.Remaining)
			break
		}
		r := s.syncOne(ctx, rec, dir.Directory)
		summary.TotalProcessed++
		if r.Status == "synced" {
			summary.Successful++
		} else {
			summary.Failed++
		}
		prom.IncSweepRecord(r.Status)
		summary.Results = append(summary.Results, r)
	}

	logger.Info("coordinate sweep finished",
		"processed", summary.TotalProcessed,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"remaining", summary.Remaining,
	)
	return summary, nil
}

func (s *SweepService) syncOne(ctx context.Context, rec *model.ExpenseRecord, dir model.Directory) model.SweepRecordResult {
	res := model.SweepRecordResult{RecordID: rec.ID, Status: "failed"}
	if rec.ErpCorrelationID != nil {
		res.CorrelationID = *rec.ErpCorrelationID
	}
	if !dir.Available() {
		res.Error = "directory token unavailable"
		return res
	}
	if rec.Location == nil || res.CorrelationID == "" {
		res.Error = "record has no location or erp id"
		return res
	}

	patch := s.erp.PatchCoordinates(ctx, dir.Token, res.CorrelationID, rec.Location.Lat, rec.Location.Lon)
	if !patch.Success {
		res.Error = patchError(patch)
		logger.Warn("coordinate patch failed", "record_id", rec.ID, "erp_id", res.CorrelationID, "error", res.Error)
		return res
	}
	// the ERP already holds the coordinates, so the mark must outlive the deadline
	if err := s.repo.MarkCoordinatesSynced(context.WithoutCancel(ctx), rec.ID); err != nil {
		res.Error = err.Error()
		logger.Error("coordinates patched but not marked synced", "record_id", rec.ID, "error", err)
		return res
	}
	res.Status = "synced"
	return res
}

func (s *SweepService) Stats(ctx context.Context) (model.SyncStats, error) {
	return s.repo.SyncStats(ctx, s.now().Add(-statsWindow))
}

func patchError(p gateway.PatchResult) string {
	if p.Err != nil {
		return p.Err.Error()
	}
	if p.Raw != "" {
		return fmt.Sprintf("status %d: %s", p.StatusCode, p.Raw)
	}
	return fmt.Sprintf("status %d", p.StatusCode)
}
