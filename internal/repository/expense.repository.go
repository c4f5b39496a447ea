package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("expense record not found")
	ErrEmptyBatch = errors.New("no expense records to insert")
)

type ExpenseRepository struct {
	*pg.DB
	now func() time.Time
}

type Option func(*ExpenseRepository)

// WithClock replaces the wall clock used for creation stamps and time windows.
func WithClock(now func() time.Time) Option {
	return func(r *ExpenseRepository) {
		r.now = now
	}
}

func NewExpenseRepository(db *pg.DB, opts ...Option) *ExpenseRepository {
	r := &ExpenseRepository{
		DB:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// InsertBatch stores the records, minting a correlation token and creation
// time for each. It joins the transaction carried by ctx when there is one.
func (r *ExpenseRepository) InsertBatch(ctx context.Context, records []*model.ExpenseRecord) ([]*model.ExpenseRecord, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}

	now := r.now()
	entities := make([]*ExpenseEntity, len(records))
	for i, rec := range records {
		e := toExpenseEntity(rec)
		e.ID = 0
		e.CorrelationToken = uuid.NewString()
		e.CreatedAt = now
		entities[i] = e
	}

	if err := r.Write(ctx).Create(&entities).Error; err != nil {
		return nil, fmt.Errorf("insert expense records: %w", err)
	}
	return toExpenseModels(entities), nil
}

// FindByID reads from the primary so a record is visible right after it was written.
func (r *ExpenseRepository) FindByID(ctx context.Context, id int64) (*model.ExpenseRecord, error) {
	var entity ExpenseEntity
	err := r.Write(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toExpenseModel(&entity), nil
}

func (r *ExpenseRepository) FindByIDs(ctx context.Context, ids []int64) ([]*model.ExpenseRecord, error) {
	if len(ids) == 0 {
		return []*model.ExpenseRecord{}, nil
	}
	var entities []*ExpenseEntity
	if err := r.Read(ctx).Where("id IN ?", ids).Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toExpenseModels(entities), nil
}

// FindPendingByToken returns the location-less record holding token. Records
// stored without a requester match any requester. A miss returns nil, nil.
func (r *ExpenseRepository) FindPendingByToken(ctx context.Context, token string, requesterID int64) (*model.ExpenseRecord, error) {
	var entity ExpenseEntity
	err := r.Write(ctx).
		Where("correlation_token = ?", token).
		Where("(requester_id = ? OR requester_id IS NULL)", requesterID).
		Where("location_lat IS NULL").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toExpenseModel(&entity), nil
}

// FindPendingByRequesterRecent lists location-less records of the requester
// created within window, newest first.
func (r *ExpenseRepository) FindPendingByRequesterRecent(ctx context.Context, requesterID int64, window time.Duration) ([]*model.ExpenseRecord, error) {
	var entities []*ExpenseEntity
	err := r.Write(ctx).
		Where("requester_id = ?", requesterID).
		Where("created_at >= ?", r.now().Add(-window)).
		Where("location_lat IS NULL").
		Order("created_at DESC, id DESC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toExpenseModels(entities), nil
}

// FindLocatedByRequesterRecent lists records of the requester created within
// window that already carry a location.
func (r *ExpenseRepository) FindLocatedByRequesterRecent(ctx context.Context, requesterID int64, window time.Duration) ([]*model.ExpenseRecord, error) {
	var entities []*ExpenseEntity
	err := r.Read(ctx).
		Where("requester_id = ?", requesterID).
		Where("created_at >= ?", r.now().Add(-window)).
		Where("location_lat IS NOT NULL AND location_lon IS NOT NULL").
		Order("created_at DESC, id DESC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toExpenseModels(entities), nil
}

// AttachLocation writes the fix only while the record has no location and
// reports whether this call won. A record stored without a requester adopts
// requesterID.
func (r *ExpenseRepository) AttachLocation(ctx context.Context, id int64, requesterID int64, loc model.Location) (bool, error) {
	capturedAt := loc.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = r.now()
	}
	res := r.Write(ctx).Model(&ExpenseEntity{}).
		Where("id = ? AND location_lat IS NULL", id).
		Updates(map[string]any{
			"location_lat": loc.Lat,
			"location_lon": loc.Lon,
			"location_at":  capturedAt.UTC(),
			"requester_id": gorm.Expr("COALESCE(requester_id, ?)", requesterID),
		})
	if res.Error != nil {
		return false, fmt.Errorf("attach location to record %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkSubmitted stamps the single ERP submission of a record. correlationID
// may be nil when the ERP returned no id. A record is marked at most once.
func (r *ExpenseRepository) MarkSubmitted(ctx context.Context, id int64, correlationID *string) (bool, error) {
	res := r.Write(ctx).Model(&ExpenseEntity{}).
		Where("id = ? AND erp_submitted_at IS NULL AND erp_correlation_id IS NULL", id).
		Updates(map[string]any{
			"erp_submitted_at":   r.now(),
			"erp_correlation_id": correlationID,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark record %d submitted: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FindUnsyncedWithErpID returns records known to the ERP whose coordinates
// were not patched yet and whose location arrived within maxAge.
func (r *ExpenseRepository) FindUnsyncedWithErpID(ctx context.Context, maxAge time.Duration, limit int) ([]*model.ExpenseRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var entities []*ExpenseEntity
	err := r.Read(ctx).
		Where("erp_correlation_id IS NOT NULL").
		Where("location_lat IS NOT NULL AND location_lon IS NOT NULL").
		Where("erp_coordinates_synced = ?", false).
		Where("location_at >= ?", r.now().Add(-maxAge)).
		Order("location_at DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toExpenseModels(entities), nil
}

func (r *ExpenseRepository) MarkCoordinatesSynced(ctx context.Context, id int64) error {
	res := r.Write(ctx).Model(&ExpenseEntity{}).
		Where("id = ?", id).
		Update("erp_coordinates_synced", true)
	if res.Error != nil {
		return fmt.Errorf("mark record %d synced: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SyncStats counts records created since the given time by ERP sync state.
func (r *ExpenseRepository) SyncStats(ctx context.Context, since time.Time) (model.SyncStats, error) {
	var stats model.SyncStats
	base := func() *gorm.DB {
		return r.Read(ctx).Model(&ExpenseEntity{}).Where("created_at >= ?", since.UTC())
	}

	if err := base().
		Where("erp_correlation_id IS NOT NULL AND location_lat IS NOT NULL AND erp_coordinates_synced = ?", false).
		Count(&stats.Pending).Error; err != nil {
		return stats, err
	}
	if err := base().Where("erp_coordinates_synced = ?", true).Count(&stats.Synced).Error; err != nil {
		return stats, err
	}
	if err := base().Where("erp_correlation_id IS NULL").Count(&stats.NoErpID).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
