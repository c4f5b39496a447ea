package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

const (
	defaultReindexMinutes = 5
	maxReindexMinutes     = 60
)

type Indexer interface {
	EnsureIndex(ctx context.Context) error
	BulkIndex(ctx context.Context, docs []gateway.SearchDocument) gateway.IndexResult
}

type ReindexRepository interface {
	FindByIDs(ctx context.Context, ids []int64) ([]*model.ExpenseRecord, error)
	FindLocatedByRequesterRecent(ctx context.Context, requesterID int64, window time.Duration) ([]*model.ExpenseRecord, error)
}

// ReindexReport is the outcome of pushing records to the search index.
type ReindexReport struct {
	Found   int      `json:"found"`
	Indexed int      `json:"indexed"`
	Errors  []string `json:"errors,omitempty"`
	Minutes int      `json:"minutes,omitempty"`
}

type ReindexService struct {
	repo    ReindexRepository
	indexer Indexer
}

func NewReindexService(repo ReindexRepository, indexer Indexer) *ReindexService {
	return &ReindexService{repo: repo, indexer: indexer}
}

// ReindexRecent re-indexes the located records the requester created in the
// last minutes. minutes defaults to 5 and is capped at 60.
func (s *ReindexService) ReindexRecent(ctx context.Context, requesterID int64, minutes int) (*ReindexReport, error) {
	if minutes <= 0 {
		minutes = defaultReindexMinutes
	}
	if minutes > maxReindexMinutes {
		minutes = maxReindexMinutes
	}
	records, err := s.repo.FindLocatedByRequesterRecent(ctx, requesterID, time.Duration(minutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	report, err := s.index(ctx, records)
	if err != nil {
		return nil, err
	}
	report.Minutes = minutes
	return report, nil
}

func (s *ReindexService) ReindexRecords(ctx context.Context, ids []int64) (*ReindexReport, error) {
	records, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.index(ctx, records)
}

func (s *ReindexService) index(ctx context.Context, records []*model.ExpenseRecord) (*ReindexReport, error) {
	report := &ReindexReport{Found: len(records)}
	if len(records) == 0 {
		return report, nil
	}
	if err := s.indexer.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure search index: %w", err)
	}
	res := s.indexer.BulkIndex(ctx, searchDocuments(records))
	if res.Err != nil {
		return nil, fmt.Errorf("bulk index: %w", res.Err)
	}
	report.Indexed = res.Indexed
	report.Errors = res.Errors
	if len(res.Errors) > 0 {
		logger.Warn("some records were not indexed", "errors", len(res.Errors))
	}
	return report, nil
}

func searchDocuments(records []*model.ExpenseRecord) []gateway.SearchDocument {
	docs := make([]gateway.SearchDocument, 0, len(records))
	for _, rec := range records {
		docs = append(docs, searchDocument(rec))
	}
	return docs
}

func searchDocument(rec *model.ExpenseRecord) gateway.SearchDocument {
	amount, _ := rec.Amount.Float64()
	doc := gateway.SearchDocument{
		RecordID:         rec.ID,
		CorrelationToken: rec.CorrelationToken,
		EmployeeName:     rec.EmployeeName,
		RequesterID:      rec.RequesterID,
		Category:         string(rec.Category),
		Amount:           amount,
		CreatedAt:        rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.Location != nil {
		doc.Location = &gateway.GeoPoint{Lat: rec.Location.Lat, Lon: rec.Location.Lon}
		ts := rec.Location.CapturedAt.UTC().Format(time.RFC3339)
		doc.LocationTS = &ts
	}
	return doc
}
