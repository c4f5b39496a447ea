package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/expense-gateway/internal/queue"
	"github.com/nimasrn/expense-gateway/internal/services"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/prom"
)

const (
	JobIndexed = "indexed"
	JobSkipped = "skipped"
	JobFailed  = "failed"
	JobInvalid = "invalid"
)

type Reindexer interface {
	ReindexRecords(ctx context.Context, ids []int64) (*services.ReindexReport, error)
}

// ReindexProcessor pushes a freshly located record to the search index.
type ReindexProcessor struct {
	reindexer   Reindexer
	idempotency *IdempotencyService
}

func NewReindexProcessor(reindexer Reindexer, idempotency *IdempotencyService) *ReindexProcessor {
	return &ReindexProcessor{reindexer: reindexer, idempotency: idempotency}
}

func (p *ReindexProcessor) GetType() string {
	return "reindex"
}

func (p *ReindexProcessor) Process(ctx context.Context, msg *queue.Message) error {
	job, err := queue.DecodeReindexJob(msg)
	if err != nil {
		logger.Error("dropping malformed reindex job", "id", msg.ID, "error", err)
		prom.IncReindexJob(JobInvalid)
		return nil
	}

	pc, err := p.idempotency.AcquireProcessingLock(ctx, job.Key())
	if errors.Is(err, ErrAlreadyProcessed) {
		prom.IncReindexJob(JobSkipped)
		return nil
	}
	if err != nil {
		return err
	}

	report, err := p.reindexer.ReindexRecords(ctx, []int64{job.RecordID})
	if err == nil && len(report.Errors) > 0 {
		err = fmt.Errorf("record %d rejected by index: %s", job.RecordID, report.Errors[0])
	}
	if err != nil {
		_ = p.idempotency.MarkFailure(ctx, pc, err)
		prom.IncReindexJob(JobFailed)
		return err
	}

	if report.Found == 0 {
		logger.Warn("reindex job for unknown record", "record_id", job.RecordID)
		prom.IncReindexJob(JobSkipped)
	} else {
		prom.IncReindexJob(JobIndexed)
	}
	if err := p.idempotency.MarkSuccess(ctx, pc); err != nil {
		logger.Warn("failed to mark reindex job done", "record_id", job.RecordID, "error", err)
	}
	return nil
}
