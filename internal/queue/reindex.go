package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ReindexJob asks the processor to push one located record to the search index.
type ReindexJob struct {
	RecordID  int64     `json:"record_id"`
	LocatedAt time.Time `json:"located_at"`
}

// Key identifies a job for deduplication. The same record located twice
// yields two distinct keys.
func (j ReindexJob) Key() string {
	return strconv.FormatInt(j.RecordID, 10) + ":" + strconv.FormatInt(j.LocatedAt.UnixNano(), 10)
}

type ReindexPublisher struct {
	q *Queue
}

func NewReindexPublisher(q *Queue) *ReindexPublisher {
	return &ReindexPublisher{q: q}
}

func (p *ReindexPublisher) PublishReindex(ctx context.Context, recordID int64, locatedAt time.Time) error {
	_, err := p.q.PublishJSON(ctx, ReindexJob{RecordID: recordID, LocatedAt: locatedAt.UTC()}, map[string]string{
		"type": "reindex",
	})
	return err
}

func DecodeReindexJob(msg *Message) (ReindexJob, error) {
	var job ReindexJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		return job, fmt.Errorf("invalid reindex job %s: %w", msg.ID, err)
	}
	if job.RecordID <= 0 {
		return job, fmt.Errorf("invalid reindex job %s: missing record id", msg.ID)
	}
	return job, nil
}
