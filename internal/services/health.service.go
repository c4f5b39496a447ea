package services

import (
	"context"
	"time"

	"github.com/nimasrn/expense-gateway/internal/gateways"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamReporter exposes the call counters of one outbound gateway.
type UpstreamReporter interface {
	Stats() gateway.StatsSnapshot
}

type HealthService struct {
	db        Pinger
	upstreams []UpstreamReporter
}

func NewHealthService(db Pinger, upstreams ...UpstreamReporter) *HealthService {
	return &HealthService{db: db, upstreams: upstreams}
}

func (s *HealthService) Get() error {
	if s.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.db.Ping(ctx)
}

func (s *HealthService) Upstreams() []gateway.StatsSnapshot {
	out := make([]gateway.StatsSnapshot, 0, len(s.upstreams))
	for _, u := range s.upstreams {
		out = append(out, u.Stats())
	}
	return out
}
