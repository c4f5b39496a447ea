package gateway

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type TrackingConfig struct {
	URL            string
	VehicleTimeout time.Duration
	FixTimeout     time.Duration
}

// LatestFix is the last GPS fix the bot stored for a requester. Null fields
// mean no fresh fix is known.
type LatestFix struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	TS    *string  `json:"ts"`
	Fresh bool     `json:"fresh"`
}

// TrackingGateway reads the fleet tracker and the bot location store. Both
// lookups are best effort and collapse every failure into an empty answer.
type TrackingGateway struct {
	cfg TrackingConfig
	ep  *endpoint
}

func NewTrackingGateway(cfg TrackingConfig, client Doer) *TrackingGateway {
	if cfg.VehicleTimeout <= 0 {
		cfg.VehicleTimeout = 10 * time.Second
	}
	if cfg.FixTimeout <= 0 {
		cfg.FixTimeout = 3 * time.Second
	}
	return &TrackingGateway{
		cfg: cfg,
		ep:  newEndpoint("tracking", strings.TrimRight(cfg.URL, "/"), client),
	}
}

type vehicleResponse struct {
	Success  bool   `json:"success"`
	Plate    string `json:"plate"`
	Location *struct {
		Lat       float64 `json:"lat"`
		Lon       float64 `json:"lon"`
		Timestamp string  `json:"timestamp"`
	} `json:"location"`
}

// VehicleLocation returns the current position of the vehicle assigned to
// the requester, or nil when unknown.
func (g *TrackingGateway) VehicleLocation(ctx context.Context, requesterID int64) *model.VehicleLocation {
	_, body, err := g.ep.do(ctx, request{
		method:  "GET",
		path:    "/vehicle_location?requester_id=" + strconv.FormatInt(requesterID, 10),
		timeout: g.cfg.VehicleTimeout,
	})
	if err != nil {
		logger.Warn("vehicle location unavailable", "gateway", "tracking", "requester_id", requesterID, "error", err)
		return nil
	}

	var resp vehicleResponse
	if err := json.Unmarshal(body, &resp); err != nil || !resp.Success || resp.Location == nil {
		return nil
	}

	captured, err := time.Parse(time.RFC3339, resp.Location.Timestamp)
	if err != nil {
		captured = time.Now().UTC()
	}
	return &model.VehicleLocation{
		Lat:        resp.Location.Lat,
		Lon:        resp.Location.Lon,
		Plate:      resp.Plate,
		CapturedAt: captured.UTC(),
	}
}

// LatestFix asks the bot location store for the requester's last fix no
// older than maxAgeMin minutes.
func (g *TrackingGateway) LatestFix(ctx context.Context, requesterID string, maxAgeMin int) LatestFix {
	q := url.Values{}
	q.Set("requester_id", requesterID)
	q.Set("max_age_min", strconv.Itoa(maxAgeMin))

	_, body, err := g.ep.do(ctx, request{
		method:  "GET",
		path:    "/latest_location?" + q.Encode(),
		timeout: g.cfg.FixTimeout,
	})
	if err != nil {
		return LatestFix{}
	}

	var fix LatestFix
	if err := json.Unmarshal(body, &fix); err != nil {
		return LatestFix{}
	}
	return fix
}

func (g *TrackingGateway) Stats() StatsSnapshot {
	return g.ep.snapshot()
}
