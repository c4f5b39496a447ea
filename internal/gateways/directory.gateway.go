package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type DirectoryConfig struct {
	URL         string
	Username    string
	Password    string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// DirectoryResult is the outcome of a directory fetch. After exhausted
// retries Directory is empty and Err holds the last failure.
type DirectoryResult struct {
	Directory model.Directory
	FromCache bool
	Err       error
}

type DirectoryGateway struct {
	cfg   DirectoryConfig
	ep    *endpoint
	cache *RosterCache
}

func NewDirectoryGateway(cfg DirectoryConfig, client Doer, cache *RosterCache) *DirectoryGateway {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &DirectoryGateway{
		cfg:   cfg,
		ep:    newEndpoint("directory", cfg.URL, client),
		cache: cache,
	}
}

type directoryResponse struct {
	Token string           `json:"token"`
	Items []directoryEntry `json:"items"`
}

// flexString accepts both JSON strings and numbers, the directory emits
// either for codes and ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

type directoryEntry struct {
	ID       flexString `json:"id"`
	Name     string     `json:"name"`
	TaxID    flexString `json:"identification"`
	PinCode  flexString `json:"pin_code"`
	JobTitle string     `json:"job_title"`
}

// FetchDirectory returns the token and roster, served from the cache while it
// is fresh. Failures never surface as errors: after MaxAttempts the result
// carries an empty directory.
func (g *DirectoryGateway) FetchDirectory(ctx context.Context) DirectoryResult {
	if g.cache != nil {
		if d, ok := g.cache.Get(); ok {
			return DirectoryResult{Directory: d, FromCache: true}
		}
	}

	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := g.cfg.Backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return DirectoryResult{Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		d, err := g.fetchOnce(ctx)
		if err == nil {
			if g.cache != nil {
				g.cache.Store(d)
			}
			return DirectoryResult{Directory: d}
		}
		lastErr = err
		logger.Warn("directory fetch failed", "gateway", "directory", "attempt", attempt+1, "error", err)
	}

	logger.Error("directory unavailable", "gateway", "directory", "attempts", g.cfg.MaxAttempts, "error", lastErr)
	return DirectoryResult{Err: fmt.Errorf("after %d attempts: %w", g.cfg.MaxAttempts, lastErr)}
}

func (g *DirectoryGateway) fetchOnce(ctx context.Context) (model.Directory, error) {
	headers := map[string]string{}
	if g.cfg.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(g.cfg.Username + ":" + g.cfg.Password))
		headers["Authorization"] = "Basic " + cred
	}

	_, body, err := g.ep.do(ctx, request{
		method:  "GET",
		path:    "/employees",
		headers: headers,
		timeout: g.cfg.Timeout,
	})
	if err != nil {
		return model.Directory{}, err
	}

	var resp directoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Directory{}, fmt.Errorf("decode directory response: %w", err)
	}
	if resp.Token == "" {
		return model.Directory{}, fmt.Errorf("directory response carries no token")
	}

	roster := make([]model.Employee, 0, len(resp.Items))
	for _, it := range resp.Items {
		id, _ := strconv.ParseInt(string(it.ID), 10, 64)
		roster = append(roster, model.Employee{
			ID:       id,
			Name:     it.Name,
			TaxID:    string(it.TaxID),
			PinCode:  string(it.PinCode),
			JobTitle: it.JobTitle,
		})
	}
	return model.Directory{Token: resp.Token, Roster: roster}, nil
}

// Invalidate drops the cached roster so the next fetch goes upstream.
func (g *DirectoryGateway) Invalidate() {
	if g.cache != nil {
		g.cache.Invalidate()
	}
}

func (g *DirectoryGateway) Stats() StatsSnapshot {
	return g.ep.snapshot()
}
