package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/prom"
)

type SearchConfig struct {
	URL      string
	Index    string
	APIKey   string
	Username string
	Password string
	Timeout  time.Duration
}

// SearchDocument is the indexed view of an expense record. id_pg doubles as
// the document id, so re-indexing a record overwrites it.
type SearchDocument struct {
	RecordID         int64     `json:"id_pg"`
	CorrelationToken string    `json:"correlation_token"`
	EmployeeName     string    `json:"employee_name"`
	RequesterID      *int64    `json:"requester_id"`
	Category         string    `json:"category"`
	Amount           float64   `json:"amount"`
	Location         *GeoPoint `json:"location"`
	LocationTS       *string   `json:"location_ts"`
	CreatedAt        string    `json:"created_at"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IndexResult reports a bulk call. Errors lists per document failures, Err a
// failure of the whole call.
type IndexResult struct {
	Indexed int
	Errors  []string
	Err     error
}

func (r IndexResult) Failed() bool {
	return r.Err != nil || len(r.Errors) > 0
}

type SearchGateway struct {
	cfg   SearchConfig
	es    *elasticsearch.Client
	stats *Stats
}

// NewSearchGateway builds the Elasticsearch client. A nil transport uses
// http.DefaultTransport. An empty URL yields a gateway whose calls return
// ErrNotConfigured.
func NewSearchGateway(cfg SearchConfig, transport http.RoundTripper) (*SearchGateway, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	g := &SearchGateway{cfg: cfg, stats: &Stats{}}
	if cfg.URL == "" {
		return g, nil
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{strings.TrimRight(cfg.URL, "/")},
		APIKey:       cfg.APIKey,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableRetry: true,
		Transport:    &instrumentedTransport{name: "search", next: transport, stats: g.stats},
	})
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}
	g.es = es
	return g, nil
}

var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"employee_name":     map[string]string{"type": "keyword"},
			"requester_id":      map[string]string{"type": "long"},
			"category":          map[string]string{"type": "keyword"},
			"amount":            map[string]string{"type": "float"},
			"location":          map[string]string{"type": "geo_point"},
			"location_ts":       map[string]string{"type": "date"},
			"created_at":        map[string]string{"type": "date"},
			"id_pg":             map[string]string{"type": "long"},
			"correlation_token": map[string]string{"type": "keyword"},
		},
	},
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (g *SearchGateway) EnsureIndex(ctx context.Context) error {
	if g.es == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	res, err := g.es.Indices.Exists([]string{g.cfg.Index}, g.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	drain(res.Body)
	switch {
	case res.StatusCode == http.StatusOK:
		return nil
	case res.StatusCode != http.StatusNotFound:
		return &StatusError{Code: res.StatusCode}
	}

	body, _ := json.Marshal(indexMapping)
	res, err = g.es.Indices.Create(g.cfg.Index,
		g.es.Indices.Create.WithBody(bytes.NewReader(body)),
		g.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		if strings.Contains(string(raw), "resource_already_exists_exception") {
			return nil
		}
		return &StatusError{Code: res.StatusCode, Body: string(raw)}
	}
	logger.Info("search index created", "index", g.cfg.Index)
	return nil
}

// BulkIndex writes docs through one bulk indexer and waits for them to be
// searchable.
func (g *SearchGateway) BulkIndex(ctx context.Context, docs []SearchDocument) IndexResult {
	if len(docs) == 0 {
		return IndexResult{}
	}
	if g.es == nil {
		return IndexResult{Err: ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		docErrs  []string
		flushErr error
	)
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     g.es,
		Index:      g.cfg.Index,
		Refresh:    "wait_for",
		NumWorkers: 1,
	})
	if err != nil {
		return IndexResult{Err: err}
	}

	for _, d := range docs {
		body, err := json.Marshal(d)
		if err != nil {
			_ = bi.Close(ctx)
			return IndexResult{Err: err}
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: strconv.FormatInt(d.RecordID, 10),
			Body:       bytes.NewReader(body),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, resp esutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					flushErr = err
					return
				}
				docErrs = append(docErrs, fmt.Sprintf("%s: %s: %s", item.DocumentID, resp.Error.Type, resp.Error.Reason))
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return IndexResult{Err: err}
		}
	}
	if err := bi.Close(ctx); err != nil {
		return IndexResult{Err: err}
	}

	if flushErr != nil {
		logger.Warn("bulk index failed", "gateway", "search", "docs", len(docs), "error", flushErr)
		return IndexResult{Err: flushErr}
	}
	return IndexResult{Indexed: int(bi.Stats().NumIndexed), Errors: docErrs}
}

func (g *SearchGateway) Stats() StatsSnapshot {
	return g.stats.snapshot("search")
}

// instrumentedTransport feeds the gateway counters for clients that speak
// net/http instead of going through an endpoint.
type instrumentedTransport struct {
	name  string
	next  http.RoundTripper
	stats *Stats
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	latency := time.Since(start)

	switch {
	case err != nil:
		t.stats.recordFailure(latency)
		prom.ObserveGatewayRequest(t.name, "error", latency.Seconds())
	case resp.StatusCode >= 500:
		t.stats.recordFailure(latency)
		prom.ObserveGatewayRequest(t.name, "status", latency.Seconds())
	default:
		t.stats.recordSuccess(latency)
		prom.ObserveGatewayRequest(t.name, "success", latency.Seconds())
	}
	return resp, err
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
