package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type BotAction string

const (
	BotActionSetPendingLocation BotAction = "set_pending_location"
	BotActionRequestLocation    BotAction = "request_location"
)

var (
	ErrUnknownBotAction = errors.New("unknown bot action")
	ErrMissingToken     = errors.New("token is required for set_pending_location")
)

type BotConfig struct {
	URL     string
	Timeout time.Duration
}

// BotResult carries the bot answer. StatusCode is zero when no answer came.
type BotResult struct {
	Success    bool
	StatusCode int
	TimedOut   bool
	Data       json.RawMessage
	Err        error
}

type BotGateway struct {
	cfg BotConfig
	ep  *endpoint
}

func NewBotGateway(cfg BotConfig, client Doer) *BotGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &BotGateway{
		cfg: cfg,
		ep:  newEndpoint("bot", strings.TrimRight(cfg.URL, "/"), client),
	}
}

func (g *BotGateway) Enabled() bool {
	return g.cfg.URL != ""
}

// Notify forwards an action to the messaging bot.
func (g *BotGateway) Notify(ctx context.Context, action BotAction, requesterID int64, token string) BotResult {
	payload := map[string]any{"requester_id": requesterID}
	switch action {
	case BotActionSetPendingLocation:
		if token == "" {
			return BotResult{Err: ErrMissingToken}
		}
		payload["token"] = token
	case BotActionRequestLocation:
	default:
		return BotResult{Err: ErrUnknownBotAction}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return BotResult{Err: err}
	}

	status, raw, err := g.ep.do(ctx, request{
		method:  "POST",
		path:    "/" + string(action),
		body:    body,
		timeout: g.cfg.Timeout,
	})

	res := BotResult{StatusCode: status, Data: asJSON(raw), Err: err, Success: err == nil}
	if err != nil {
		res.TimedOut = isTimeout(err)
		logger.Warn("bot notification failed", "gateway", "bot", "action", action, "status", status, "error", err)
	}
	return res
}

func (g *BotGateway) Stats() StatsSnapshot {
	return g.ep.snapshot()
}

// asJSON keeps raw as is when it is valid JSON and wraps it otherwise.
func asJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return raw
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(raw)})
	return wrapped
}
