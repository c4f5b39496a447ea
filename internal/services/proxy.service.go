package services

import (
	"context"
	"strings"

	"github.com/nimasrn/expense-gateway/internal/gateways"
)

type LatestFixReader interface {
	LatestFix(ctx context.Context, requesterID string, maxAgeMin int) gateway.LatestFix
}

type BotService struct {
	bot BotNotifier
}

func NewBotService(bot BotNotifier) *BotService {
	return &BotService{bot: bot}
}

// Notify relays an action to the bot after checking it is well formed.
func (s *BotService) Notify(ctx context.Context, action gateway.BotAction, requesterID int64, token string) (gateway.BotResult, error) {
	switch action {
	case gateway.BotActionSetPendingLocation:
		if strings.TrimSpace(token) == "" {
			return gateway.BotResult{}, gateway.ErrMissingToken
		}
	case gateway.BotActionRequestLocation:
	default:
		return gateway.BotResult{}, gateway.ErrUnknownBotAction
	}
	if !s.bot.Enabled() {
		return gateway.BotResult{Err: gateway.ErrNotConfigured}, nil
	}
	return s.bot.Notify(ctx, action, requesterID, token), nil
}

type LocationService struct {
	tracker LatestFixReader
}

func NewLocationService(tracker LatestFixReader) *LocationService {
	return &LocationService{tracker: tracker}
}

func (s *LocationService) Latest(ctx context.Context, requesterID string, maxAgeMin int) gateway.LatestFix {
	if maxAgeMin <= 0 {
		maxAgeMin = 60
	}
	return s.tracker.LatestFix(ctx, requesterID, maxAgeMin)
}
