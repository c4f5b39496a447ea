package handlers

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
)

type BotService interface {
	Notify(ctx context.Context, action gateway.BotAction, requesterID int64, token string) (gateway.BotResult, error)
}

type BotHandler struct {
	svc BotService
}

func RegisterBotRoutes(e *xhttp.Group, h *BotHandler) {
	e.POST("/bot/notify", h.Notify)
}

func NewBotHandler(svc BotService) *BotHandler {
	return &BotHandler{svc: svc}
}

type botNotifyRequest struct {
	Action      string     `json:"action"`
	RequesterID flexNumber `json:"requester_id"`
	Token       string     `json:"token"`
}

type botNotifyResponse struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (h *BotHandler) Notify(ctx *xhttp.RequestCtx) {
	var req botNotifyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeJSON(ctx, 400, botNotifyResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Action == "" || req.RequesterID.Empty() {
		writeJSON(ctx, 400, botNotifyResponse{Error: "action and requester_id are required"})
		return
	}
	requesterID, err := req.RequesterID.Int64()
	if err != nil {
		writeJSON(ctx, 400, botNotifyResponse{Error: "requester_id must be numeric"})
		return
	}

	res, err := h.svc.Notify(ctx, gateway.BotAction(req.Action), requesterID, req.Token)
	if err != nil {
		writeJSON(ctx, 400, botNotifyResponse{Error: err.Error()})
		return
	}

	switch {
	case res.Success:
		writeJSON(ctx, 200, botNotifyResponse{OK: true, Data: res.Data})
	case res.TimedOut:
		writeJSON(ctx, 504, botNotifyResponse{Error: "bot did not answer in time"})
	case res.StatusCode > 0:
		writeJSON(ctx, res.StatusCode, botNotifyResponse{Error: "bot error: " + strconv.Itoa(res.StatusCode), Data: res.Data})
	default:
		msg := "bot unreachable"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		writeJSON(ctx, 500, botNotifyResponse{Error: msg})
	}
}
