package handlers

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

var errNotNumeric = errors.New("not a number")

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func writeErrorDetail(ctx *xhttp.RequestCtx, status int, msg, detail string) {
	writeJSON(ctx, status, map[string]string{"error": msg, "detail": detail})
}

// requireBearer checks the Authorization header against the shared
// SYNC_SECRET_TOKEN and answers the request itself when the check fails.
func requireBearer(ctx *xhttp.RequestCtx, secret string) bool {
	if secret == "" {
		logger.Error("protected route called but SYNC_SECRET_TOKEN is not set", "path", string(ctx.Path()))
		writeError(ctx, 500, "Server configuration error")
		return false
	}
	got := ctx.Request.Header.Peek("Authorization")
	if subtle.ConstantTimeCompare(got, []byte("Bearer "+secret)) != 1 {
		writeError(ctx, 401, "Unauthorized")
		return false
	}
	return true
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// flexNumber keeps a JSON number or numeric string as text. Form clients
// send amounts and coordinates either way. Empty means absent.
type flexNumber string

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexNumber(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errNotNumeric
		}
		*f = flexNumber(n)
	}
	return nil
}

func (f flexNumber) Empty() bool {
	return f == ""
}

func (f flexNumber) Float() (float64, error) {
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return 0, errNotNumeric
	}
	return v, nil
}

func (f flexNumber) Int64() (int64, error) {
	v, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0, errNotNumeric
	}
	return v, nil
}

func (f flexNumber) Decimal() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(string(f))
	if err != nil {
		return decimal.Zero, errNotNumeric
	}
	return v, nil
}
