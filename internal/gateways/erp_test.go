package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func samplePayload() ExpensePayload {
	return ExpensePayload{
		Name:                       "PEAJE OPERATIVO",
		ProductID:                  9684,
		TotalAmount:                json.Number("15000"),
		EmployeeID:                 17,
		Description:                "Expense registered by J. Perez",
		Date:                       "2025-03-10",
		CoordinateDescription:      "4.65° N, -74.05° E",
		VehicleLocationDescription: "unavailable",
		CompanyID:                  1,
		State:                      "draft",
	}
}

func TestERPGateway_SubmitExpense(t *testing.T) {
	t.Run("success with correlation id", func(t *testing.T) {
		doer := &stubDoer{handler: respondWith(200, `{"result": {"id": 4411}}`)}
		g := NewERPGateway(ERPConfig{URL: "https://erp.local/", SupportsCorrelationID: true}, doer)

		res := g.SubmitExpense(context.Background(), "tok", samplePayload())
		require.True(t, res.Success)
		require.NotNil(t, res.CorrelationID)
		assert.Equal(t, "4411", *res.CorrelationID)

		calls := doer.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "POST", calls[0].Method)
		assert.Equal(t, "https://erp.local/api/gastos/register", calls[0].URI)
		assert.Equal(t, "Bearer tok", calls[0].Auth)
		assert.Equal(t, 15*time.Second, calls[0].Timeout)

		var sent map[string]any
		require.NoError(t, json.Unmarshal([]byte(calls[0].Body), &sent))
		assert.Equal(t, float64(9684), sent["product_id"])
		assert.Equal(t, float64(15000), sent["total_amount"])
		assert.Equal(t, "draft", sent["state"])
		assert.NotContains(t, sent, "attachment")
	})

	t.Run("id ignored when the endpoint does not provide one", func(t *testing.T) {
		doer := &stubDoer{handler: respondWith(200, `{"id": 9}`)}
		g := NewERPGateway(ERPConfig{URL: "https://erp.local"}, doer)

		res := g.SubmitExpense(context.Background(), "tok", samplePayload())
		assert.True(t, res.Success)
		assert.Nil(t, res.CorrelationID)
		assert.False(t, g.SupportsCorrelationID())
	})

	t.Run("non 2xx keeps the raw body and is not retried", func(t *testing.T) {
		doer := &stubDoer{handler: respondWith(422, `{"error":"employee not found"}`)}
		g := NewERPGateway(ERPConfig{URL: "https://erp.local", SupportsCorrelationID: true}, doer)

		res := g.SubmitExpense(context.Background(), "tok", samplePayload())
		assert.False(t, res.Success)
		assert.Equal(t, 422, res.StatusCode)
		assert.Equal(t, `{"error":"employee not found"}`, res.Raw)
		var se *StatusError
		assert.ErrorAs(t, res.Err, &se)
		assert.Len(t, doer.Calls(), 1)
	})

	t.Run("transport failure", func(t *testing.T) {
		doer := &stubDoer{handler: func(*fasthttp.Request, *fasthttp.Response) error { return fasthttp.ErrTimeout }}
		res := NewERPGateway(ERPConfig{URL: "https://erp.local"}, doer).SubmitExpense(context.Background(), "tok", samplePayload())
		assert.False(t, res.Success)
		assert.True(t, isTimeout(res.Err))
	})

	t.Run("unconfigured", func(t *testing.T) {
		doer := &stubDoer{handler: respondWith(200, `{}`)}
		res := NewERPGateway(ERPConfig{}, doer).SubmitExpense(context.Background(), "tok", samplePayload())
		assert.ErrorIs(t, res.Err, ErrNotConfigured)
		assert.Empty(t, doer.Calls())
	})
}

func TestERPGateway_PatchCoordinates(t *testing.T) {
	doer := &stubDoer{handler: respondWith(200, `{"ok":true}`)}
	g := NewERPGateway(ERPConfig{URL: "https://erp.local"}, doer)

	res := g.PatchCoordinates(context.Background(), "tok", "4411", 4.65, -74.05)
	require.True(t, res.Success)

	calls := doer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "PATCH", calls[0].Method)
	assert.Equal(t, "https://erp.local/api/gastos/4411", calls[0].URI)
	assert.JSONEq(t, `{"coordinate_description":"4.65° N, -74.05° E"}`, calls[0].Body)

	doer.handler = respondWith(500, "boom")
	res = g.PatchCoordinates(context.Background(), "tok", "4411", 1, 2)
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Raw)
}

func TestERPGateway_RegisterPin(t *testing.T) {
	doer := &stubDoer{handler: respondWith(200, `{"status":"ok"}`)}
	g := NewERPGateway(ERPConfig{URL: "https://erp.local/"}, doer)

	res := g.RegisterPin(context.Background(), "tok", 18, "80111222", "0000")
	require.True(t, res.Success)
	assert.Equal(t, `{"status":"ok"}`, res.Raw)

	calls := doer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "POST", calls[0].Method)
	assert.Equal(t, "https://erp.local/api/empleados/register?id=18&nif=80111222", calls[0].URI)
	assert.Equal(t, "Bearer tok", calls[0].Auth)
	assert.JSONEq(t, `{"pin":"0000"}`, calls[0].Body)
	assert.Equal(t, 5*time.Second, calls[0].Timeout)

	doer.handler = respondWith(409, "already registered")
	res = g.RegisterPin(context.Background(), "tok", 18, "80111222", "0000")
	assert.False(t, res.Success)
	assert.Equal(t, 409, res.StatusCode)
	assert.Equal(t, "already registered", res.Raw)
}

func TestExtractCorrelationID(t *testing.T) {
	cases := map[string]*string{
		`{"id": 12}`:              strp("12"),
		`{"expense_id": "E-7"}`:   strp("E-7"),
		`{"result": {"id": "x"}}`: strp("x"),
		`{"result": "created"}`:   nil,
		`not json`:                nil,
		`{"id": null}`:            nil,
	}
	for raw, want := range cases {
		got := extractCorrelationID([]byte(raw))
		if want == nil {
			assert.Nil(t, got, raw)
			continue
		}
		require.NotNil(t, got, raw)
		assert.Equal(t, *want, *got, raw)
	}
}

func TestFormatCoordinates(t *testing.T) {
	assert.Equal(t, "4.65° N, -74.05° E", FormatCoordinates(4.65, -74.05))
	assert.Equal(t, "0° N, 10.5° E", FormatCoordinates(0, 10.5))
}

func strp(s string) *string { return &s }
