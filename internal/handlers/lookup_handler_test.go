package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmployeeService struct {
	mock.Mock
}

func (m *MockEmployeeService) LookupByCode(ctx context.Context, code string) services.EmployeeLookup {
	args := m.Called(ctx, code)
	return args.Get(0).(services.EmployeeLookup)
}

type MockLocationService struct {
	mock.Mock
}

func (m *MockLocationService) Latest(ctx context.Context, requesterID string, maxAgeMin int) gateway.LatestFix {
	args := m.Called(ctx, requesterID, maxAgeMin)
	return args.Get(0).(gateway.LatestFix)
}

type stubHealth struct {
	err error
}

func (s stubHealth) Get() error { return s.err }

func (s stubHealth) Upstreams() []gateway.StatsSnapshot {
	return []gateway.StatsSnapshot{{Name: "erp", TotalRequests: 3, FailedRequests: 1}}
}

func TestEmployeeHandler_LookupByCode(t *testing.T) {
	svc := new(MockEmployeeService)
	handler := NewEmployeeHandler(svc)
	svc.On("LookupByCode", mock.Anything, "42").Return(services.EmployeeLookup{Message: "no employee found with code 42"})

	ctx := setupTestContext("GET", "/employees/lookup?code=42", nil)
	handler.LookupByCode(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	out := decodeBody(t, ctx)
	assert.Equal(t, "", out["employee_name"])
	assert.Equal(t, "no employee found with code 42", out["message"])
}

func TestLocationHandler_Latest(t *testing.T) {
	t.Run("requires requester", func(t *testing.T) {
		handler := NewLocationHandler(new(MockLocationService))
		ctx := setupTestContext("GET", "/locations/latest", nil)
		handler.Latest(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("relays the fix", func(t *testing.T) {
		svc := new(MockLocationService)
		handler := NewLocationHandler(svc)
		lat, lon := 4.65, -74.05
		svc.On("Latest", mock.Anything, "9001", 30).Return(gateway.LatestFix{Lat: &lat, Lon: &lon, Fresh: true})

		ctx := setupTestContext("GET", "/locations/latest?requester_id=9001&max_age_min=30", nil)
		handler.Latest(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		out := decodeBody(t, ctx)
		assert.Equal(t, 4.65, out["lat"])
		assert.Equal(t, true, out["fresh"])
	})
}

func TestHealthHandler_GetHealth(t *testing.T) {
	ctx := setupTestContext("GET", "/health", nil)
	NewHealthHandler(stubHealth{}).GetHealth(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Equal(t, "success", string(ctx.Response.Body()))

	ctx = setupTestContext("GET", "/health", nil)
	NewHealthHandler(stubHealth{err: errors.New("db down")}).GetHealth(ctx)
	assert.Equal(t, 503, ctx.Response.StatusCode())
}

func TestHealthHandler_GetUpstreams(t *testing.T) {
	ctx := setupTestContext("GET", "/health/upstreams", nil)
	NewHealthHandler(stubHealth{}).GetUpstreams(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	out := decodeBody(t, ctx)
	upstreams := out["upstreams"].([]any)
	require.Len(t, upstreams, 1)
	assert.Equal(t, "erp", upstreams[0].(map[string]any)["name"])
	assert.Equal(t, float64(1), upstreams[0].(map[string]any)["failed_requests"])
}
