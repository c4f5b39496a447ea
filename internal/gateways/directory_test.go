package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const directoryBody = `{
	"status": "ok",
	"token": "tok-123",
	"items": [
		{"id": 17, "name": "Juan Pérez", "identification": "1020", "pin_code": 555, "job_title": "Driver"},
		{"id": "18", "name": "Ana Gómez", "pin_code": " 777 ", "job_title": "Escort"}
	]
}`

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newDirectory(doer Doer, cache *RosterCache) *DirectoryGateway {
	return NewDirectoryGateway(DirectoryConfig{
		URL:         "http://directory.local",
		Username:    "svc",
		Password:    "secret",
		Timeout:     time.Second,
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}, doer, cache)
}

func TestDirectoryGateway_FetchDirectory(t *testing.T) {
	t.Run("parses token and roster", func(t *testing.T) {
		doer := &stubDoer{handler: respondWith(200, directoryBody)}
		g := newDirectory(doer, nil)

		res := g.FetchDirectory(context.Background())
		require.NoError(t, res.Err)
		assert.Equal(t, "tok-123", res.Directory.Token)
		require.Len(t, res.Directory.Roster, 2)
		assert.Equal(t, model.Employee{ID: 17, Name: "Juan Pérez", TaxID: "1020", PinCode: "555", JobTitle: "Driver"}, res.Directory.Roster[0])

		calls := doer.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "GET", calls[0].Method)
		assert.Equal(t, "http://directory.local/employees", calls[0].URI)
		assert.Equal(t, "Basic c3ZjOnNlY3JldA==", calls[0].Auth)
		assert.Equal(t, time.Second, calls[0].Timeout)

		e, ok := res.Directory.FindByCode("777")
		require.True(t, ok)
		assert.Equal(t, "Ana Gómez", e.Name)
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		attempts := 0
		doer := &stubDoer{handler: func(req *fasthttp.Request, resp *fasthttp.Response) error {
			attempts++
			if attempts < 3 {
				return fasthttp.ErrTimeout
			}
			return respondWith(200, directoryBody)(req, resp)
		}}
		res := newDirectory(doer, nil).FetchDirectory(context.Background())
		require.NoError(t, res.Err)
		assert.Equal(t, "tok-123", res.Directory.Token)
		assert.Equal(t, 3, attempts)
	})

	t.Run("persistent failure is a soft empty result", func(t *testing.T) {
		doer := &stubDoer{handler: func(*fasthttp.Request, *fasthttp.Response) error {
			return fasthttp.ErrTimeout
		}}
		g := newDirectory(doer, nil)

		var res DirectoryResult
		require.NotPanics(t, func() { res = g.FetchDirectory(context.Background()) })
		assert.Error(t, res.Err)
		assert.Empty(t, res.Directory.Token)
		assert.Empty(t, res.Directory.Roster)
		assert.False(t, res.Directory.Available())
		assert.Len(t, doer.Calls(), 3)
		assert.Equal(t, int64(3), g.Stats().FailedRequests)
	})

	t.Run("missing token counts as failure", func(t *testing.T) {
		doer := &stubDoer{handler: respondWith(200, `{"items": []}`)}
		res := newDirectory(doer, nil).FetchDirectory(context.Background())
		assert.Error(t, res.Err)
		assert.Len(t, doer.Calls(), 3)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		doer := &stubDoer{handler: func(*fasthttp.Request, *fasthttp.Response) error {
			cancel()
			return fasthttp.ErrConnectionClosed
		}}
		res := newDirectory(doer, nil).FetchDirectory(ctx)
		assert.ErrorIs(t, res.Err, context.Canceled)
		assert.Len(t, doer.Calls(), 1)
	})
}

func TestDirectoryGateway_Cache(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	cache := NewRosterCache(5*time.Minute, clock.Now)
	doer := &stubDoer{handler: respondWith(200, directoryBody)}
	g := newDirectory(doer, cache)

	first := g.FetchDirectory(context.Background())
	require.NoError(t, first.Err)
	assert.False(t, first.FromCache)

	clock.now = clock.now.Add(4 * time.Minute)
	second := g.FetchDirectory(context.Background())
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Directory, second.Directory)
	assert.Len(t, doer.Calls(), 1)

	clock.now = clock.now.Add(2 * time.Minute)
	third := g.FetchDirectory(context.Background())
	assert.False(t, third.FromCache)
	assert.Len(t, doer.Calls(), 2)

	cache.Invalidate()
	g.FetchDirectory(context.Background())
	assert.Len(t, doer.Calls(), 3)

	g.Invalidate()
	assert.False(t, g.FetchDirectory(context.Background()).FromCache)
	assert.Len(t, doer.Calls(), 4)
}

func TestRosterCache_IgnoresUnusableSnapshots(t *testing.T) {
	cache := NewRosterCache(time.Minute, nil)
	cache.Store(model.Directory{Roster: []model.Employee{{ID: 1}}})

	_, ok := cache.Get()
	assert.False(t, ok)

	cache.Store(model.Directory{Token: "t"})
	d, ok := cache.Get()
	assert.True(t, ok)
	assert.Equal(t, "t", d.Token)
}
