package services

import (
	"context"
	"time"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) InsertBatch(ctx context.Context, records []*model.ExpenseRecord) ([]*model.ExpenseRecord, error) {
	args := m.Called(ctx, records)
	if fn, ok := args.Get(0).(func([]*model.ExpenseRecord) []*model.ExpenseRecord); ok {
		return fn(records), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ExpenseRecord), args.Error(1)
}

func (m *MockExpenseRepository) FindByID(ctx context.Context, id int64) (*model.ExpenseRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExpenseRecord), args.Error(1)
}

func (m *MockExpenseRepository) FindByIDs(ctx context.Context, ids []int64) ([]*model.ExpenseRecord, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ExpenseRecord), args.Error(1)
}

func (m *MockExpenseRepository) FindPendingByToken(ctx context.Context, token string, requesterID int64) (*model.ExpenseRecord, error) {
	args := m.Called(ctx, token, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExpenseRecord), args.Error(1)
}

func (m *MockExpenseRepository) FindPendingByRequesterRecent(ctx context.Context, requesterID int64, window time.Duration) ([]*model.ExpenseRecord, error) {
	args := m.Called(ctx, requesterID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ExpenseRecord), args.Error(1)
}

func (m *MockExpenseRepository) FindLocatedByRequesterRecent(ctx context.Context, requesterID int64, window time.Duration) ([]*model.ExpenseRecord, error) {
	args := m.Called(ctx, requesterID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ExpenseRecord), args.Error(1)
}

func (m *MockExpenseRepository) AttachLocation(ctx context.Context, id int64, requesterID int64, loc model.Location) (bool, error) {
	args := m.Called(ctx, id, requesterID, loc)
	return args.Bool(0), args.Error(1)
}

func (m *MockExpenseRepository) MarkSubmitted(ctx context.Context, id int64, correlationID *string) (bool, error) {
	args := m.Called(ctx, id, correlationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockExpenseRepository) FindUnsyncedWithErpID(ctx context.Context, maxAge time.Duration, limit int) ([]*model.ExpenseRecord, error) {
	args := m.Called(ctx, maxAge, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ExpenseRecord), args.Error(1)
}

func (m *MockExpenseRepository) MarkCoordinatesSynced(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockExpenseRepository) SyncStats(ctx context.Context, since time.Time) (model.SyncStats, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(model.SyncStats), args.Error(1)
}

func (m *MockExpenseRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FetchDirectory(ctx context.Context) gateway.DirectoryResult {
	args := m.Called(ctx)
	return args.Get(0).(gateway.DirectoryResult)
}

type MockERP struct {
	mock.Mock
}

func (m *MockERP) SubmitExpense(ctx context.Context, token string, payload gateway.ExpensePayload) gateway.SubmitResult {
	args := m.Called(ctx, token, payload)
	return args.Get(0).(gateway.SubmitResult)
}

func (m *MockERP) PatchCoordinates(ctx context.Context, token, correlationID string, lat, lon float64) gateway.PatchResult {
	args := m.Called(ctx, token, correlationID, lat, lon)
	return args.Get(0).(gateway.PatchResult)
}

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, rec *model.ExpenseRecord, emp model.Employee, token string) model.SubmissionOutcome {
	args := m.Called(ctx, rec, emp, token)
	return args.Get(0).(model.SubmissionOutcome)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishReindex(ctx context.Context, recordID int64, locatedAt time.Time) error {
	args := m.Called(ctx, recordID, locatedAt)
	return args.Error(0)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) EnsureIndex(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIndexer) BulkIndex(ctx context.Context, docs []gateway.SearchDocument) gateway.IndexResult {
	args := m.Called(ctx, docs)
	return args.Get(0).(gateway.IndexResult)
}

type MockBot struct {
	mock.Mock
}

func (m *MockBot) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *MockBot) Notify(ctx context.Context, action gateway.BotAction, requesterID int64, token string) gateway.BotResult {
	args := m.Called(ctx, action, requesterID, token)
	return args.Get(0).(gateway.BotResult)
}

type MockVehicleLocator struct {
	mock.Mock
}

func (m *MockVehicleLocator) VehicleLocation(ctx context.Context, requesterID int64) *model.VehicleLocation {
	args := m.Called(ctx, requesterID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*model.VehicleLocation)
}

func int64p(v int64) *int64 { return &v }

func strp(v string) *string { return &v }

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByRequesterID(ctx context.Context, requesterID int64) (*model.RegisteredUser, error) {
	args := m.Called(ctx, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RegisteredUser), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]*model.RegisteredUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RegisteredUser), args.Error(1)
}

type MockPinRegistrar struct {
	mock.Mock
}

func (m *MockPinRegistrar) RegisterPin(ctx context.Context, token string, employeeID int64, identifier, pin string) gateway.PinResult {
	args := m.Called(ctx, token, employeeID, identifier, pin)
	return args.Get(0).(gateway.PinResult)
}

// cachingDirectory counts invalidations the way a cached directory sees them.
type cachingDirectory struct {
	res         gateway.DirectoryResult
	invalidated int
}

func (d *cachingDirectory) FetchDirectory(context.Context) gateway.DirectoryResult {
	return d.res
}

func (d *cachingDirectory) Invalidate() {
	d.invalidated++
}
