package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pinDirectory() gateway.DirectoryResult {
	return gateway.DirectoryResult{Directory: model.Directory{
		Token: "tok",
		Roster: []model.Employee{
			{ID: 17, Name: "ANA MARÍA GÓMEZ", PinCode: "9001"},
			{ID: 18, Name: "Jorge  Pérez"},
			{ID: 19, Name: "Lucía Rojas"},
		},
	}}
}

func enrolledUsers() []*model.RegisteredUser {
	return []*model.RegisteredUser{
		{RequesterID: 100, Name: "Ana Maria Gomez"},
		{RequesterID: 200, Name: "jorge perez", TaxID: "80111222"},
		{RequesterID: 300, Name: "Lucia Rojas"},
		{RequesterID: 400, Name: "Pedro Nadie"},
	}
}

func TestPinSyncService_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("registers users without a pin", func(t *testing.T) {
		users := new(MockUserRepository)
		erp := new(MockPinRegistrar)
		dir := &cachingDirectory{res: pinDirectory()}
		users.On("List", ctx).Return(enrolledUsers(), nil)
		erp.On("RegisterPin", ctx, "tok", int64(18), "80111222", "4321").Return(gateway.PinResult{Success: true, Raw: "ok"})
		erp.On("RegisterPin", ctx, "tok", int64(19), "300", "4321").Return(gateway.PinResult{StatusCode: 409, Raw: "duplicate"})

		report, err := NewPinSyncService(users, dir, erp).Run(ctx, model.PinSyncRequest{Pin: "4321"})
		require.NoError(t, err)

		assert.Equal(t, 4, report.Processed)
		assert.Equal(t, 1, report.Registered)
		assert.Equal(t, 1, report.AlreadyHavePin)
		assert.Equal(t, 1, report.NoMatch)
		assert.Equal(t, 1, report.Errors)
		require.Len(t, report.Details, 4)
		assert.Equal(t, model.PinSyncHasPin, report.Details[0].Action)
		assert.Equal(t, model.PinSyncRegistered, report.Details[1].Action)
		assert.Equal(t, model.PinSyncError, report.Details[2].Action)
		assert.Equal(t, "duplicate", report.Details[2].Detail)
		assert.Equal(t, model.PinSyncNoMatch, report.Details[3].Action)
		assert.Equal(t, 2, dir.invalidated)
		erp.AssertExpectations(t)
	})

	t.Run("dry run never calls the erp", func(t *testing.T) {
		users := new(MockUserRepository)
		erp := new(MockPinRegistrar)
		users.On("List", ctx).Return(enrolledUsers(), nil)

		report, err := NewPinSyncService(users, &cachingDirectory{res: pinDirectory()}, erp).Run(ctx, model.PinSyncRequest{DryRun: true})
		require.NoError(t, err)
		assert.True(t, report.DryRun)
		assert.Zero(t, report.Registered)
		assert.Equal(t, model.PinSyncWouldRegister, report.Details[1].Action)
		assert.Contains(t, report.Details[1].Detail, "employee 18")
		erp.AssertNotCalled(t, "RegisterPin", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("name filter and default pin", func(t *testing.T) {
		users := new(MockUserRepository)
		erp := new(MockPinRegistrar)
		users.On("List", ctx).Return(enrolledUsers(), nil)
		erp.On("RegisterPin", ctx, "tok", int64(18), "80111222", DefaultPin).Return(gateway.PinResult{Success: true})

		report, err := NewPinSyncService(users, &cachingDirectory{res: pinDirectory()}, erp).Run(ctx, model.PinSyncRequest{Names: []string{" JORGE PÉREZ "}})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Processed)
		assert.Equal(t, 1, report.Registered)
		erp.AssertExpectations(t)
	})

	t.Run("directory down", func(t *testing.T) {
		users := new(MockUserRepository)
		_, err := NewPinSyncService(users, &cachingDirectory{res: gateway.DirectoryResult{Err: errors.New("timeout")}}, new(MockPinRegistrar)).
			Run(ctx, model.PinSyncRequest{})
		assert.ErrorIs(t, err, ErrDirectoryUnavailable)
		users.AssertNotCalled(t, "List", mock.Anything)
	})

	t.Run("user store down", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("List", ctx).Return(nil, errors.New("db down"))
		_, err := NewPinSyncService(users, &cachingDirectory{res: pinDirectory()}, new(MockPinRegistrar)).Run(ctx, model.PinSyncRequest{})
		assert.ErrorIs(t, err, ErrPersistence)
	})
}

func TestPinSyncService_Summary(t *testing.T) {
	ctx := context.Background()
	users := new(MockUserRepository)
	users.On("List", ctx).Return(enrolledUsers(), nil)

	sum, err := NewPinSyncService(users, &cachingDirectory{res: pinDirectory()}, new(MockPinRegistrar)).Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.RegisteredUsers)
	assert.Equal(t, 3, sum.DirectoryEmployees)
	assert.Equal(t, 1, sum.WithPin)
	assert.Equal(t, 2, sum.WithoutPin)
	assert.Equal(t, 1, sum.NoMatch)
	assert.Equal(t, []string{"jorge perez", "Lucia Rojas"}, sum.PendingNames)
}

func TestUserService(t *testing.T) {
	ctx := context.Background()

	t.Run("registered", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("FindByRequesterID", ctx, int64(555)).Return(&model.RegisteredUser{RequesterID: 555, Name: " Jorge Pérez "}, nil)
		svc := NewUserService(users)

		reg, err := svc.CheckRegistration(ctx, 555)
		require.NoError(t, err)
		assert.Equal(t, Registration{Registered: true, Name: "Jorge Pérez", RequesterID: 555}, reg)
		assert.Equal(t, "Jorge Pérez", svc.EmployeeName(ctx, 555))
	})

	t.Run("unknown", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("FindByRequesterID", ctx, int64(1)).Return(nil, nil)
		svc := NewUserService(users)

		reg, err := svc.CheckRegistration(ctx, 1)
		require.NoError(t, err)
		assert.False(t, reg.Registered)
		assert.Equal(t, "user is not registered", reg.Message)
		assert.Empty(t, svc.EmployeeName(ctx, 1))
	})

	t.Run("store failure", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("FindByRequesterID", ctx, int64(1)).Return(nil, errors.New("db down"))
		svc := NewUserService(users)

		_, err := svc.CheckRegistration(ctx, 1)
		assert.ErrorIs(t, err, ErrPersistence)
		assert.Empty(t, svc.EmployeeName(ctx, 1))
	})
}
