package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(NewTestDB(t).DB)

	t.Run("unknown requester", func(t *testing.T) {
		u, err := repo.FindByRequesterID(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("register and find", func(t *testing.T) {
		u, err := repo.Register(ctx, &model.RegisteredUser{RequesterID: 555, Name: "  Jorge Pérez ", TaxID: "80111222"})
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.NotZero(t, u.ID)
		assert.Equal(t, "Jorge Pérez", u.Name)
		assert.Equal(t, "80111222", u.Identifier())

		found, err := repo.FindByRequesterID(ctx, 555)
		require.NoError(t, err)
		assert.Equal(t, u.ID, found.ID)
	})

	t.Run("registering again replaces the name", func(t *testing.T) {
		_, err := repo.Register(ctx, &model.RegisteredUser{RequesterID: 555, Name: "Jorge A. Pérez"})
		require.NoError(t, err)

		found, err := repo.FindByRequesterID(ctx, 555)
		require.NoError(t, err)
		assert.Equal(t, "Jorge A. Pérez", found.Name)
		assert.Equal(t, "555", found.Identifier())
	})

	t.Run("invalid user", func(t *testing.T) {
		_, err := repo.Register(ctx, &model.RegisteredUser{RequesterID: 0, Name: "x"})
		assert.ErrorIs(t, err, ErrInvalidUser)
		_, err = repo.Register(ctx, &model.RegisteredUser{RequesterID: 7, Name: " "})
		assert.ErrorIs(t, err, ErrInvalidUser)
	})

	t.Run("list is ordered by requester", func(t *testing.T) {
		_, err := repo.Register(ctx, &model.RegisteredUser{RequesterID: 100, Name: "Ana María Gómez"})
		require.NoError(t, err)

		users, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, int64(100), users[0].RequesterID)
		assert.Equal(t, int64(555), users[1].RequesterID)
	})
}
