package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidUser = errors.New("registered user needs a requester id and a name")

type UserRepository struct {
	*pg.DB
	now func() time.Time
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		DB:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// FindByRequesterID returns the enrolled user or nil, nil when there is none.
func (r *UserRepository) FindByRequesterID(ctx context.Context, requesterID int64) (*model.RegisteredUser, error) {
	var entity RegisteredUserEntity
	err := r.Read(ctx).Where("requester_id = ?", requesterID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toRegisteredUserModel(&entity), nil
}

func (r *UserRepository) List(ctx context.Context) ([]*model.RegisteredUser, error) {
	var entities []*RegisteredUserEntity
	if err := r.Read(ctx).Order("requester_id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]*model.RegisteredUser, len(entities))
	for i, e := range entities {
		out[i] = toRegisteredUserModel(e)
	}
	return out, nil
}

// Register enrolls a user. Enrolling a requester again replaces its name and
// tax id.
func (r *UserRepository) Register(ctx context.Context, u *model.RegisteredUser) (*model.RegisteredUser, error) {
	name := strings.TrimSpace(u.Name)
	if u.RequesterID <= 0 || name == "" {
		return nil, ErrInvalidUser
	}
	entity := &RegisteredUserEntity{
		Model:       pg.Model{CreatedAt: r.now()},
		RequesterID: u.RequesterID,
		Name:        name,
	}
	if tax := strings.TrimSpace(u.TaxID); tax != "" {
		entity.TaxID = &tax
	}

	err := r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "requester_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "tax_id"}),
	}).Create(entity).Error
	if err != nil {
		return nil, fmt.Errorf("register user %d: %w", u.RequesterID, err)
	}
	return r.FindByRequesterID(ctx, u.RequesterID)
}
