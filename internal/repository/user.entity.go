package repository

import (
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/pg"
)

type RegisteredUserEntity struct {
	pg.Model
	RequesterID int64   `gorm:"column:requester_id;not null;uniqueIndex"`
	Name        string  `gorm:"column:name;not null"`
	TaxID       *string `gorm:"column:tax_id"`
}

func (RegisteredUserEntity) TableName() string {
	return "registered_users"
}

func toRegisteredUserModel(e *RegisteredUserEntity) *model.RegisteredUser {
	if e == nil {
		return nil
	}
	u := &model.RegisteredUser{
		ID:          e.ID,
		RequesterID: e.RequesterID,
		Name:        e.Name,
		CreatedAt:   e.CreatedAt,
	}
	if e.TaxID != nil {
		u.TaxID = *e.TaxID
	}
	return u
}
