package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

type UserFinder interface {
	FindByRequesterID(ctx context.Context, requesterID int64) (*model.RegisteredUser, error)
}

type Registration struct {
	Registered  bool   `json:"registered"`
	Name        string `json:"name,omitempty"`
	RequesterID int64  `json:"requester_id,omitempty"`
	Message     string `json:"message,omitempty"`
}

type UserService struct {
	users UserFinder
}

func NewUserService(users UserFinder) *UserService {
	return &UserService{users: users}
}

// CheckRegistration tells whether the bot user may report expenses.
func (s *UserService) CheckRegistration(ctx context.Context, requesterID int64) (Registration, error) {
	u, err := s.users.FindByRequesterID(ctx, requesterID)
	if err != nil {
		return Registration{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if u == nil {
		return Registration{Message: "user is not registered"}, nil
	}
	return Registration{Registered: true, Name: strings.TrimSpace(u.Name), RequesterID: u.RequesterID}, nil
}

// EmployeeName prefills the expense form. Unknown users and lookup failures
// both yield an empty name.
func (s *UserService) EmployeeName(ctx context.Context, requesterID int64) string {
	u, err := s.users.FindByRequesterID(ctx, requesterID)
	if err != nil {
		logger.Warn("registered user lookup failed", "requester_id", requesterID, "error", err)
		return ""
	}
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.Name)
}
