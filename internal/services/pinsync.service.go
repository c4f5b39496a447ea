package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/logger"
)

const DefaultPin = "0000"

var ErrDirectoryUnavailable = errors.New("employee directory unavailable")

type UserLister interface {
	List(ctx context.Context) ([]*model.RegisteredUser, error)
}

type PinRegistrar interface {
	RegisterPin(ctx context.Context, token string, employeeID int64, identifier, pin string) gateway.PinResult
}

// RosterInvalidator is implemented by directories that cache their roster.
type RosterInvalidator interface {
	Invalidate()
}

// PinSyncService gives every enrolled user whose directory entry has no PIN
// a default one, matching users to employees by normalized name.
type PinSyncService struct {
	users     UserLister
	directory DirectoryFetcher
	erp       PinRegistrar
}

func NewPinSyncService(users UserLister, directory DirectoryFetcher, erp PinRegistrar) *PinSyncService {
	return &PinSyncService{users: users, directory: directory, erp: erp}
}

func (s *PinSyncService) load(ctx context.Context) (model.Directory, []*model.RegisteredUser, error) {
	res := s.directory.FetchDirectory(ctx)
	if res.Err != nil {
		return model.Directory{}, nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, res.Err)
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return model.Directory{}, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return res.Directory, users, nil
}

func byNormalizedName(roster []model.Employee) map[string]model.Employee {
	out := make(map[string]model.Employee, len(roster))
	for _, e := range roster {
		out[model.NormalizeName(e.Name)] = e
	}
	return out
}

// Run registers missing PINs. With DryRun set nothing is sent to the ERP and
// the report lists what would have been registered.
func (s *PinSyncService) Run(ctx context.Context, req model.PinSyncRequest) (*model.PinSyncReport, error) {
	pin := strings.TrimSpace(req.Pin)
	if pin == "" {
		pin = DefaultPin
	}
	if inv, ok := s.directory.(RosterInvalidator); ok {
		inv.Invalidate()
	}

	dir, users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if !req.DryRun && !dir.Available() {
		return nil, ErrDirectoryUnavailable
	}

	filter := make(map[string]struct{}, len(req.Names))
	for _, n := range req.Names {
		if n = model.NormalizeName(n); n != "" {
			filter[n] = struct{}{}
		}
	}
	employees := byNormalizedName(dir.Roster)

	report := &model.PinSyncReport{DryRun: req.DryRun, Details: []model.PinSyncDetail{}}
	for _, u := range users {
		name := model.NormalizeName(u.Name)
		if len(filter) > 0 {
			if _, ok := filter[name]; !ok {
				continue
			}
		}
		report.Processed++

		emp, ok := employees[name]
		if !ok {
			report.NoMatch++
			report.Details = append(report.Details, model.PinSyncDetail{Name: u.Name, Action: model.PinSyncNoMatch, Detail: "not found in the employee directory"})
			continue
		}
		if strings.TrimSpace(emp.PinCode) != "" {
			report.AlreadyHavePin++
			report.Details = append(report.Details, model.PinSyncDetail{Name: u.Name, Action: model.PinSyncHasPin})
			continue
		}

		identifier := u.Identifier()
		if identifier == "" {
			report.Errors++
			report.Details = append(report.Details, model.PinSyncDetail{Name: u.Name, Action: model.PinSyncError, Detail: "user has neither tax id nor requester id"})
			continue
		}

		if req.DryRun {
			report.Details = append(report.Details, model.PinSyncDetail{
				Name:   u.Name,
				Action: model.PinSyncWouldRegister,
				Detail: fmt.Sprintf("employee %d, identifier %s", emp.ID, identifier),
			})
			continue
		}

		res := s.erp.RegisterPin(ctx, dir.Token, emp.ID, identifier, pin)
		if !res.Success {
			detail := res.Raw
			if detail == "" && res.Err != nil {
				detail = res.Err.Error()
			}
			report.Errors++
			report.Details = append(report.Details, model.PinSyncDetail{Name: u.Name, Action: model.PinSyncError, Detail: detail})
			continue
		}
		report.Registered++
		report.Details = append(report.Details, model.PinSyncDetail{Name: u.Name, Action: model.PinSyncRegistered, Detail: res.Raw})
	}

	if report.Registered > 0 {
		if inv, ok := s.directory.(RosterInvalidator); ok {
			inv.Invalidate()
		}
	}
	logger.Info("pin sync finished",
		"dry_run", req.DryRun,
		"processed", report.Processed,
		"registered", report.Registered,
		"already_have_pin", report.AlreadyHavePin,
		"no_match", report.NoMatch,
		"errors", report.Errors,
	)
	return report, nil
}

// Summary counts enrolled users by PIN state without changing anything.
func (s *PinSyncService) Summary(ctx context.Context) (*model.PinSyncSummary, error) {
	dir, users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	employees := byNormalizedName(dir.Roster)

	sum := &model.PinSyncSummary{
		RegisteredUsers:    len(users),
		DirectoryEmployees: len(dir.Roster),
		PendingNames:       []string{},
	}
	for _, u := range users {
		emp, ok := employees[model.NormalizeName(u.Name)]
		switch {
		case !ok:
			sum.NoMatch++
		case strings.TrimSpace(emp.PinCode) != "":
			sum.WithPin++
		default:
			sum.WithoutPin++
			sum.PendingNames = append(sum.PendingNames, u.Name)
		}
	}
	return sum, nil
}
