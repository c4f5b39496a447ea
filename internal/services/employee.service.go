package services

import (
	"context"
	"strings"
)

// EmployeeLookup is always answered; Message explains an empty EmployeeName.
type EmployeeLookup struct {
	EmployeeName string `json:"employee_name"`
	JobTitle     string `json:"job_title,omitempty"`
	Message      string `json:"message"`
}

type EmployeeService struct {
	directory DirectoryFetcher
}

func NewEmployeeService(directory DirectoryFetcher) *EmployeeService {
	return &EmployeeService{directory: directory}
}

// LookupByCode finds the employee whose PIN equals code. It never fails.
func (s *EmployeeService) LookupByCode(ctx context.Context, code string) EmployeeLookup {
	code = strings.TrimSpace(code)
	if code == "" {
		return EmployeeLookup{Message: "code not provided"}
	}

	res := s.directory.FetchDirectory(ctx)
	if res.Err != nil {
		return EmployeeLookup{Message: "employee directory unavailable"}
	}
	if len(res.Directory.Roster) == 0 {
		return EmployeeLookup{Message: "no employees available"}
	}
	emp, ok := res.Directory.FindByCode(code)
	if !ok {
		return EmployeeLookup{Message: "no employee found with code " + code}
	}
	return EmployeeLookup{EmployeeName: emp.Name, JobTitle: emp.JobTitle, Message: "employee found"}
}
