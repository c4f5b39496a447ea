package model

import (
	"strconv"
	"strings"
	"time"
)

// RegisteredUser is a bot user enrolled for expense reporting.
type RegisteredUser struct {
	ID          int64     `json:"id"`
	RequesterID int64     `json:"requester_id"`
	Name        string    `json:"name"`
	TaxID       string    `json:"tax_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Identifier is what the ERP accepts as the employee document when a PIN is
// registered: the tax id, or the requester id for users enrolled without one.
func (u RegisteredUser) Identifier() string {
	if id := strings.TrimSpace(u.TaxID); id != "" {
		return id
	}
	if u.RequesterID != 0 {
		return strconv.FormatInt(u.RequesterID, 10)
	}
	return ""
}

type PinSyncAction string

const (
	PinSyncNoMatch       PinSyncAction = "no_match"
	PinSyncHasPin        PinSyncAction = "has_pin"
	PinSyncWouldRegister PinSyncAction = "would_register"
	PinSyncRegistered    PinSyncAction = "registered"
	PinSyncError         PinSyncAction = "error"
)

type PinSyncRequest struct {
	Pin    string   `json:"pin"`
	DryRun bool     `json:"dry_run"`
	Names  []string `json:"names"`
}

type PinSyncDetail struct {
	Name   string        `json:"name"`
	Action PinSyncAction `json:"action"`
	Detail string        `json:"detail,omitempty"`
}

type PinSyncReport struct {
	DryRun         bool            `json:"dry_run"`
	Processed      int             `json:"processed"`
	Registered     int             `json:"registered"`
	AlreadyHavePin int             `json:"already_have_pin"`
	NoMatch        int             `json:"no_match"`
	Errors         int             `json:"errors"`
	Details        []PinSyncDetail `json:"details"`
}

type PinSyncSummary struct {
	RegisteredUsers    int      `json:"registered_users"`
	DirectoryEmployees int      `json:"directory_employees"`
	WithPin            int      `json:"with_pin"`
	WithoutPin         int      `json:"without_pin"`
	NoMatch            int      `json:"no_match"`
	PendingNames       []string `json:"pending_names"`
}
