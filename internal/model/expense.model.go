package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies an expense line item. Values outside the known set may
// be stored but are never submitted to the ERP.
type Category string

const (
	CategoryFeeding Category = "feeding"
	CategoryLodging Category = "lodging"
	CategoryTolls   Category = "tolls"
	CategoryOther   Category = "other"
)

// Product is the ERP catalogue entry an expense category books against.
type Product struct {
	ID   int64
	Name string
}

var categoryProducts = map[Category]Product{
	CategoryFeeding: {ID: 9680, Name: "ALIMENTACION OPERATIVO"},
	CategoryLodging: {ID: 12132, Name: "ALOJAMIENTO OPERATIVO"},
	CategoryTolls:   {ID: 9684, Name: "PEAJE OPERATIVO"},
	CategoryOther:   {ID: 12166, Name: "GASTOS VARIOS"},
}

func ParseCategory(s string) Category {
	return Category(strings.ToLower(strings.TrimSpace(s)))
}

func (c Category) Known() bool {
	_, ok := categoryProducts[c]
	return ok
}

// Product returns the ERP product for the category, false for unknown categories.
func (c Category) Product() (Product, bool) {
	p, ok := categoryProducts[c]
	return p, ok
}

type Location struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	CapturedAt time.Time `json:"captured_at"`
}

type VehicleLocation struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Plate      string    `json:"plate"`
	CapturedAt time.Time `json:"captured_at"`
}

type Attachment struct {
	Filename string `json:"filename"`
	Kind     string `json:"kind"`
	Content  []byte `json:"-"`
}

// ExpenseRecord is one persisted expense line item.
type ExpenseRecord struct {
	ID                   int64            `json:"id"`
	CorrelationToken     string           `json:"correlation_token"`
	EmployeeName         string           `json:"employee_name"`
	RequesterID          *int64           `json:"requester_id,omitempty"`
	Category             Category         `json:"category"`
	Amount               decimal.Decimal  `json:"amount"`
	Attachment           *Attachment      `json:"attachment,omitempty"`
	Location             *Location        `json:"location,omitempty"`
	VehicleLocation      *VehicleLocation `json:"vehicle_location,omitempty"`
	ErpCorrelationID     *string          `json:"erp_correlation_id,omitempty"`
	ErpSubmittedAt       *time.Time       `json:"erp_submitted_at,omitempty"`
	ErpCoordinatesSynced bool             `json:"erp_coordinates_synced"`
	CreatedAt            time.Time        `json:"created_at"`
}

var (
	ErrUnknownCategory = errors.New("unknown expense category")
	ErrNonPositive     = errors.New("amount must be greater than zero")
)

// Eligible reports whether the record may be submitted to the ERP.
func (r *ExpenseRecord) Eligible() error {
	if !r.Category.Known() {
		return ErrUnknownCategory
	}
	if !r.Amount.IsPositive() {
		return ErrNonPositive
	}
	return nil
}

func (r *ExpenseRecord) Submitted() bool {
	return r.ErpSubmittedAt != nil
}

// SyncStats counts recent records by coordinate sync state.
type SyncStats struct {
	Pending int64 `json:"pending"`
	Synced  int64 `json:"synced"`
	NoErpID int64 `json:"no_erp_id"`
}
