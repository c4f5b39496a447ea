package repository

import (
	"time"

	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/pkg/pg"
	"github.com/shopspring/decimal"
)

type ExpenseEntity struct {
	pg.Model
	CorrelationToken   string          `gorm:"column:correlation_token;type:varchar(36);not null;uniqueIndex"`
	EmployeeName       string          `gorm:"column:employee_name;not null"`
	RequesterID        *int64          `gorm:"column:requester_id;index"`
	Category           string          `gorm:"column:category;not null"`
	Amount             decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	AttachmentFilename *string         `gorm:"column:attachment_filename"`
	AttachmentKind     *string         `gorm:"column:attachment_kind"`
	AttachmentContent  []byte          `gorm:"column:attachment_content"`
	LocationLat        *float64        `gorm:"column:location_lat"`
	LocationLon        *float64        `gorm:"column:location_lon"`
	LocationAt         *time.Time      `gorm:"column:location_at"`
	VehicleLat         *float64        `gorm:"column:vehicle_lat"`
	VehicleLon         *float64        `gorm:"column:vehicle_lon"`
	VehiclePlate       *string         `gorm:"column:vehicle_plate"`
	VehicleAt          *time.Time      `gorm:"column:vehicle_at"`
	ErpCorrelationID   *string         `gorm:"column:erp_correlation_id"`
	ErpSubmittedAt     *time.Time      `gorm:"column:erp_submitted_at"`
	ErpCoordsSynced    bool            `gorm:"column:erp_coordinates_synced;not null;default:false"`
}

func (ExpenseEntity) TableName() string {
	return "expense_records"
}

func toExpenseEntity(m *model.ExpenseRecord) *ExpenseEntity {
	if m == nil {
		return nil
	}
	e := &ExpenseEntity{
		Model:            pg.Model{ID: m.ID, CreatedAt: m.CreatedAt},
		CorrelationToken: m.CorrelationToken,
		EmployeeName:     m.EmployeeName,
		RequesterID:      m.RequesterID,
		Category:         string(m.Category),
		Amount:           m.Amount,
		ErpCorrelationID: m.ErpCorrelationID,
		ErpSubmittedAt:   m.ErpSubmittedAt,
		ErpCoordsSynced:  m.ErpCoordinatesSynced,
	}
	if a := m.Attachment; a != nil {
		e.AttachmentFilename = &a.Filename
		e.AttachmentKind = &a.Kind
		e.AttachmentContent = a.Content
	}
	if l := m.Location; l != nil {
		e.LocationLat, e.LocationLon, e.LocationAt = &l.Lat, &l.Lon, &l.CapturedAt
	}
	if v := m.VehicleLocation; v != nil {
		e.VehicleLat, e.VehicleLon, e.VehiclePlate, e.VehicleAt = &v.Lat, &v.Lon, &v.Plate, &v.CapturedAt
	}
	return e
}

func toExpenseModel(e *ExpenseEntity) *model.ExpenseRecord {
	if e == nil {
		return nil
	}
	m := &model.ExpenseRecord{
		ID:                   e.ID,
		CorrelationToken:     e.CorrelationToken,
		EmployeeName:         e.EmployeeName,
		RequesterID:          e.RequesterID,
		Category:             model.Category(e.Category),
		Amount:               e.Amount,
		ErpCorrelationID:     e.ErpCorrelationID,
		ErpSubmittedAt:       e.ErpSubmittedAt,
		ErpCoordinatesSynced: e.ErpCoordsSynced,
		CreatedAt:            e.CreatedAt,
	}
	if e.AttachmentFilename != nil {
		m.Attachment = &model.Attachment{
			Filename: *e.AttachmentFilename,
			Kind:     deref(e.AttachmentKind),
			Content:  e.AttachmentContent,
		}
	}
	if e.LocationLat != nil && e.LocationLon != nil {
		m.Location = &model.Location{Lat: *e.LocationLat, Lon: *e.LocationLon}
		if e.LocationAt != nil {
			m.Location.CapturedAt = *e.LocationAt
		}
	}
	if e.VehicleLat != nil && e.VehicleLon != nil {
		m.VehicleLocation = &model.VehicleLocation{Lat: *e.VehicleLat, Lon: *e.VehicleLon, Plate: deref(e.VehiclePlate)}
		if e.VehicleAt != nil {
			m.VehicleLocation.CapturedAt = *e.VehicleAt
		}
	}
	return m
}

func toExpenseModels(entities []*ExpenseEntity) []*model.ExpenseRecord {
	models := make([]*model.ExpenseRecord, len(entities))
	for i, e := range entities {
		models[i] = toExpenseModel(e)
	}
	return models
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
