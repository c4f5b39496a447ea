package pg

import "time"

// Model is the base row for tables keyed by a serial bigint.
type Model struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null;index"`
}
