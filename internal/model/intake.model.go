package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidIntake = errors.New("invalid expense submission")

type IntakeItem struct {
	Category   string
	Amount     *decimal.Decimal
	Attachment *Attachment
}

// IntakeRequest is one form submission: several line items for one employee.
type IntakeRequest struct {
	EmployeeName string
	RequesterID  *int64
	Items        []IntakeItem
	// Location is the position the form reported. It is indexed only; the
	// record location comes from the bot fix.
	Location *Location
}

func (p IntakeRequest) Validate() error {
	if strings.TrimSpace(p.EmployeeName) == "" {
		return fmt.Errorf("%w: employee name is required", ErrInvalidIntake)
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidIntake)
	}
	for i, it := range p.Items {
		if strings.TrimSpace(it.Category) == "" {
			return fmt.Errorf("%w: item %d: category is required", ErrInvalidIntake, i)
		}
		if it.Amount == nil {
			return fmt.Errorf("%w: item %d: amount is required", ErrInvalidIntake, i)
		}
		if it.Amount.IsNegative() {
			return fmt.Errorf("%w: item %d: amount must not be negative", ErrInvalidIntake, i)
		}
	}
	return nil
}

type TokenAssignment struct {
	RecordID int64    `json:"record_id"`
	Category Category `json:"category"`
	Token    string   `json:"token"`
}

type IntakeResult struct {
	Inserted    int               `json:"inserted"`
	IndexCount  int               `json:"index_count"`
	IndexErrors []string          `json:"index_errors,omitempty"`
	Tokens      []TokenAssignment `json:"correlation_tokens"`
	BotNotified bool              `json:"bot_notified"`
}
