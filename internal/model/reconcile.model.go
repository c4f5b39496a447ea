package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFix marks every CoordinateFix validation failure.
var ErrInvalidFix = errors.New("invalid coordinate fix")

var (
	ErrMissingRequester   = fmt.Errorf("%w: requester id is required", ErrInvalidFix)
	ErrInvalidCoordinates = fmt.Errorf("%w: coordinates out of range", ErrInvalidFix)
)

// CoordinateFix is a GPS fix reported by the messaging bot for a requester.
type CoordinateFix struct {
	RequesterID int64
	Lat         float64
	Lon         float64
	Token       string
}

func (f CoordinateFix) Validate() error {
	if f.RequesterID == 0 {
		return ErrMissingRequester
	}
	if math.IsNaN(f.Lat) || math.IsNaN(f.Lon) || f.Lat < -90 || f.Lat > 90 || f.Lon < -180 || f.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionRejected  SubmissionStatus = "rejected"
	SubmissionFailed    SubmissionStatus = "failed"
	SubmissionSkipped   SubmissionStatus = "skipped"
)

type SubmissionOutcome struct {
	Status        SubmissionStatus `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	CorrelationID *string          `json:"erp_correlation_id,omitempty"`
	Raw           string           `json:"raw_response,omitempty"`
}

type RecordOutcome struct {
	RecordID int64             `json:"record_id"`
	Outcome  SubmissionOutcome `json:"outcome"`
}

type ReconcileResult struct {
	Matched        bool            `json:"matched"`
	RecordsUpdated int             `json:"records_updated"`
	SubmittedToERP int             `json:"submitted_to_erp"`
	Outcomes       []RecordOutcome `json:"outcomes"`
}

type SweepRecordResult struct {
	RecordID      int64  `json:"record_id"`
	CorrelationID string `json:"erp_correlation_id"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

type SweepSummary struct {
	TotalProcessed int                 `json:"total_processed"`
	Successful     int                 `json:"successful"`
	Failed         int                 `json:"failed"`
	Remaining      int                 `json:"remaining,omitempty"`
	Results        []SweepRecordResult `json:"results"`
}
