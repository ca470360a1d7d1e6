package models

import (
	"time"
)

// ScanStatus is the processing state of a scan.
type ScanStatus string

const (
	ScanProcessing ScanStatus = "PROCESSING"
	ScanCompleted  ScanStatus = "COMPLETED"
	ScanFailed     ScanStatus = "FAILED"
)

// ParseScanStatus validates a status string. An empty string maps to ScanProcessing.
func ParseScanStatus(s string) (ScanStatus, error) {
	switch ScanStatus(s) {
	case "", ScanProcessing:
		return ScanProcessing, nil
	case ScanCompleted:
		return ScanCompleted, nil
	case ScanFailed:
		return ScanFailed, nil
	default:
		return "", ErrInvalidStatus
	}
}

// ScanStatuses lists every status in lifecycle order.
var ScanStatuses = []ScanStatus{ScanProcessing, ScanCompleted, ScanFailed}

// IsTerminal reports whether no further status transition is allowed.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

// CanTransitionTo reports whether a scan in status s may move to next.
// Re-asserting the current status is allowed.
func (s ScanStatus) CanTransitionTo(next ScanStatus) bool {
	if s == next {
		return true
	}
	return s == ScanProcessing && next.IsTerminal()
}

// TransitionSources returns the statuses a scan may be in for a change to
// next to be accepted.
func TransitionSources(next ScanStatus) []ScanStatus {
	sources := make([]ScanStatus, 0, len(ScanStatuses))
	for _, from := range ScanStatuses {
		if from.CanTransitionTo(next) {
			sources = append(sources, from)
		}
	}
	return sources
}

type Scan struct {
	ID             string     `json:"id"`
	Filename       string     `json:"filename"`
	OriginalURL    string     `json:"originalUrl"`
	Size           int64      `json:"size"`
	UserID         string     `json:"userId"`
	ModelID        string     `json:"modelId"`
	Status         ScanStatus `json:"status"`
	ResultURL      *string    `json:"resultUrl,omitempty"`
	ProcessingTime *int       `json:"processingTime,omitempty"` // seconds
	Accuracy       *float64   `json:"accuracy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	ModelName  string `json:"modelName,omitempty"`
	OwnerEmail string `json:"ownerEmail,omitempty"`
}

// ScanUpdate holds the optional fields of a scan patch. Nil fields are left unchanged.
type ScanUpdate struct {
	Status         *ScanStatus
	ResultURL      *string
	ProcessingTime *int
	Accuracy       *float64
}

// IsEmpty reports whether the patch changes nothing.
func (u ScanUpdate) IsEmpty() bool {
	return u.Status == nil && u.ResultURL == nil && u.ProcessingTime == nil && u.Accuracy == nil
}
