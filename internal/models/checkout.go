package models

import "time"

type CheckoutStatus string

const (
	CheckoutPending   CheckoutStatus = "pending"
	CheckoutApproved  CheckoutStatus = "approved"
	CheckoutRejected  CheckoutStatus = "rejected"
	CheckoutCompleted CheckoutStatus = "completed"
)

// CheckoutRequest is a student's request to leave the residence for a period.
type CheckoutRequest struct {
	Meta
	UserID          string         `json:"userId"`
	UserName        string         `json:"userName,omitempty"`
	StartDate       time.Time      `json:"startDate"`
	EndDate         time.Time      `json:"endDate"`
	Reason          string         `json:"reason"`
	EscortName      string         `json:"escortName,omitempty"`
	Status          CheckoutStatus `json:"status"`
	ActionBy        string         `json:"actionBy,omitempty"`
	ActionAt        *time.Time     `json:"actionAt,omitempty"`
	ActionNotes     string         `json:"actionNotes,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	CreatedBy       string         `json:"createdBy,omitempty"`
}

type CheckoutInput struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	StartDate  *Date  `json:"startDate"`
	EndDate    *Date  `json:"endDate"`
	Reason     string `json:"reason"`
	EscortName string `json:"escortName"`
}

type CheckoutFilter struct {
	Status CheckoutStatus
	UserID string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// CheckoutView adds the computed duration to a request.
type CheckoutView struct {
	CheckoutRequest
	DurationDays int `json:"durationDays"`
}

// DurationDays counts the calendar days between start and end dates.
func DurationDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	days := int(e.Sub(s).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
