package models

import "time"

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

var TicketCategories = []string{"plumbing", "electrical", "furniture", "cleaning", "safety", "appliance", "other"}

type PayerType string

const (
	PayerManagement PayerType = "management"
	PayerStudent    PayerType = "student"
)

// ImageRef points at an uploaded file.
type ImageRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type ComplianceTicket struct {
	Meta
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	Priority        TicketPriority `json:"priority"`
	Status          TicketStatus   `json:"status"`
	Building        string         `json:"building"`
	Floor           string         `json:"floor"`
	RoomNumber      string         `json:"roomNumber"`
	PayerType       PayerType      `json:"payerType"`
	PayerStudentID  string         `json:"payerStudentId"`
	AssignedTo      string         `json:"assignedTo"`
	WorkCost        Amount         `json:"workCost"`
	ToolsCost       Amount         `json:"toolsCost"`
	TotalCost       Amount         `json:"totalCost"`
	Notes           string         `json:"notes"`
	Images          []ImageRef     `json:"images"`
	StatusChangedBy string         `json:"statusChangedBy"`
	StatusChangedAt *time.Time     `json:"statusChangedAt,omitempty"`
	StatusNotes     string         `json:"statusNotes"`
	CreatedBy       string         `json:"createdBy,omitempty"`
	UpdatedBy       string         `json:"updatedBy,omitempty"`
}

// TicketInput is the writable part of a ticket. Images holds references to
// files that are already uploaded, in any of the accepted legacy shapes.
type TicketInput struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	Priority       TicketPriority `json:"priority"`
	Status         TicketStatus   `json:"status"`
	Building       string         `json:"building"`
	Floor          string         `json:"floor"`
	RoomNumber     string         `json:"roomNumber"`
	PayerType      PayerType      `json:"payerType"`
	PayerStudentID string         `json:"payerStudentId"`
	AssignedTo     string         `json:"assignedTo"`
	WorkCost       Amount         `json:"workCost"`
	ToolsCost      Amount         `json:"toolsCost"`
	Notes          string         `json:"notes"`
	Images         any            `json:"images"`
}

type TicketFilter struct {
	Status   TicketStatus
	Priority TicketPriority
	Category string
	Building string
	Search   string
	Limit    int
	Offset   int
}
