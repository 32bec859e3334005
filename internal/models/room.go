package models

import "time"

type RoomStatus string

const (
	RoomMaintenance    RoomStatus = "maintenance"
	RoomNotOccupied    RoomStatus = "not_occupied"
	RoomRemainingSpace RoomStatus = "remaining_space"
	RoomFull           RoomStatus = "full"
)

// RoomStatuses lists every derived status in display order.
var RoomStatuses = []RoomStatus{RoomNotOccupied, RoomRemainingSpace, RoomFull, RoomMaintenance}

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomMaintenance, RoomNotOccupied, RoomRemainingSpace, RoomFull:
		return true
	}
	return false
}

type RoomType string

const (
	RoomSingle RoomType = "single"
	RoomDouble RoomType = "double"
	RoomSuite  RoomType = "suite"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomSingle, RoomDouble, RoomSuite:
		return true
	}
	return false
}

// Room is the stored room document. Status is only ever "maintenance" or
// empty; occupancy is derived at read time.
type Room struct {
	Meta
	RoomNumber  string     `json:"roomNumber"`
	Building    string     `json:"building"`
	Floor       int        `json:"floor"`
	Type        RoomType   `json:"type"`
	Capacity    int        `json:"capacity"`
	RentAmount  float64    `json:"rentAmount"`
	Status      RoomStatus `json:"status"`
	Description string     `json:"description"`
	IsDeleted   bool       `json:"isDeleted"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	DeletedBy   string     `json:"deletedBy,omitempty"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	UpdatedBy   string     `json:"updatedBy,omitempty"`
}

// RoomOccupancy is the derived view of a room.
type RoomOccupancy struct {
	Status          RoomStatus `json:"status"`
	ActiveContracts int        `json:"activeContracts"`
	RemainingSpace  int        `json:"remainingSpace"`
}

// RoomView is a room enriched with its derived occupancy.
type RoomView struct {
	Room
	Occupancy RoomOccupancy `json:"occupancy"`
	CanDelete bool          `json:"canDelete"`
	// DeleteBlockedReason explains why CanDelete is false.
	DeleteBlockedReason string `json:"deleteBlockedReason,omitempty"`
}

type RoomInput struct {
	RoomNumber  string     `json:"roomNumber"`
	Building    string     `json:"building"`
	Floor       int        `json:"floor"`
	Type        RoomType   `json:"type"`
	Capacity    int        `json:"capacity"`
	RentAmount  float64    `json:"rentAmount"`
	Status      RoomStatus `json:"status"`
	Description string     `json:"description"`
}

type RoomFilter struct {
	Building string
	Type     RoomType
	Status   RoomStatus
	Search   string
	Limit    int
	Offset   int
}

type ContractStatus string

const (
	ContractActive     ContractStatus = "active"
	ContractPending    ContractStatus = "pending"
	ContractTerminated ContractStatus = "terminated"
	ContractExpired    ContractStatus = "expired"
)

type Contract struct {
	Meta
	UserID    string         `json:"userId"`
	RoomIDs   []string       `json:"roomIds"`
	Status    ContractStatus `json:"status"`
	StartDate *time.Time     `json:"startDate,omitempty"`
	EndDate   *time.Time     `json:"endDate,omitempty"`
}

// Covers reports whether the contract includes roomID.
func (c Contract) Covers(roomID string) bool {
	for _, id := range c.RoomIDs {
		if id == roomID {
			return true
		}
	}
	return false
}
