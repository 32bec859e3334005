// Package occupancy classifies rooms from their active contracts.
package occupancy

import (
	"fmt"

	"dormdesk/internal/models"
)

// Derive computes a room's occupancy. A stored maintenance status always
// wins; otherwise the room is classified by how many active contracts
// reference it.
func Derive(room models.Room, activeContracts []models.Contract) models.RoomOccupancy {
	capacity := max(room.Capacity, 0)

	if room.Status == models.RoomMaintenance {
		return models.RoomOccupancy{
			Status:          models.RoomMaintenance,
			ActiveContracts: 0,
			RemainingSpace:  capacity,
		}
	}

	count := 0
	for _, c := range activeContracts {
		if c.Status == models.ContractActive && c.Covers(room.ID) {
			count++
		}
	}

	return Classify(capacity, count)
}

// Classify maps an active contract count onto a status.
func Classify(capacity, count int) models.RoomOccupancy {
	status := models.RoomRemainingSpace
	switch {
	case count == 0:
		status = models.RoomNotOccupied
	case count >= capacity:
		status = models.RoomFull
	}

	return models.RoomOccupancy{
		Status:          status,
		ActiveContracts: count,
		RemainingSpace:  max(0, capacity-count),
	}
}

// CanDelete reports whether a room in this state may be deleted, and the
// human-readable reason when it may not.
func CanDelete(occ models.RoomOccupancy) (bool, string) {
	switch {
	case occ.Status == models.RoomMaintenance:
		return false, "room is under maintenance; finish maintenance before deleting it"
	case occ.ActiveContracts > 0:
		return false, fmt.Sprintf("room has %d active contract(s); end them before deleting the room", occ.ActiveContracts)
	case occ.Status != models.RoomNotOccupied:
		return false, fmt.Sprintf("room status is %s; only unoccupied rooms can be deleted", occ.Status)
	}
	return true, ""
}

// Index groups active contracts by room ID so a listing derives every room in one pass.
type Index map[string]int

func NewIndex(activeContracts []models.Contract) Index {
	idx := make(Index)
	for _, c := range activeContracts {
		if c.Status != models.ContractActive {
			continue
		}
		seen := make(map[string]bool, len(c.RoomIDs))
		for _, id := range c.RoomIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			idx[id]++
		}
	}
	return idx
}

// Derive is the indexed equivalent of the package-level Derive.
func (idx Index) Derive(room models.Room) models.RoomOccupancy {
	if room.Status == models.RoomMaintenance {
		return models.RoomOccupancy{Status: models.RoomMaintenance, RemainingSpace: max(room.Capacity, 0)}
	}
	return Classify(max(room.Capacity, 0), idx[room.ID])
}
