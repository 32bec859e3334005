package occupancy

import (
	"testing"

	"dormdesk/internal/models"

	"github.com/stretchr/testify/assert"
)

func room(id string, capacity int, status models.RoomStatus) models.Room {
	return models.Room{Meta: models.Meta{ID: id}, Capacity: capacity, Status: status}
}

func contracts(roomID string, n int) []models.Contract {
	out := make([]models.Contract, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Contract{RoomIDs: []string{roomID}, Status: models.ContractActive})
	}
	return out
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name      string
		room      models.Room
		contracts []models.Contract
		want      models.RoomOccupancy
	}{
		{
			name:      "MaintenanceWinsOverContracts",
			room:      room("r1", 3, models.RoomMaintenance),
			contracts: contracts("r1", 2),
			want:      models.RoomOccupancy{Status: models.RoomMaintenance, ActiveContracts: 0, RemainingSpace: 3},
		},
		{
			name: "NotOccupied",
			room: room("r1", 2, ""),
			want: models.RoomOccupancy{Status: models.RoomNotOccupied, ActiveContracts: 0, RemainingSpace: 2},
		},
		{
			name:      "RemainingSpace",
			room:      room("r1", 3, ""),
			contracts: contracts("r1", 1),
			want:      models.RoomOccupancy{Status: models.RoomRemainingSpace, ActiveContracts: 1, RemainingSpace: 2},
		},
		{
			name:      "Full",
			room:      room("r1", 2, ""),
			contracts: contracts("r1", 2),
			want:      models.RoomOccupancy{Status: models.RoomFull, ActiveContracts: 2, RemainingSpace: 0},
		},
		{
			name:      "OverbookedClampsRemaining",
			room:      room("r1", 1, ""),
			contracts: contracts("r1", 3),
			want:      models.RoomOccupancy{Status: models.RoomFull, ActiveContracts: 3, RemainingSpace: 0},
		},
		{
			name:      "IgnoresOtherRoomsAndInactive",
			room:      room("r1", 2, ""),
			contracts: append(contracts("r2", 2), models.Contract{RoomIDs: []string{"r1"}, Status: models.ContractTerminated}),
			want:      models.RoomOccupancy{Status: models.RoomNotOccupied, ActiveContracts: 0, RemainingSpace: 2},
		},
		{
			name:      "MultiRoomContract",
			room:      room("r2", 2, ""),
			contracts: []models.Contract{{RoomIDs: []string{"r1", "r2"}, Status: models.ContractActive}},
			want:      models.RoomOccupancy{Status: models.RoomRemainingSpace, ActiveContracts: 1, RemainingSpace: 1},
		},
		{
			name:      "StaleStoredStatusIsIgnored",
			room:      room("r1", 2, models.RoomFull),
			contracts: nil,
			want:      models.RoomOccupancy{Status: models.RoomNotOccupied, ActiveContracts: 0, RemainingSpace: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.room, tt.contracts))
			assert.Equal(t, tt.want, NewIndex(tt.contracts).Derive(tt.room))
		})
	}
}

func TestCanDelete(t *testing.T) {
	t.Run("NotOccupied", func(t *testing.T) {
		ok, reason := CanDelete(models.RoomOccupancy{Status: models.RoomNotOccupied, RemainingSpace: 2})
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("Maintenance", func(t *testing.T) {
		ok, reason := CanDelete(models.RoomOccupancy{Status: models.RoomMaintenance, RemainingSpace: 2})
		assert.False(t, ok)
		assert.Contains(t, reason, "maintenance")
	})

	t.Run("ActiveContracts", func(t *testing.T) {
		ok, reason := CanDelete(models.RoomOccupancy{Status: models.RoomRemainingSpace, ActiveContracts: 1, RemainingSpace: 1})
		assert.False(t, ok)
		assert.Contains(t, reason, "1 active contract")
	})

	t.Run("Full", func(t *testing.T) {
		ok, _ := CanDelete(models.RoomOccupancy{Status: models.RoomFull, ActiveContracts: 2})
		assert.False(t, ok)
	})
}

func TestIndexCountsDuplicateRoomIDsOnce(t *testing.T) {
	idx := NewIndex([]models.Contract{{RoomIDs: []string{"r1", "r1"}, Status: models.ContractActive}})
	assert.Equal(t, 1, idx["r1"])
}
