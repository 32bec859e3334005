package service

import (
	"context"
	"testing"

	"dormdesk/internal/events"
	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRoom(m *store.Memory, id, building, number string, capacity int, status models.RoomStatus) {
	m.Seed(testCols.Rooms, store.Document{
		store.FieldID: id,
		"roomNumber":  number,
		"building":    building,
		"floor":       1,
		"type":        "double",
		"capacity":    capacity,
		"rentAmount":  500,
		"status":      string(status),
		"isDeleted":   false,
	})
}

func seedContract(m *store.Memory, id string, status models.ContractStatus, rooms ...string) {
	ids := make([]any, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r)
	}
	m.Seed(testCols.Contracts, store.Document{
		store.FieldID:        id,
		store.FieldCreatedAt: store.FormatTime(at(5, 9, 0)),
		"userId":             "student-" + id,
		"roomIds":            ids,
		"status":             string(status),
	})
}

func newRoomFixture(t *testing.T) (*RoomService, *store.Memory, *recordingPublisher) {
	t.Helper()
	m := newTestStore()
	seedRoom(m, "r1", "A", "101", 2, "")
	seedRoom(m, "r2", "A", "102", 1, "")
	seedRoom(m, "r3", "B", "201", 4, models.RoomMaintenance)
	seedRoom(m, "r4", "B", "202", 3, "")
	m.Seed(testCols.Rooms, store.Document{store.FieldID: "r5", "roomNumber": "103", "building": "A", "capacity": 1, "type": "single", "isDeleted": true})

	seedContract(m, "c1", models.ContractActive, "r1")
	seedContract(m, "c2", models.ContractActive, "r2")
	seedContract(m, "c3", models.ContractActive, "r3")
	seedContract(m, "c4", models.ContractTerminated, "r4")

	pub := &recordingPublisher{}
	svc := NewRoomService(m, testCols, pub, nil)
	svc.now = fixedNow
	return svc, m, pub
}

func TestRoomServiceList(t *testing.T) {
	svc, _, _ := newRoomFixture(t)
	ctx := context.Background()

	t.Run("DerivesEveryRoom", func(t *testing.T) {
		rooms, total, err := svc.ListRooms(ctx, models.RoomFilter{})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, rooms, 4)

		byID := map[string]models.RoomView{}
		for _, r := range rooms {
			byID[r.ID] = r
		}
		assert.Equal(t, models.RoomRemainingSpace, byID["r1"].Occupancy.Status)
		assert.Equal(t, 1, byID["r1"].Occupancy.RemainingSpace)
		assert.Equal(t, models.RoomFull, byID["r2"].Occupancy.Status)
		assert.Equal(t, models.RoomMaintenance, byID["r3"].Occupancy.Status)
		assert.Equal(t, 0, byID["r3"].Occupancy.ActiveContracts)
		assert.Equal(t, 4, byID["r3"].Occupancy.RemainingSpace)
		assert.Equal(t, models.RoomNotOccupied, byID["r4"].Occupancy.Status)
		assert.True(t, byID["r4"].CanDelete)
		assert.False(t, byID["r2"].CanDelete)
		assert.NotEmpty(t, byID["r2"].DeleteBlockedReason)
	})

	t.Run("OrderedByBuildingAndNumber", func(t *testing.T) {
		rooms, _, err := svc.ListRooms(ctx, models.RoomFilter{})
		require.NoError(t, err)
		var numbers []string
		for _, r := range rooms {
			numbers = append(numbers, r.RoomNumber)
		}
		assert.Equal(t, []string{"101", "102", "201", "202"}, numbers)
	})

	t.Run("FilterByDerivedStatus", func(t *testing.T) {
		rooms, total, err := svc.ListRooms(ctx, models.RoomFilter{Status: models.RoomFull})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, rooms, 1)
		assert.Equal(t, "r2", rooms[0].ID)
	})

	t.Run("FilterByBuildingAndSearch", func(t *testing.T) {
		rooms, total, err := svc.ListRooms(ctx, models.RoomFilter{Building: "B", Search: "02"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "r4", rooms[0].ID)
	})

	t.Run("PaginatesAfterDerivation", func(t *testing.T) {
		rooms, total, err := svc.ListRooms(ctx, models.RoomFilter{Limit: 3, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, rooms, 2)
		assert.Equal(t, "r3", rooms[0].ID)
	})
}

func TestRoomServiceCreate(t *testing.T) {
	svc, _, pub := newRoomFixture(t)
	ctx := context.Background()

	t.Run("Validation", func(t *testing.T) {
		_, err := svc.CreateRoom(ctx, models.RoomInput{Type: "penthouse", Capacity: 0, RentAmount: -1, Status: "broken"}, admin)
		requireFieldErrors(t, err, "roomNumber", "building", "capacity", "rentAmount", "type", "status")
	})

	t.Run("DuplicateNumberInBuilding", func(t *testing.T) {
		_, err := svc.CreateRoom(ctx, models.RoomInput{RoomNumber: "101", Building: "A", Type: models.RoomSingle, Capacity: 1}, admin)
		requireFieldErrors(t, err, "roomNumber")
	})

	t.Run("SameNumberOtherBuilding", func(t *testing.T) {
		room, err := svc.CreateRoom(ctx, models.RoomInput{RoomNumber: "101", Building: "C", Type: models.RoomSingle, Capacity: 1}, admin)
		require.NoError(t, err)
		assert.NotEmpty(t, room.ID)
		assert.Equal(t, models.RoomNotOccupied, room.Occupancy.Status)
		assert.Equal(t, admin.ID, room.CreatedBy)
	})

	t.Run("DeletedRoomNumberCanBeReused", func(t *testing.T) {
		_, err := svc.CreateRoom(ctx, models.RoomInput{RoomNumber: "103", Building: "A", Type: models.RoomSingle, Capacity: 1}, admin)
		require.NoError(t, err)
	})

	t.Run("DerivedStatusIsNotStored", func(t *testing.T) {
		room, err := svc.CreateRoom(ctx, models.RoomInput{RoomNumber: "301", Building: "C", Type: models.RoomSuite, Capacity: 3, Status: models.RoomFull}, admin)
		require.NoError(t, err)
		assert.Equal(t, models.RoomStatus(""), room.Status)
		assert.Equal(t, models.RoomNotOccupied, room.Occupancy.Status)
	})

	assert.Contains(t, pub.Events(), events.EventRoomCreated)
}

func TestRoomServiceUpdate(t *testing.T) {
	svc, _, _ := newRoomFixture(t)
	ctx := context.Background()

	room, err := svc.UpdateRoom(ctx, "r4", models.RoomInput{RoomNumber: "202", Building: "B", Type: models.RoomDouble, Capacity: 3, Status: models.RoomMaintenance}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.RoomMaintenance, room.Occupancy.Status)
	assert.Equal(t, admin.ID, room.UpdatedBy)

	t.Run("KeepsOwnNumber", func(t *testing.T) {
		_, err := svc.UpdateRoom(ctx, "r1", models.RoomInput{RoomNumber: "101", Building: "A", Type: models.RoomDouble, Capacity: 3}, admin)
		require.NoError(t, err)
	})

	t.Run("ClearsDescription", func(t *testing.T) {
		in := models.RoomInput{RoomNumber: "202", Building: "B", Type: models.RoomDouble, Capacity: 3, Description: "sea view"}
		room, err := svc.UpdateRoom(ctx, "r4", in, admin)
		require.NoError(t, err)
		assert.Equal(t, "sea view", room.Description)

		in.Description = ""
		room, err = svc.UpdateRoom(ctx, "r4", in, admin)
		require.NoError(t, err)
		assert.Empty(t, room.Description)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := svc.UpdateRoom(ctx, "nope", models.RoomInput{}, admin)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestRoomServiceDelete(t *testing.T) {
	svc, m, pub := newRoomFixture(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		t.Run("Blocked_"+id, func(t *testing.T) {
			err := svc.DeleteRoom(ctx, id, admin)
			var blocked *DeleteBlockedError
			require.ErrorAs(t, err, &blocked)
			assert.NotEmpty(t, blocked.Reason)

			doc, err := m.Get(ctx, testCols.Rooms, id)
			require.NoError(t, err)
			assert.Equal(t, false, doc["isDeleted"])
		})
	}

	t.Run("SoftDeletesEmptyRoom", func(t *testing.T) {
		require.NoError(t, svc.DeleteRoom(ctx, "r4", admin))

		doc, err := m.Get(ctx, testCols.Rooms, "r4")
		require.NoError(t, err)
		assert.Equal(t, true, doc["isDeleted"])
		assert.Equal(t, admin.ID, doc["deletedBy"])

		_, err = svc.GetRoom(ctx, "r4")
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, total, err := svc.ListRooms(ctx, models.RoomFilter{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Contains(t, pub.Events(), events.EventRoomDeleted)
	})
}
