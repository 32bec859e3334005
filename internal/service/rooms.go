package service

import (
	"context"
	"fmt"
	"strings"

	"dormdesk/internal/config"
	"dormdesk/internal/domain"
	"dormdesk/internal/events"
	"dormdesk/internal/models"
	"dormdesk/internal/occupancy"
	"dormdesk/internal/store"

	"github.com/rs/zerolog"
)

type RoomService struct {
	base
}

func NewRoomService(docs store.Documents, cols config.CollectionsConfig, publisher domain.EventPublisher, logger *zerolog.Logger) *RoomService {
	return &RoomService{base: newBase(docs, cols, publisher, logger, "rooms")}
}

// ListRooms derives occupancy for every matching room. Status and search
// filters, and pagination, apply after derivation.
func (s *RoomService) ListRooms(ctx context.Context, filter models.RoomFilter) ([]models.RoomView, int, error) {
	q := store.NewQuery(store.NotEqual("isDeleted", true)).OrderAsc("building").OrderAsc("roomNumber")
	if filter.Building != "" {
		q = q.Where(store.Equal("building", filter.Building))
	}
	if filter.Type != "" {
		q = q.Where(store.Equal("type", filter.Type))
	}

	rooms, err := s.loadRooms(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	idx, err := s.activeIndex(ctx)
	if err != nil {
		return nil, 0, err
	}

	term := strings.ToLower(strings.TrimSpace(filter.Search))
	views := make([]models.RoomView, 0, len(rooms))
	for _, room := range rooms {
		v := roomView(room, idx.Derive(room))
		if filter.Status != "" && v.Occupancy.Status != filter.Status {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(room.RoomNumber), term) {
			continue
		}
		views = append(views, v)
	}

	return page(views, filter.Limit, filter.Offset), len(views), nil
}

func (s *RoomService) GetRoom(ctx context.Context, id string) (*models.RoomView, error) {
	room, err := s.getRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	idx, err := s.activeIndex(ctx)
	if err != nil {
		return nil, err
	}
	v := roomView(*room, idx.Derive(*room))
	return &v, nil
}

func (s *RoomService) CreateRoom(ctx context.Context, in models.RoomInput, actor models.Actor) (*models.RoomView, error) {
	in = normalizeRoomInput(in)
	if err := s.validateRoom(ctx, "", in); err != nil {
		return nil, err
	}

	room := models.Room{
		RoomNumber:  in.RoomNumber,
		Building:    in.Building,
		Floor:       in.Floor,
		Type:        in.Type,
		Capacity:    in.Capacity,
		RentAmount:  in.RentAmount,
		Status:      in.Status,
		Description: in.Description,
		CreatedBy:   actor.ID,
		UpdatedBy:   actor.ID,
	}
	saved, err := s.write(ctx, "", room)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventRoomCreated, saved.ID, roomLabel(*saved), string(saved.Status), "", actor)
	// a new room has no contracts yet
	v := roomView(*saved, occupancy.Derive(*saved, nil))
	return &v, nil
}

func (s *RoomService) UpdateRoom(ctx context.Context, id string, in models.RoomInput, actor models.Actor) (*models.RoomView, error) {
	existing, err := s.getRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	in = normalizeRoomInput(in)
	if err := s.validateRoom(ctx, id, in); err != nil {
		return nil, err
	}

	room := *existing
	room.RoomNumber = in.RoomNumber
	room.Building = in.Building
	room.Floor = in.Floor
	room.Type = in.Type
	room.Capacity = in.Capacity
	room.RentAmount = in.RentAmount
	room.Status = in.Status
	room.Description = in.Description
	room.UpdatedBy = actor.ID

	saved, err := s.write(ctx, id, room)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventRoomUpdated, id, roomLabel(*saved), string(saved.Status), "", actor)
	return s.GetRoom(ctx, id)
}

// DeleteRoom soft-deletes an unoccupied room. Occupied rooms and rooms under
// maintenance are refused with a DeleteBlockedError and nothing is written.
func (s *RoomService) DeleteRoom(ctx context.Context, id string, actor models.Actor) error {
	view, err := s.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if ok, reason := occupancy.CanDelete(view.Occupancy); !ok {
		return &DeleteBlockedError{ID: id, Reason: reason}
	}

	patch := store.Document{
		"isDeleted": true,
		"deletedAt": s.stamp(),
		"deletedBy": actor.ID,
		"updatedBy": actor.ID,
	}
	if _, err := s.docs.Update(ctx, s.cols.Rooms, id, patch); err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Rooms).Str("id", id).Msg("Failed to delete room")
		return fmt.Errorf("delete room %s: %w", id, err)
	}

	s.publishEvent(events.EventRoomDeleted, id, roomLabel(view.Room), "", "", actor)
	return nil
}

// ActiveContracts returns every contract whose status is active.
func ActiveContracts(ctx context.Context, docs store.Documents, collection string) ([]models.Contract, error) {
	list, err := store.ListAll(ctx, docs, collection, store.NewQuery(store.Equal("status", models.ContractActive)))
	if err != nil {
		return nil, fmt.Errorf("list active contracts: %w", err)
	}
	return store.DecodeAll[models.Contract](list)
}

func (s *RoomService) activeIndex(ctx context.Context) (occupancy.Index, error) {
	contracts, err := ActiveContracts(ctx, s.docs, s.cols.Contracts)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Contracts).Msg("Failed to load contracts")
		return nil, err
	}
	return occupancy.NewIndex(contracts), nil
}

func (s *RoomService) loadRooms(ctx context.Context, q store.Query) ([]models.Room, error) {
	list, err := store.ListAll(ctx, s.docs, s.cols.Rooms, q)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Rooms).Msg("Failed to list rooms")
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return store.DecodeAll[models.Room](list)
}

func (s *RoomService) getRoom(ctx context.Context, id string) (*models.Room, error) {
	doc, err := s.docs.Get(ctx, s.cols.Rooms, id)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	var room models.Room
	if err := store.Decode(doc, &room); err != nil {
		return nil, err
	}
	if room.IsDeleted {
		return nil, fmt.Errorf("get room %s: %w", id, store.ErrNotFound)
	}
	return &room, nil
}

func (s *RoomService) write(ctx context.Context, id string, room models.Room) (*models.Room, error) {
	doc, err := store.Encode(room)
	if err != nil {
		return nil, err
	}
	doc = store.Payload(doc)

	var saved store.Document
	if id == "" {
		saved, err = s.docs.Create(ctx, s.cols.Rooms, store.UniqueID(), doc)
	} else {
		saved, err = s.docs.Update(ctx, s.cols.Rooms, id, doc)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Rooms).Str("id", id).Msg("Failed to save room")
		return nil, fmt.Errorf("save room: %w", err)
	}

	var out models.Room
	if err := store.Decode(saved, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RoomService) validateRoom(ctx context.Context, id string, in models.RoomInput) error {
	v := newValidation()
	if in.RoomNumber == "" {
		v.add("roomNumber", "room number is required")
	}
	if in.Building == "" {
		v.add("building", "building is required")
	}
	if in.Capacity < 1 {
		v.add("capacity", "capacity must be at least 1")
	}
	if in.RentAmount < 0 {
		v.add("rentAmount", "rent amount cannot be negative")
	}
	if !in.Type.Valid() {
		v.add("type", "type must be single, double or suite")
	}
	if in.Status != "" && in.Status != models.RoomMaintenance {
		v.add("status", "status must be empty or maintenance")
	}
	if err := v.orNil(); err != nil {
		return err
	}

	q := store.NewQuery(
		store.Equal("building", in.Building),
		store.Equal("roomNumber", in.RoomNumber),
		store.NotEqual("isDeleted", true),
	)
	dupes, err := store.ListAll(ctx, s.docs, s.cols.Rooms, q)
	if err != nil {
		return fmt.Errorf("check room number: %w", err)
	}
	for _, d := range dupes {
		if d.ID() != id {
			v.add("roomNumber", fmt.Sprintf("room %s already exists in building %s", in.RoomNumber, in.Building))
			break
		}
	}
	return v.orNil()
}

// normalizeRoomInput trims text and drops derived statuses. Only maintenance
// is ever stored; everything else is recomputed on read.
func normalizeRoomInput(in models.RoomInput) models.RoomInput {
	in.RoomNumber = strings.TrimSpace(in.RoomNumber)
	in.Building = strings.TrimSpace(in.Building)
	in.Description = strings.TrimSpace(in.Description)
	in.Status = models.RoomStatus(strings.TrimSpace(string(in.Status)))
	switch in.Status {
	case models.RoomNotOccupied, models.RoomRemainingSpace, models.RoomFull, "auto":
		in.Status = ""
	}
	return in
}

func roomView(room models.Room, occ models.RoomOccupancy) models.RoomView {
	ok, reason := occupancy.CanDelete(occ)
	return models.RoomView{
		Room:                room,
		Occupancy:           occ,
		CanDelete:           ok,
		DeleteBlockedReason: reason,
	}
}

func roomLabel(r models.Room) string {
	return r.Building + "/" + r.RoomNumber
}
