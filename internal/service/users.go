package service

import (
	"context"
	"fmt"
	"strings"

	"dormdesk/internal/config"
	"dormdesk/internal/domain"
	"dormdesk/internal/events"
	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/rs/zerolog"
)

const minPasswordLength = 8

type UserService struct {
	base
	identities domain.IdentityProvisioner
}

func NewUserService(docs store.Documents, identities domain.IdentityProvisioner, cols config.CollectionsConfig, publisher domain.EventPublisher, logger *zerolog.Logger) *UserService {
	return &UserService{
		base:       newBase(docs, cols, publisher, logger, "users"),
		identities: identities,
	}
}

func (s *UserService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.SystemUser, int, error) {
	q := store.NewQuery(store.NotEqual("isDeleted", true)).OrderAsc("name")
	if filter.Role != "" {
		q = q.Where(store.Equal("role", filter.Role))
	}
	if filter.Active != nil {
		q = q.Where(store.Equal("isActive", *filter.Active))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		q = q.Where(store.Search("name", term))
	}

	if filter.Limit > 0 {
		list, err := s.docs.List(ctx, s.cols.Users, q.Page(filter.Limit, filter.Offset))
		if err != nil {
			s.logger.Error().Err(err).Str("collection", s.cols.Users).Msg("Failed to list users")
			return nil, 0, fmt.Errorf("list users: %w", err)
		}
		users, err := store.DecodeAll[models.SystemUser](list.Documents)
		return users, list.Total, err
	}

	all, err := store.ListAll(ctx, s.docs, s.cols.Users, q)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Users).Msg("Failed to list users")
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	users, err := store.DecodeAll[models.SystemUser](all)
	return users, len(all), err
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.SystemUser, error) {
	doc, err := s.docs.Get(ctx, s.cols.Users, id)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	var u models.SystemUser
	if err := store.Decode(doc, &u); err != nil {
		return nil, err
	}
	if u.IsDeleted {
		return nil, fmt.Errorf("get user %s: %w", id, store.ErrNotFound)
	}
	return &u, nil
}

// FindByAuthID resolves the system user bound to a login identity.
func (s *UserService) FindByAuthID(ctx context.Context, authID string) (*models.SystemUser, error) {
	list, err := s.docs.List(ctx, s.cols.Users, store.NewQuery(store.Equal("authId", authID)).Page(1, 0))
	if err != nil {
		return nil, fmt.Errorf("find user by auth id: %w", err)
	}
	if len(list.Documents) == 0 {
		return nil, fmt.Errorf("user with auth id %s: %w", authID, store.ErrNotFound)
	}
	var u models.SystemUser
	if err := store.Decode(list.Documents[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser provisions the login identity first and then writes the user
// document. If the write fails the identity is left behind and logged.
func (s *UserService) CreateUser(ctx context.Context, in models.UserInput, actor models.Actor) (*models.SystemUser, error) {
	in = normalizeUserInput(in)
	if err := s.validateUser(ctx, "", in, true); err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	authID, err := s.identities.CreateIdentity(ctx, models.IdentityRequest{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Phone:    in.Phone,
		Role:     in.Role,
		IsActive: &active,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("email", in.Email).Msg("Failed to provision identity")
		return nil, fmt.Errorf("create identity: %w", err)
	}

	user := models.SystemUser{
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Role:      in.Role,
		IsActive:  active,
		AuthID:    authID,
		CreatedBy: actor.ID,
		UpdatedBy: actor.ID,
	}
	doc, err := store.Encode(user)
	if err != nil {
		return nil, err
	}
	saved, err := s.docs.Create(ctx, s.cols.Users, store.UniqueID(), store.Payload(doc))
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Users).Str("orphaned_auth_id", authID).Msg("Failed to save user")
		return nil, fmt.Errorf("save user: %w", err)
	}

	var out models.SystemUser
	if err := store.Decode(saved, &out); err != nil {
		return nil, err
	}
	s.publishEvent(events.EventUserCreated, out.ID, out.Email, string(out.Role), "", actor)
	return &out, nil
}

// UpdateUser pushes the change to the identity provider and then overwrites
// the document. A blank password keeps the current one.
func (s *UserService) UpdateUser(ctx context.Context, id string, in models.UserInput, actor models.Actor) (*models.SystemUser, error) {
	existing, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	in = normalizeUserInput(in)
	if err := s.validateUser(ctx, id, in, false); err != nil {
		return nil, err
	}

	user := *existing
	user.Name = in.Name
	user.Email = in.Email
	user.Phone = in.Phone
	user.Role = in.Role
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	user.UpdatedBy = actor.ID

	if user.AuthID != "" {
		active := user.IsActive
		err := s.identities.UpdateIdentity(ctx, user.AuthID, models.IdentityRequest{
			Email:    user.Email,
			Password: in.Password,
			Name:     user.Name,
			Phone:    user.Phone,
			Role:     user.Role,
			IsActive: &active,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("auth_id", user.AuthID).Msg("Failed to update identity")
			return nil, fmt.Errorf("update identity: %w", err)
		}
	}

	doc, err := store.Encode(user)
	if err != nil {
		return nil, err
	}
	saved, err := s.docs.Update(ctx, s.cols.Users, id, store.Payload(doc))
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Users).Str("id", id).Msg("Failed to save user")
		return nil, fmt.Errorf("save user %s: %w", id, err)
	}

	var out models.SystemUser
	if err := store.Decode(saved, &out); err != nil {
		return nil, err
	}
	s.publishEvent(events.EventUserUpdated, id, out.Email, string(out.Role), "", actor)
	return &out, nil
}

func (s *UserService) SetUserActive(ctx context.Context, id string, active bool, actor models.Actor) (*models.SystemUser, error) {
	existing, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !active && id == actor.ID {
		return nil, &DeleteBlockedError{ID: id, Reason: "you cannot deactivate your own account"}
	}

	if existing.AuthID != "" {
		if err := s.identities.UpdateIdentity(ctx, existing.AuthID, models.IdentityRequest{IsActive: &active}); err != nil {
			s.logger.Error().Err(err).Str("auth_id", existing.AuthID).Msg("Failed to update identity status")
			return nil, fmt.Errorf("update identity: %w", err)
		}
	}

	doc, err := s.docs.Update(ctx, s.cols.Users, id, store.Document{"isActive": active, "updatedBy": actor.ID})
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Users).Str("id", id).Msg("Failed to toggle user")
		return nil, fmt.Errorf("set user %s active: %w", id, err)
	}
	var out models.SystemUser
	if err := store.Decode(doc, &out); err != nil {
		return nil, err
	}
	s.publishEvent(events.EventUserUpdated, id, out.Email, fmt.Sprintf("active=%t", active), "", actor)
	return &out, nil
}

// DeleteUser removes the login identity and soft-deletes the document.
func (s *UserService) DeleteUser(ctx context.Context, id string, actor models.Actor) error {
	existing, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if id == actor.ID {
		return &DeleteBlockedError{ID: id, Reason: "you cannot delete your own account"}
	}

	if existing.AuthID != "" {
		if err := s.identities.DeleteIdentity(ctx, existing.AuthID); err != nil {
			s.logger.Error().Err(err).Str("auth_id", existing.AuthID).Msg("Failed to delete identity")
			return fmt.Errorf("delete identity: %w", err)
		}
	}

	patch := store.Document{
		"isDeleted": true,
		"isActive":  false,
		"deletedAt": s.stamp(),
		"updatedBy": actor.ID,
	}
	if _, err := s.docs.Update(ctx, s.cols.Users, id, patch); err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Users).Str("id", id).Msg("Failed to delete user")
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	s.publishEvent(events.EventUserDeleted, id, existing.Email, "", "", actor)
	return nil
}

func (s *UserService) validateUser(ctx context.Context, id string, in models.UserInput, creating bool) error {
	v := newValidation()
	if in.Name == "" {
		v.add("name", "name is required")
	}
	if !validEmail(in.Email) {
		v.add("email", "a valid email is required")
	}
	if !in.Role.Valid() {
		v.add("role", "role must be admin, service, restaurant or student")
	}
	if creating || in.Password != "" {
		if len(in.Password) < minPasswordLength {
			v.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		if in.Password != in.ConfirmPassword {
			v.add("confirmPassword", "passwords do not match")
		}
	}
	if err := v.orNil(); err != nil {
		return err
	}

	q := store.NewQuery(store.Equal("email", in.Email), store.NotEqual("isDeleted", true))
	dupes, err := store.ListAll(ctx, s.docs, s.cols.Users, q)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	for _, d := range dupes {
		if d.ID() != id {
			v.add("email", "another user already uses this email")
			break
		}
	}
	return v.orNil()
}

func normalizeUserInput(in models.UserInput) models.UserInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}
