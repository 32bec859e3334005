package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dormdesk/internal/domain"
	"dormdesk/internal/events"
	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UserDirectory resolves console users for sign-in and per-request checks.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.SystemUser, error)
	FindByAuthID(ctx context.Context, authID string) (*models.SystemUser, error)
}

// Service signs console users in against the account provider and keeps the
// resulting sessions in the session repository.
type Service struct {
	accounts  store.Accounts
	users     UserDirectory
	sessions  domain.SessionRepository
	tokens    *TokenService
	publisher domain.EventPublisher
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewService(accounts store.Accounts, users UserDirectory, sessions domain.SessionRepository, tokens *TokenService, publisher domain.EventPublisher, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "auth").Logger()
	return &Service{
		accounts:  accounts,
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		publisher: publisher,
		logger:    &l,
		now:       time.Now,
	}
}

// Login opens an account session, requires an active console user behind it
// and returns the server-side session with its signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	account, err := s.accounts.CreateSession(ctx, email, password)
	if err != nil {
		if errors.Is(err, store.ErrUnauthorized) || errors.Is(err, store.ErrNotFound) {
			s.logger.Warn().Str("email", email).Msg("Rejected sign-in")
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("create account session: %w", err)
	}

	user, err := s.users.FindByAuthID(ctx, account.UserID)
	if err != nil {
		s.dropAccountSession(ctx, account)
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrAccessDenied
		}
		return nil, "", err
	}
	if !user.IsActive || user.IsDeleted || !user.Role.ConsoleAccess() {
		s.dropAccountSession(ctx, account)
		s.logger.Warn().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("Console access denied")
		return nil, "", ErrAccessDenied
	}

	now := s.now().UTC()
	session := &models.Session{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		AuthUserID:    account.UserID,
		AuthSessionID: account.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.tokens.TTL()),
	}
	if err := s.sessions.Save(ctx, session, s.tokens.TTL()); err != nil {
		s.dropAccountSession(ctx, account)
		return nil, "", fmt.Errorf("save session: %w", err)
	}

	token, err := s.tokens.Issue(session)
	if err != nil {
		_ = s.sessions.Delete(ctx, session.ID)
		s.dropAccountSession(ctx, account)
		return nil, "", err
	}

	s.publish(events.EventSessionStarted, session)
	return session, token, nil
}

// Authenticate resolves a bearer token to its session. Any failure after the
// token is verified clears the session record.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) && claims != nil {
			_ = s.sessions.Delete(ctx, claims.SessionID)
		}
		return nil, err
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != claims.UserID {
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if user == nil || !user.IsActive || !user.Role.ConsoleAccess() {
		s.clear(ctx, session)
		return nil, ErrAccessDenied
	}
	// role changes apply to the next request
	session.Role = user.Role
	session.Name = user.Name
	return session, nil
}

// Logout deletes the session record and the account session behind it.
func (s *Service) Logout(ctx context.Context, session *models.Session) error {
	if session == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if session.AuthSessionID != "" {
		if err := s.accounts.DeleteSession(ctx, session.AuthUserID, session.AuthSessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to delete account session")
			return fmt.Errorf("delete account session: %w", err)
		}
	}
	s.publish(events.EventSessionEnded, session)
	return nil
}

func (s *Service) clear(ctx context.Context, session *models.Session) {
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to clear session")
	}
	if session.AuthSessionID != "" {
		_ = s.accounts.DeleteSession(ctx, session.AuthUserID, session.AuthSessionID)
	}
}

func (s *Service) dropAccountSession(ctx context.Context, account *store.Session) {
	if err := s.accounts.DeleteSession(ctx, account.UserID, account.ID); err != nil {
		s.logger.Error().Err(err).Str("auth_user_id", account.UserID).Msg("Failed to drop account session")
	}
}

func (s *Service) publish(eventType string, session *models.Session) {
	if s.publisher == nil {
		return
	}
	payload := events.EntityPayload{
		ID:        session.ID,
		Label:     session.Email,
		Status:    string(session.Role),
		ActorID:   session.UserID,
		ActorName: session.Name,
		At:        s.now().UTC(),
	}
	if err := s.publisher.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to publish event")
	}
}
