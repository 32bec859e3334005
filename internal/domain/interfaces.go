package domain

import (
	"context"
	"time"

	"dormdesk/internal/models"
)

type SessionRepository interface {
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	// Get returns nil, nil when the session does not exist or has expired.
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// IdentityProvisioner creates and maintains login identities for system users.
type IdentityProvisioner interface {
	CreateIdentity(ctx context.Context, req models.IdentityRequest) (authID string, err error)
	UpdateIdentity(ctx context.Context, authID string, req models.IdentityRequest) error
	DeleteIdentity(ctx context.Context, authID string) error
}

type RoomService interface {
	ListRooms(ctx context.Context, filter models.RoomFilter) ([]models.RoomView, int, error)
	GetRoom(ctx context.Context, id string) (*models.RoomView, error)
	CreateRoom(ctx context.Context, in models.RoomInput, actor models.Actor) (*models.RoomView, error)
	UpdateRoom(ctx context.Context, id string, in models.RoomInput, actor models.Actor) (*models.RoomView, error)
	DeleteRoom(ctx context.Context, id string, actor models.Actor) error
}

type ComplianceService interface {
	ListTickets(ctx context.Context, filter models.TicketFilter) ([]models.ComplianceTicket, int, error)
	GetTicket(ctx context.Context, id string) (*models.ComplianceTicket, error)
	CreateTicket(ctx context.Context, in models.TicketInput, uploads []models.Upload, actor models.Actor) (*models.ComplianceTicket, error)
	UpdateTicket(ctx context.Context, id string, in models.TicketInput, uploads []models.Upload, actor models.Actor) (*models.ComplianceTicket, error)
	ChangeTicketStatus(ctx context.Context, id string, status models.TicketStatus, notes string, actor models.Actor) (*models.ComplianceTicket, error)
}

type CatalogService interface {
	ListServices(ctx context.Context, filter models.CatalogFilter) ([]models.CatalogItem, int, error)
	GetService(ctx context.Context, id string) (*models.CatalogItem, error)
	CreateService(ctx context.Context, in models.CatalogInput, image *models.Upload, actor models.Actor) (*models.CatalogItem, error)
	UpdateService(ctx context.Context, id string, in models.CatalogInput, image *models.Upload, actor models.Actor) (*models.CatalogItem, error)
	SetServiceAvailability(ctx context.Context, id string, available bool, actor models.Actor) (*models.CatalogItem, error)
	DeleteService(ctx context.Context, id string, actor models.Actor) error
}

type CheckoutService interface {
	ListCheckouts(ctx context.Context, filter models.CheckoutFilter) ([]models.CheckoutView, int, error)
	GetCheckout(ctx context.Context, id string) (*models.CheckoutView, error)
	CreateCheckout(ctx context.Context, in models.CheckoutInput, actor models.Actor) (*models.CheckoutView, error)
	ApproveCheckout(ctx context.Context, id, notes string, actor models.Actor) (*models.CheckoutView, error)
	RejectCheckout(ctx context.Context, id, reason string, actor models.Actor) (*models.CheckoutView, error)
	CompleteCheckout(ctx context.Context, id, notes string, actor models.Actor) (*models.CheckoutView, error)
	CompleteExpired(ctx context.Context) (int, error)
}

type UserService interface {
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.SystemUser, int, error)
	GetUser(ctx context.Context, id string) (*models.SystemUser, error)
	CreateUser(ctx context.Context, in models.UserInput, actor models.Actor) (*models.SystemUser, error)
	UpdateUser(ctx context.Context, id string, in models.UserInput, actor models.Actor) (*models.SystemUser, error)
	SetUserActive(ctx context.Context, id string, active bool, actor models.Actor) (*models.SystemUser, error)
	DeleteUser(ctx context.Context, id string, actor models.Actor) error
}

type DashboardService interface {
	Build(ctx context.Context, rng models.TimeRange) (*models.Dashboard, error)
}
