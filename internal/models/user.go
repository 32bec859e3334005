package models

import "time"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleService    Role = "service"
	RoleRestaurant Role = "restaurant"
	RoleStudent    Role = "student"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleService, RoleRestaurant, RoleStudent:
		return true
	}
	return false
}

type Permission string

const (
	PermViewDashboard    Permission = "view:dashboard"
	PermViewRooms        Permission = "view:rooms"
	PermManageRooms      Permission = "manage:rooms"
	PermViewCompliance   Permission = "view:compliance"
	PermManageCompliance Permission = "manage:compliance"
	PermViewServices     Permission = "view:services"
	PermManageServices   Permission = "manage:services"
	PermViewCheckout     Permission = "view:checkout"
	PermManageCheckout   Permission = "manage:checkout"
	PermManageUsers      Permission = "manage:users"
	PermViewFiles        Permission = "view:files"
)

var rolePermissions = map[Role][]Permission{
	RoleService: {
		PermViewDashboard, PermViewRooms,
		PermViewCompliance, PermManageCompliance,
		PermViewServices, PermManageServices,
		PermViewFiles,
	},
	RoleRestaurant: {PermViewDashboard, PermViewServices, PermViewFiles},
}

// Can reports whether the role grants p. Admins hold every permission and
// students hold none.
func (r Role) Can(p Permission) bool {
	if r == RoleAdmin {
		return true
	}
	for _, granted := range rolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

// ConsoleAccess reports whether the role may sign in to the console.
func (r Role) ConsoleAccess() bool {
	return r == RoleAdmin || r == RoleService
}

// SystemUser is a console or resident account mirrored from the identity provider.
type SystemUser struct {
	Meta
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"isActive"`
	IsDeleted bool       `json:"isDeleted"`
	AuthID    string     `json:"authId,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
}

type UserInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Role            Role   `json:"role"`
	IsActive        *bool  `json:"isActive"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type UserFilter struct {
	Role   Role
	Active *bool
	Search string
	Limit  int
	Offset int
}

// IdentityRequest is the payload sent to the identity provisioning functions.
type IdentityRequest struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role,omitempty"`
	IsActive *bool  `json:"isActive,omitempty"`
}

// Credential is a locally stored login for drivers without a hosted identity provider.
type Credential struct {
	Meta
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	AuthID       string `json:"authId"`
	Name         string `json:"name,omitempty"`
	Disabled     bool   `json:"disabled"`
}

// Session is an authenticated console session.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	AuthUserID    string    `json:"authUserId"`
	AuthSessionID string    `json:"authSessionId"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func (s *Session) Actor() Actor {
	return Actor{ID: s.UserID, Name: s.Name}
}
