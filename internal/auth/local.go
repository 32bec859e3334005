package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password with bcrypt at the given cost. A cost of 0
// uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// LocalAccounts authenticates against the credentials collection. It stands
// in for the hosted account API on the mongodb, sqlite and memory drivers.
type LocalAccounts struct {
	docs       store.Documents
	collection string
	ttl        time.Duration
	now        func() time.Time
}

var _ store.Accounts = (*LocalAccounts)(nil)

func NewLocalAccounts(docs store.Documents, collection string, ttl time.Duration) *LocalAccounts {
	return &LocalAccounts{docs: docs, collection: collection, ttl: ttl, now: time.Now}
}

func (a *LocalAccounts) CreateSession(ctx context.Context, email, password string) (*store.Session, error) {
	cred, err := findCredential(ctx, a.docs, a.collection, email)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.Disabled || !CheckPassword(password, cred.PasswordHash) {
		return nil, fmt.Errorf("sign in %s: %w", email, store.ErrUnauthorized)
	}
	return &store.Session{
		ID:     store.UniqueID(),
		UserID: cred.AuthID,
		Expire: a.now().UTC().Add(a.ttl),
	}, nil
}

// DeleteSession is a no-op: local account sessions live only in the session
// repository.
func (a *LocalAccounts) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return nil
}

// LocalProvisioner keeps login identities as bcrypt credentials next to the
// user documents.
type LocalProvisioner struct {
	docs       store.Documents
	collection string
	cost       int
}

func NewLocalProvisioner(docs store.Documents, collection string, cost int) *LocalProvisioner {
	return &LocalProvisioner{docs: docs, collection: collection, cost: cost}
}

func (p *LocalProvisioner) CreateIdentity(ctx context.Context, req models.IdentityRequest) (string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return "", errors.New("email and password are required")
	}
	existing, err := findCredential(ctx, p.docs, p.collection, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", fmt.Errorf("identity %s: %w", email, store.ErrConflict)
	}

	hash, err := HashPassword(req.Password, p.cost)
	if err != nil {
		return "", err
	}
	authID := store.UniqueID()
	cred := models.Credential{
		Email:        email,
		PasswordHash: hash,
		AuthID:       authID,
		Name:         req.Name,
		Disabled:     req.IsActive != nil && !*req.IsActive,
	}
	doc, err := store.Encode(cred)
	if err != nil {
		return "", err
	}
	if _, err := p.docs.Create(ctx, p.collection, authID, store.Payload(doc)); err != nil {
		return "", fmt.Errorf("save credential: %w", err)
	}
	return authID, nil
}

func (p *LocalProvisioner) UpdateIdentity(ctx context.Context, authID string, req models.IdentityRequest) error {
	patch := store.Document{}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		patch["email"] = email
	}
	if req.Name != "" {
		patch["name"] = req.Name
	}
	if req.Password != "" {
		hash, err := HashPassword(req.Password, p.cost)
		if err != nil {
			return err
		}
		patch["passwordHash"] = hash
	}
	if req.IsActive != nil {
		patch["disabled"] = !*req.IsActive
	}
	if len(patch) == 0 {
		return nil
	}
	if _, err := p.docs.Update(ctx, p.collection, authID, patch); err != nil {
		return fmt.Errorf("update credential %s: %w", authID, err)
	}
	return nil
}

func (p *LocalProvisioner) DeleteIdentity(ctx context.Context, authID string) error {
	err := p.docs.Delete(ctx, p.collection, authID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete credential %s: %w", authID, err)
	}
	return nil
}

func findCredential(ctx context.Context, docs store.Documents, collection, email string) (*models.Credential, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	list, err := docs.List(ctx, collection, store.NewQuery(store.Equal("email", email)).Page(1, 0))
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if len(list.Documents) == 0 {
		return nil, nil
	}
	var cred models.Credential
	if err := store.Decode(list.Documents[0], &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}
