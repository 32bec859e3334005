package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"dormdesk/internal/auth"
	"dormdesk/internal/config"
	"dormdesk/internal/models"

	"github.com/rs/zerolog"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"
)

var (
	errAuthRequired     = errors.New("authentication required")
	errInvalidAPIKey    = errors.New("invalid api key")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

// Authenticator resolves bearer tokens to console sessions.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.Session, string, error)
	Authenticate(ctx context.Context, token string) (*models.Session, error)
	Logout(ctx context.Context, session *models.Session) error
}

// Principal is the caller behind a request: a console session or an API client.
type Principal struct {
	Session     *models.Session
	ClientName  string
	Permissions []string
}

// Can reports whether the principal holds p. Sessions follow their role; an
// API client with an empty permission list may do anything.
func (p *Principal) Can(perm models.Permission) bool {
	if p.Session != nil {
		return p.Session.Role.Can(perm)
	}
	if len(p.Permissions) == 0 {
		return true
	}
	for _, granted := range p.Permissions {
		if strings.TrimSpace(granted) == string(perm) {
			return true
		}
	}
	return false
}

func (p *Principal) Actor() models.Actor {
	if p.Session != nil {
		return p.Session.Actor()
	}
	return models.Actor{ID: "api:" + p.ClientName, Name: p.ClientName}
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller attached by HTTPAuth.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// HTTPAuth accepts either a bearer session token or the API-key header pair,
// then applies per-client rate limiting.
type HTTPAuth struct {
	cfg      config.APIAuthConfig
	clients  map[string]config.APIClientKey
	sessions Authenticator
	limiter  *rateLimiter
	logger   *zerolog.Logger
}

func NewHTTPAuth(cfg config.APIConfig, sessions Authenticator, logger *zerolog.Logger) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &HTTPAuth{
		cfg:      cfg.Auth,
		clients:  m,
		sessions: sessions,
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   logger,
	}
}

// Wrap rejects unauthenticated requests and attaches the Principal.
func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.authenticate(r)
		if err != nil {
			statusCode := http.StatusUnauthorized
			if errors.Is(err, auth.ErrAccessDenied) {
				statusCode = http.StatusForbidden
			}
			if statusCode == http.StatusUnauthorized && !errors.Is(err, errAuthRequired) {
				a.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			}
			writeError(w, statusCode, publicAuthMessage(err))
			return
		}

		if !a.limiter.allow(a.clientKey(r, principal)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// Throttle applies the rate limit to unauthenticated routes, keyed by remote host.
func (a *HTTPAuth) Throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.allow(a.clientKey(r, nil)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission must run after Wrap.
func RequirePermission(perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, errAuthRequired.Error())
				return
			}
			if !p.Can(perm) {
				writeError(w, http.StatusForbidden, errPermissionDenied.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *HTTPAuth) authenticate(r *http.Request) (*Principal, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, err := auth.ExtractBearer(header)
		if err != nil {
			return nil, err
		}
		if a.sessions == nil {
			return nil, errAuthRequired
		}
		session, err := a.sessions.Authenticate(r.Context(), token)
		if err != nil {
			return nil, err
		}
		return &Principal{Session: session}, nil
	}

	apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader()))
	extra := strings.TrimSpace(r.Header.Get(a.extraHeader()))
	if apiKey == "" {
		return nil, errAuthRequired
	}
	if extra == "" {
		return nil, errInvalidAPIKey
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return nil, errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return nil, errInvalidAPIKey
	}
	return &Principal{ClientName: client.Name, Permissions: client.Permissions}, nil
}

func (a *HTTPAuth) apiKeyHeader() string {
	if h := strings.ToLower(strings.TrimSpace(a.cfg.HeaderAPIKey)); h != "" {
		return h
	}
	return apiKeyHeaderDefault
}

func (a *HTTPAuth) extraHeader() string {
	if h := strings.ToLower(strings.TrimSpace(a.cfg.HeaderExtra)); h != "" {
		return h
	}
	return apiExtraHeaderDefault
}

func (a *HTTPAuth) clientKey(r *http.Request, p *Principal) string {
	if p != nil {
		if p.Session != nil {
			return "user:" + p.Session.UserID
		}
		return "client:" + p.ClientName
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func publicAuthMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrAccessDenied):
		return "access denied"
	case errors.Is(err, auth.ErrExpiredToken):
		return "session expired"
	case errors.Is(err, errAuthRequired), errors.Is(err, errInvalidAPIKey):
		return err.Error()
	default:
		return "invalid session"
	}
}
