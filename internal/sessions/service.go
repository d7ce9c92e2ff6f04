package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/salonmirai/sitesync/internal/config"
	"github.com/salonmirai/sitesync/internal/tokens"
	"github.com/salonmirai/sitesync/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoSession          = errors.New("session expired or logged out")
)

// Authenticator checks a username/password pair.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// Login is returned to the admin UI after a successful login.
type Login struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Expiry   int64  `json:"expiry"`
}

// Service issues and checks admin sessions.
type Service struct {
	repo  Repository
	auth  Authenticator
	cfg   *config.Config
	ttl   time.Duration
	now   func() time.Time
	audit func(ctx context.Context, action, user string, success bool)
}

func NewService(r Repository, auth Authenticator, cfg *config.Config) *Service {
	ttl := cfg.Admin.SessionTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Service{repo: r, auth: auth, cfg: cfg, ttl: ttl, now: time.Now}
}

// WithAudit records login and logout events (best effort).
func (s *Service) WithAudit(fn func(ctx context.Context, action, user string, success bool)) *Service {
	s.audit = fn
	return s
}

func (s *Service) record(ctx context.Context, action, user string, success bool) {
	if s.audit != nil {
		s.audit(ctx, action, user, success)
	}
}

// Login checks the credential table and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (*Login, error) {
	if !s.auth.Authenticate(username, password) {
		logger.Infof("sessions: rejected login for %q", username)
		s.record(ctx, "login", username, false)
		return nil, ErrInvalidCredentials
	}
	expiry := s.now().Add(s.ttl)
	sess := &Session{ID: uuid.NewString(), Username: username, Expiry: expiry.UnixMilli()}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	tok, err := tokens.GenerateSessionToken(s.cfg, username, sess.ID, expiry)
	if err != nil {
		_ = s.repo.Delete(ctx, sess.ID)
		return nil, err
	}
	s.record(ctx, "login", username, true)
	return &Login{Token: tok, Username: username, Expiry: sess.Expiry}, nil
}

// Check returns the live session behind a token. Expired sessions are removed.
func (s *Service) Check(ctx context.Context, token string) (*Session, error) {
	claims, err := tokens.ParseSessionToken(s.cfg, token)
	if err != nil {
		return nil, err
	}
	sess, err := s.repo.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Username != claims.Username {
		return nil, ErrNoSession
	}
	if sess.Expired(s.now()) {
		_ = s.repo.Delete(ctx, sess.ID)
		return nil, ErrNoSession
	}
	return sess, nil
}

// Logout ends the session behind token. Unknown or expired tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := tokens.ParseSessionToken(s.cfg, token)
	if err != nil {
		return nil
	}
	s.record(ctx, "logout", claims.Username, true)
	return s.repo.Delete(ctx, claims.ID)
}

// IsSessionToken reports whether token was issued by this service.
func (s *Service) IsSessionToken(token string) bool {
	_, err := tokens.ParseSessionToken(s.cfg, token)
	return err == nil
}
