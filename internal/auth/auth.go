// Package auth manages panel accounts and login sessions for the
// openvpn-webui web interface. Accounts and sessions live in SQLite.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultUser is created on first run. It is also the superuser name the
	// certificate gate recognizes.
	DefaultUser     = "root"
	defaultPassword = "openvpn"

	// DefaultSessionTTL is the lifetime of a login session.
	DefaultSessionTTL = 30 * 24 * time.Hour

	headerSessionPrefix = "header:"
)

// bcryptCost is the work factor used when hashing passwords.
// Tests lower it to bcrypt.MinCost.
var bcryptCost = bcrypt.DefaultCost

var (
	// ErrInvalidCredentials is returned by Login for unknown users or wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrEmptyPassword is returned when setting an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
)

// Identity is the authenticated viewer of a request.
type Identity struct {
	Username string
	// Session keys the viewer's workspace.
	Session string
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Options tune a Manager.
type Options struct {
	// SessionTTL defaults to DefaultSessionTTL.
	SessionTTL time.Duration
	// TrustedHeader names a request header set by a reverse proxy that
	// carries the already authenticated user name. Empty disables it.
	TrustedHeader string
}

// Manager handles password authentication and session validation.
type Manager struct {
	db            *sql.DB
	ttl           time.Duration
	trustedHeader string
	now           func() time.Time
}

// NewManager creates an auth manager backed by db.
func NewManager(db *sql.DB, opts Options) *Manager {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{
		db:            db,
		ttl:           ttl,
		trustedHeader: strings.TrimSpace(opts.TrustedHeader),
		now:           time.Now,
	}
}

// SessionTTL returns how long a login session stays valid.
func (m *Manager) SessionTTL() time.Duration {
	return m.ttl
}

// EnsureDefaults creates the default account when no account exists. It
// reports whether the account was created.
func (m *Manager) EnsureDefaults() (bool, error) {
	var count int
	if err := m.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return false, fmt.Errorf("count accounts: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if err := m.SetPassword(DefaultUser, defaultPassword); err != nil {
		return false, err
	}
	return true, nil
}

// CheckPassword returns true if plain matches the stored hash of username.
func (m *Manager) CheckPassword(username, plain string) bool {
	var hash string
	err := m.db.QueryRow(`SELECT password_hash FROM accounts WHERE username = ?`, username).Scan(&hash)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// SetPassword hashes plain and stores it for username, creating the account
// when needed.
func (m *Manager) SetPassword(username, plain string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if plain == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return err
	}
	now := m.now().Unix()
	_, err = m.db.Exec(`
		INSERT INTO accounts (username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash, updated_at = excluded.updated_at`,
		username, string(hash), now, now)
	if err != nil {
		return fmt.Errorf("store password for %s: %w", username, err)
	}
	return nil
}

// Login verifies the credentials and opens a session.
func (m *Manager) Login(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if !m.CheckPassword(username, password) {
		return "", ErrInvalidCredentials
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	now := m.now()
	_, err = m.db.Exec(`INSERT INTO sessions (token, username, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, username, now.Unix(), now.Add(m.ttl).Unix())
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// Logout ends the session identified by token.
func (m *Manager) Logout(token string) error {
	_, err := m.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// ValidateToken returns the identity of a live session.
func (m *Manager) ValidateToken(token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}
	var (
		stored   string
		username string
		expires  int64
	)
	err := m.db.QueryRow(`SELECT token, username, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&stored, &username, &expires)
	if err != nil {
		return Identity{}, false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(stored)) != 1 || m.now().Unix() > expires {
		return Identity{}, false
	}
	return Identity{Username: username, Session: token}, true
}

// SessionValid reports whether session still identifies a viewer. Trusted
// header sessions stay valid while the header is configured.
func (m *Manager) SessionValid(session string) bool {
	if strings.HasPrefix(session, headerSessionPrefix) {
		return m.trustedHeader != ""
	}
	_, ok := m.ValidateToken(session)
	return ok
}

// generateToken returns a cryptographically random 32-byte hex string.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
