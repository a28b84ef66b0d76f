// Package auth implements admin bootstrap, login with failure lockout,
// and session management on top of the shared SQLite store.
package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// Params tunes the auth service.
type Params struct {
	SessionExpiry time.Duration // default 24h
	MaxFailures   int           // failed logins before lockout, default 5
	Lockout       time.Duration // lockout window, default 15m
}

func (p Params) withDefaults() Params {
	if p.SessionExpiry <= 0 {
		p.SessionExpiry = 24 * time.Hour
	}
	if p.MaxFailures <= 0 {
		p.MaxFailures = 5
	}
	if p.Lockout <= 0 {
		p.Lockout = 15 * time.Minute
	}
	return p
}

// LoginResult is the outcome of a login attempt. Exactly one of Token or
// LockedUntil is set on a definitive outcome; both zero means invalid
// credentials.
type LoginResult struct {
	Token       string
	LockedUntil time.Time
}

// Service owns the users and sessions tables. The clock is injectable for
// tests.
type Service struct {
	db     *sql.DB
	params Params
	logger *slog.Logger
	now    func() time.Time
}

// New creates an auth service over the given database connection.
func New(db *sql.DB, params Params, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		params: params.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Bootstrap creates the admin user when the users table is empty. Empty
// credentials log a warning and skip; existing users are never overwritten.
func (s *Service) Bootstrap(username, password string) error {
	if username == "" || password == "" {
		s.logger.Warn("auth: admin credentials not set, skipping bootstrap")
		return nil
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("auth: count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, hash,
	); err != nil {
		return fmt.Errorf("auth: insert admin: %w", err)
	}
	s.logger.Info("auth: admin user created", slog.String("username", username))
	return nil
}

// Login authenticates the user and creates a session on success.
//
// A locked account short-circuits with LockedUntil before the password is
// even checked. A wrong password increments the failure counter; the Nth
// failure sets the lockout. A successful login resets the counter.
func (s *Service) Login(username, password string) (LoginResult, error) {
	var (
		id       int64
		hash     string
		failures int
		locked   float64
	)
	err := s.db.QueryRow(
		`SELECT id, password_hash, failed_attempts, locked_until FROM users WHERE username = ?`,
		username,
	).Scan(&id, &hash, &failures, &locked)
	if err == sql.ErrNoRows {
		return LoginResult{}, nil
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: lookup user: %w", err)
	}

	now := s.now()
	if locked > epoch(now) {
		return LoginResult{LockedUntil: fromEpoch(locked)}, nil
	}

	if !verifyPassword(hash, password) {
		failures++
		if failures >= s.params.MaxFailures {
			until := now.Add(s.params.Lockout)
			if _, err := s.db.Exec(
				`UPDATE users SET failed_attempts = 0, locked_until = ? WHERE id = ?`,
				epoch(until), id,
			); err != nil {
				return LoginResult{}, fmt.Errorf("auth: lock account: %w", err)
			}
			s.logger.Warn("auth: account locked",
				slog.String("username", username),
				slog.Time("until", until))
			return LoginResult{LockedUntil: until}, nil
		}
		if _, err := s.db.Exec(
			`UPDATE users SET failed_attempts = ? WHERE id = ?`,
			failures, id,
		); err != nil {
			return LoginResult{}, fmt.Errorf("auth: record failure: %w", err)
		}
		return LoginResult{}, nil
	}

	if _, err := s.db.Exec(
		`UPDATE users SET failed_attempts = 0, locked_until = 0 WHERE id = ?`, id,
	); err != nil {
		return LoginResult{}, fmt.Errorf("auth: reset failures: %w", err)
	}

	token, err := newToken()
	if err != nil {
		return LoginResult{}, err
	}
	expires := now.Add(s.params.SessionExpiry)
	if _, err := s.db.Exec(
		`INSERT INTO sessions (user_id, token, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		id, token, epoch(now), epoch(expires),
	); err != nil {
		return LoginResult{}, fmt.Errorf("auth: insert session: %w", err)
	}
	return LoginResult{Token: token}, nil
}

// Validate returns the user id for a valid session token. Expired
// sessions are deleted on sight.
func (s *Service) Validate(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	var userID int64
	var expires float64
	err := s.db.QueryRow(
		`SELECT user_id, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&userID, &expires)
	if err != nil {
		return 0, false
	}
	if expires <= epoch(s.now()) {
		_, _ = s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
		return 0, false
	}
	return userID, true
}

// Logout deletes the session for token, if any.
func (s *Service) Logout(token string) {
	if token == "" {
		return
	}
	_, _ = s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromEpoch(sec float64) time.Time {
	return time.Unix(0, int64(sec*1e9))
}
