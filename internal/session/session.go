// Package session implements server-side login sessions with an
// inactivity timeout.
package session

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"courtline/internal/config"
	"courtline/internal/domain"
	"courtline/internal/metrics"
	"courtline/internal/repo"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrAccountInactive = errors.New("account is deactivated")
var ErrSessionExpired = errors.New("session expired")

// Logout reasons recorded in login markers.
const (
	ReasonVoluntary  = "voluntary"
	ReasonInactivity = "inactivity"
)

type Store struct {
	DB     *sql.DB
	Repo   repo.Repo
	Config *config.Config
	Now    func() time.Time
	Log    *slog.Logger
}

func NewStore(db *sql.DB, cfg *config.Config, log *slog.Logger) *Store {
	return &Store{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Now:    time.Now,
		Log:    log,
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// HashToken returns the stored form of a session token. Only the hash
// ever touches the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(h), err
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// LoginResult carries the fresh token plus the consumed marker from the
// previous logout, if any.
type LoginResult struct {
	User   domain.User
	Token  string
	Marker *domain.LoginMarker
}

// Login verifies credentials and opens a session. The identifier may be
// a username or an email address.
func (s *Store) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	user, err := s.Repo.GetUserByUsername(ctx, identifier)
	if err == repo.ErrNotFound {
		user, err = s.Repo.GetUserByEmail(ctx, identifier)
	}
	if err == repo.ErrNotFound {
		metrics.Logins.WithLabelValues("failure").Inc()
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		metrics.Logins.WithLabelValues("failure").Inc()
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		metrics.Logins.WithLabelValues("inactive").Inc()
		return LoginResult{}, ErrAccountInactive
	}

	token := uuid.NewString()
	now := s.now().UTC().Format(time.RFC3339)
	sess := domain.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		TokenHash:    HashToken(token),
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.Repo.InsertSession(ctx, sess); err != nil {
		return LoginResult{}, err
	}
	res := LoginResult{User: user, Token: token}
	marker, err := s.Repo.ConsumeLoginMarker(ctx, user.ID)
	if err == nil {
		res.Marker = &marker
	} else if err != repo.ErrNotFound {
		return LoginResult{}, err
	}
	metrics.Logins.WithLabelValues("success").Inc()
	metrics.ActiveSessions.Inc()
	if s.Log != nil {
		s.Log.Info("session opened", "user_id", user.ID)
	}
	return res, nil
}

// Logout ends a session and records where the user was, so the next
// login can offer to resume there.
func (s *Store) Logout(ctx context.Context, token, returnPath string) error {
	sess, err := s.Repo.GetSessionByTokenHash(ctx, HashToken(token))
	if err == repo.ErrNotFound {
		return ErrSessionExpired
	}
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteSession(ctx, sess.ID); err != nil && err != repo.ErrNotFound {
		return err
	}
	metrics.ActiveSessions.Dec()
	marker := domain.LoginMarker{
		UserID:       sess.UserID,
		ReturnPath:   returnPath,
		LogoutReason: ReasonVoluntary,
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}
	return s.Repo.UpsertLoginMarker(ctx, marker)
}

// LogoutSession ends an already resolved session by ID.
func (s *Store) LogoutSession(ctx context.Context, sessionID, userID, returnPath string) error {
	if err := s.Repo.DeleteSession(ctx, sessionID); err != nil && err != repo.ErrNotFound {
		return err
	}
	metrics.ActiveSessions.Dec()
	marker := domain.LoginMarker{
		UserID:       userID,
		ReturnPath:   returnPath,
		LogoutReason: ReasonVoluntary,
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}
	return s.Repo.UpsertLoginMarker(ctx, marker)
}

// Resolve validates a token and returns its user. A hit counts as
// activity and pushes last_activity forward. Sessions past the idle
// threshold are revoked on touch.
func (s *Store) Resolve(ctx context.Context, token string) (domain.User, domain.Session, error) {
	sess, err := s.Repo.GetSessionByTokenHash(ctx, HashToken(token))
	if err == repo.ErrNotFound {
		return domain.User{}, domain.Session{}, ErrSessionExpired
	}
	if err != nil {
		return domain.User{}, domain.Session{}, err
	}
	now := s.now().UTC()
	last, err := time.Parse(time.RFC3339, sess.LastActivity)
	if err == nil && now.Sub(last) > s.Config.IdleTimeout() {
		if err := s.expire(ctx, sess); err != nil {
			return domain.User{}, domain.Session{}, err
		}
		return domain.User{}, domain.Session{}, ErrSessionExpired
	}
	user, err := s.Repo.GetUser(ctx, sess.UserID)
	if err != nil {
		return domain.User{}, domain.Session{}, err
	}
	if !user.IsActive {
		if err := s.expire(ctx, sess); err != nil {
			return domain.User{}, domain.Session{}, err
		}
		return domain.User{}, domain.Session{}, ErrSessionExpired
	}
	ts := now.Format(time.RFC3339)
	if err := s.Repo.TouchSession(ctx, sess.ID, ts); err != nil {
		return domain.User{}, domain.Session{}, err
	}
	sess.LastActivity = ts
	return user, sess, nil
}

// expire revokes a session and leaves an inactivity marker behind.
func (s *Store) expire(ctx context.Context, sess domain.Session) error {
	if err := s.Repo.DeleteSession(ctx, sess.ID); err != nil && err != repo.ErrNotFound {
		return err
	}
	metrics.SessionsExpired.Inc()
	metrics.ActiveSessions.Dec()
	if s.Log != nil {
		s.Log.Info("session expired", "user_id", sess.UserID)
	}
	marker := domain.LoginMarker{
		UserID:       sess.UserID,
		LogoutReason: ReasonInactivity,
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}
	return s.Repo.UpsertLoginMarker(ctx, marker)
}
