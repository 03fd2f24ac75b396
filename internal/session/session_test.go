package session_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"courtline/internal/config"
	"courtline/internal/db"
	"courtline/internal/domain"
	"courtline/internal/migrate"
	"courtline/internal/session"
)

type sessionEnv struct {
	Store *session.Store
	DB    *sql.DB
	Ctx   context.Context
	Clock *time.Time
}

func newSessionEnv(t *testing.T) sessionEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := session.NewStore(conn, config.Default(), nil)
	store.Now = func() time.Time { return clock }
	return sessionEnv{Store: store, DB: conn, Ctx: context.Background(), Clock: &clock}
}

func (env sessionEnv) seedUser(t *testing.T, username, password string) domain.User {
	t.Helper()
	hash, err := session.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := env.Clock.Format(time.RFC3339)
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        username + "@example.org",
		Username:     username,
		PasswordHash: hash,
		FullName:     "Test User",
		Role:         domain.RoleSingle,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := env.Store.Repo.InsertUser(env.Ctx, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestLoginByUsernameAndEmail(t *testing.T) {
	env := newSessionEnv(t)
	env.seedUser(t, "amaka", "sufficient-secret")

	res, err := env.Store.Login(env.Ctx, "amaka", "sufficient-secret")
	if err != nil {
		t.Fatalf("login by username: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected token")
	}
	if res.Marker != nil {
		t.Fatalf("fresh account should have no marker")
	}

	if _, err := env.Store.Login(env.Ctx, "amaka@example.org", "sufficient-secret"); err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if _, err := env.Store.Login(env.Ctx, "amaka", "wrong"); !errors.Is(err, session.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := env.Store.Login(env.Ctx, "nobody", "x"); !errors.Is(err, session.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestInactiveAccountCannotLogin(t *testing.T) {
	env := newSessionEnv(t)
	u := env.seedUser(t, "chidi", "sufficient-secret")
	now := env.Clock.Format(time.RFC3339)
	if err := env.Store.Repo.SetUserActive(env.Ctx, u.ID, false, now); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := env.Store.Login(env.Ctx, "chidi", "sufficient-secret"); !errors.Is(err, session.ErrAccountInactive) {
		t.Fatalf("expected inactive error, got %v", err)
	}
}

func TestResolveTouchKeepsSessionAlive(t *testing.T) {
	env := newSessionEnv(t)
	env.seedUser(t, "ngozi", "sufficient-secret")
	res, err := env.Store.Login(env.Ctx, "ngozi", "sufficient-secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// a request every nine minutes keeps the session alive forever
	for i := 0; i < 5; i++ {
		*env.Clock = env.Clock.Add(9 * time.Minute)
		if _, _, err := env.Store.Resolve(env.Ctx, res.Token); err != nil {
			t.Fatalf("resolve at step %d: %v", i, err)
		}
	}
}

func TestResolveExpiresIdleSession(t *testing.T) {
	env := newSessionEnv(t)
	env.seedUser(t, "emeka", "sufficient-secret")
	res, err := env.Store.Login(env.Ctx, "emeka", "sufficient-secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	*env.Clock = env.Clock.Add(11 * time.Minute)
	if _, _, err := env.Store.Resolve(env.Ctx, res.Token); !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
	// the token is gone, not just flagged
	if _, _, err := env.Store.Resolve(env.Ctx, res.Token); !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("expected expiry on reuse, got %v", err)
	}

	// the next login reports the inactivity logout
	res, err = env.Store.Login(env.Ctx, "emeka", "sufficient-secret")
	if err != nil {
		t.Fatalf("relogin: %v", err)
	}
	if res.Marker == nil || res.Marker.LogoutReason != session.ReasonInactivity {
		t.Fatalf("expected inactivity marker, got %+v", res.Marker)
	}
}

func TestLogoutLeavesVoluntaryMarker(t *testing.T) {
	env := newSessionEnv(t)
	env.seedUser(t, "bola", "sufficient-secret")
	res, err := env.Store.Login(env.Ctx, "bola", "sufficient-secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.Store.Logout(env.Ctx, res.Token, "/applications/abc"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := env.Store.Resolve(env.Ctx, res.Token); !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("expected dead token, got %v", err)
	}

	res, err = env.Store.Login(env.Ctx, "bola", "sufficient-secret")
	if err != nil {
		t.Fatalf("relogin: %v", err)
	}
	if res.Marker == nil || res.Marker.LogoutReason != session.ReasonVoluntary {
		t.Fatalf("expected voluntary marker, got %+v", res.Marker)
	}
	if res.Marker.ReturnPath != "/applications/abc" {
		t.Fatalf("return path = %s", res.Marker.ReturnPath)
	}

	// markers are single-use
	res, err = env.Store.Login(env.Ctx, "bola", "sufficient-secret")
	if err != nil {
		t.Fatalf("third login: %v", err)
	}
	if res.Marker != nil {
		t.Fatalf("marker should be consumed")
	}
}

func TestMonitorSweepRevokesOnlyIdleSessions(t *testing.T) {
	env := newSessionEnv(t)
	env.seedUser(t, "idle", "sufficient-secret")
	env.seedUser(t, "busy", "sufficient-secret")

	idleRes, err := env.Store.Login(env.Ctx, "idle", "sufficient-secret")
	if err != nil {
		t.Fatalf("login idle: %v", err)
	}
	busyRes, err := env.Store.Login(env.Ctx, "busy", "sufficient-secret")
	if err != nil {
		t.Fatalf("login busy: %v", err)
	}

	// busy keeps clicking, idle does nothing
	*env.Clock = env.Clock.Add(9 * time.Minute)
	if _, _, err := env.Store.Resolve(env.Ctx, busyRes.Token); err != nil {
		t.Fatalf("busy resolve: %v", err)
	}
	*env.Clock = env.Clock.Add(5 * time.Minute)

	monitor := session.NewMonitor(env.Store)
	if n := monitor.Sweep(env.Ctx); n != 1 {
		t.Fatalf("expected 1 revoked, got %d", n)
	}

	if _, _, err := env.Store.Resolve(env.Ctx, idleRes.Token); !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("idle session should be gone, got %v", err)
	}
	if _, _, err := env.Store.Resolve(env.Ctx, busyRes.Token); err != nil {
		t.Fatalf("busy session should survive: %v", err)
	}

	// a second sweep finds nothing
	if n := monitor.Sweep(env.Ctx); n != 0 {
		t.Fatalf("expected 0 on repeat sweep, got %d", n)
	}
}

func TestMonitorStartStop(t *testing.T) {
	env := newSessionEnv(t)
	monitor := session.NewMonitor(env.Store)
	monitor.Interval = 10 * time.Millisecond
	monitor.Start()
	time.Sleep(30 * time.Millisecond)
	monitor.Stop()
	// Stop is idempotent
	monitor.Stop()
}

func TestMonitorStopWithoutStart(t *testing.T) {
	env := newSessionEnv(t)
	monitor := session.NewMonitor(env.Store)

	done := make(chan struct{})
	go func() {
		monitor.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop on a never-started monitor did not return")
	}
}
