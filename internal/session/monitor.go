package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"courtline/internal/domain"
	"courtline/internal/metrics"
	"courtline/internal/repo"
)

// Monitor sweeps the session table on a fixed interval and revokes
// sessions idle past the threshold. Authentication also expires on
// touch, so the sweep only matters for sessions nobody is using.
type Monitor struct {
	Repo        repo.Repo
	IdleTimeout time.Duration
	Interval    time.Duration
	Now         func() time.Time
	Log         *slog.Logger

	stop    chan struct{}
	done    chan struct{}
	started bool
	once    sync.Once
}

func NewMonitor(store *Store) *Monitor {
	return &Monitor{
		Repo:        store.Repo,
		IdleTimeout: store.Config.IdleTimeout(),
		Interval:    store.Config.PollInterval(),
		Now:         store.Now,
		Log:         store.Log,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (m *Monitor) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Start launches the sweep loop. Stop ends it.
func (m *Monitor) Start() {
	m.started = true
	go m.run()
}

func (m *Monitor) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep(context.Background())
		}
	}
}

// Stop ends the sweep loop and waits for it to drain. Stopping a
// monitor that was never started is a no-op.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.stop)
		if m.started {
			<-m.done
		}
	})
}

// Sweep revokes every session idle past the threshold and leaves an
// inactivity marker for each affected user.
func (m *Monitor) Sweep(ctx context.Context) int {
	now := m.now().UTC()
	cutoff := now.Add(-m.IdleTimeout).Format(time.RFC3339)
	idle, err := m.Repo.IdleSessions(ctx, cutoff)
	if err != nil {
		if m.Log != nil {
			m.Log.Error("session sweep failed", "err", err)
		}
		return 0
	}
	revoked := 0
	for _, sess := range idle {
		if err := m.Repo.DeleteSession(ctx, sess.ID); err != nil {
			if err == repo.ErrNotFound {
				continue
			}
			if m.Log != nil {
				m.Log.Error("revoke idle session failed", "session_id", sess.ID, "err", err)
			}
			continue
		}
		marker := domain.LoginMarker{
			UserID:       sess.UserID,
			LogoutReason: ReasonInactivity,
			CreatedAt:    now.Format(time.RFC3339),
		}
		if err := m.Repo.UpsertLoginMarker(ctx, marker); err != nil && m.Log != nil {
			m.Log.Error("write inactivity marker failed", "user_id", sess.UserID, "err", err)
		}
		metrics.SessionsExpired.Inc()
		metrics.ActiveSessions.Dec()
		revoked++
	}
	if revoked > 0 && m.Log != nil {
		m.Log.Info("idle sessions revoked", "count", revoked)
	}
	return revoked
}
