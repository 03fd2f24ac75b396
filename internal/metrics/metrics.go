package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtline_applications_created_total",
		Help: "Marriage applications created.",
	})

	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtline_stage_transitions_total",
		Help: "Stage transitions by target stage and outcome.",
	}, []string{"stage", "outcome"})

	WeeksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtline_courtship_weeks_completed_total",
		Help: "Courtship curriculum weeks marked completed.",
	})

	PacingViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtline_courtship_pacing_violations_total",
		Help: "Week completions refused by the one-topic-per-week rule.",
	})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtline_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtline_sessions_expired_total",
		Help: "Sessions revoked by the inactivity monitor.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courtline_active_sessions",
		Help: "Sessions currently alive.",
	})
)
