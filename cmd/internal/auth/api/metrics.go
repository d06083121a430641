package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_auth_code_requests_total",
		Help: "Code-request calls by outcome (found/unknown/dispatch_fail).",
	}, []string{"outcome"})

	metricVerifyAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_auth_verify_attempts_total",
		Help: "Code-verification attempts by outcome.",
	}, []string{"outcome"})

	metricSessionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_auth_session_checks_total",
		Help: "Session validate/sync calls by kind and outcome.",
	}, []string{"kind", "outcome"})

	metricLogouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codegate_auth_logouts_total",
		Help: "Logout calls that revoked a live session.",
	})

	metricRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_auth_rate_limited_total",
		Help: "Requests rejected by the fixed-window limiters.",
	}, []string{"limiter"})
)
