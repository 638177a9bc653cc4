// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/authcore/internal/auth"
)

// mailQueueFailures is a package-level counter for queued mail that could not be delivered.
// This allows the queue worker to record drops without needing access to the Server instance.
var mailQueueFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authcore_mail_queue_failures_total",
		Help: "Total number of queued emails dropped by the mail worker, by reason",
	},
	[]string{"reason"},
)

// RecordMailQueueFailure increments the mail queue failure counter.
func RecordMailQueueFailure(reason string) {
	mailQueueFailures.WithLabelValues(reason).Inc()
}

// Metrics contains the Prometheus metrics of authcore. It implements
// auth.Observer.
type Metrics struct {
	AuthOperationsTotal *prometheus.CounterVec
	LockoutsTotal       prometheus.Counter
	RefreshReuseTotal   prometheus.Counter
	MailFailuresTotal   *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the authcore metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_auth_operations_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		LockoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_login_lockouts_total",
			Help: "Total number of logins rejected because the email was locked",
		}),
		RefreshReuseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_refresh_reuse_total",
			Help: "Total number of rotated refresh tokens presented again",
		}),
		MailFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_mail_failures_total",
				Help: "Total number of failed token email dispatches by kind",
			},
			[]string{"kind"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authcore_http_request_duration_seconds",
				Help:    "HTTP request latency by route and method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}

	reg.MustRegister(
		m.AuthOperationsTotal,
		m.LockoutsTotal,
		m.RefreshReuseTotal,
		m.MailFailuresTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		mailQueueFailures,
	)
	return m
}

// AuthOperation records the outcome of one auth service operation.
func (m *Metrics) AuthOperation(operation, outcome string) {
	if kind, ok := strings.CutPrefix(operation, "mail_"); ok {
		if outcome != auth.OutcomeSuccess {
			m.MailFailuresTotal.WithLabelValues(kind).Inc()
		}
		return
	}
	m.AuthOperationsTotal.WithLabelValues(operation, outcome).Inc()
	switch outcome {
	case auth.OutcomeLocked:
		m.LockoutsTotal.Inc()
	case auth.OutcomeReused:
		m.RefreshReuseTotal.Inc()
	}
}

// HTTPRequest records one served API request. route is the matched route
// pattern, never the raw path.
func (m *Metrics) HTTPRequest(route, method string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

var _ auth.Observer = (*Metrics)(nil)
