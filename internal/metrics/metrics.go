// Package metrics exposes prometheus counters for the account and article workflows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignUps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pressroom",
		Name:      "signups_total",
		Help:      "Accounts created through registration.",
	})

	// Logins is labelled by result: success, challenged, invalid.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pressroom",
		Name:      "logins_total",
		Help:      "Password login attempts by result.",
	}, []string{"result"})

	// Challenges is labelled by outcome: issued, verified, rejected, undelivered.
	Challenges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pressroom",
		Name:      "challenges_total",
		Help:      "Two-factor challenges by outcome.",
	}, []string{"outcome"})

	// Articles is labelled by action: created, updated.
	Articles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pressroom",
		Name:      "article_events_total",
		Help:      "Article workflow events.",
	}, []string{"action"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pressroom",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)
