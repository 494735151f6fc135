// Package metrics exposes Prometheus collectors for access-control decisions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records route guard, rate limiter and mail delivery outcomes.
type Collector struct {
	guardDecisions   *prometheus.CounterVec
	limiterDecisions *prometheus.CounterVec
	emailsSent       *prometheus.CounterVec
}

// NewCollector registers the collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anything_world_guard_decisions_total",
			Help: "Route guard decisions by outcome.",
		}, []string{"outcome"}),
		limiterDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anything_world_rate_limit_decisions_total",
			Help: "Rate limiter decisions by limiter and outcome.",
		}, []string{"limiter", "outcome"}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anything_world_emails_total",
			Help: "Transactional emails by delivery status.",
		}, []string{"status"}),
	}

	reg.MustRegister(c.guardDecisions, c.limiterDecisions, c.emailsSent)

	return c
}

func (c *Collector) RecordGuardDecision(outcome string) {
	c.guardDecisions.WithLabelValues(outcome).Inc()
}

// RecordLimiterDecision takes outcome "allowed", "denied" or "error".
func (c *Collector) RecordLimiterDecision(limiter string, outcome string) {
	c.limiterDecisions.WithLabelValues(limiter, outcome).Inc()
}

func (c *Collector) RecordEmail(status string) {
	c.emailsSent.WithLabelValues(status).Inc()
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
