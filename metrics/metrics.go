// Package metrics - prometheus instrumentation of the vault
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "secretshare"

// Create outcome labels
const (
	CreateOutcomeCreated = "created"
	CreateOutcomeInvalid = "invalid"
	CreateOutcomeError   = "error"
)

// Unlock outcome labels
const (
	UnlockOutcomeUnlocked     = "unlocked"
	UnlockOutcomeGone         = "gone"
	UnlockOutcomeNotFound     = "not_found"
	UnlockOutcomeUnauthorized = "unauthorized"
	UnlockOutcomeRequireOtp   = "require_otp"
	UnlockOutcomeContention   = "contention"
	UnlockOutcomeError        = "error"
)

// Collector vault metrics. A nil *Collector records nothing.
type Collector struct {
	creates        *prometheus.CounterVec
	unlocks        *prometheus.CounterVec
	unlockDuration prometheus.Histogram
	otpIssued      prometheus.Counter
	purged         prometheus.Counter
}

/*
NewCollector define the vault metrics and register them

	@param registerer prometheus.Registerer - where to register the metrics
	@returns collector
*/
func NewCollector(registerer prometheus.Registerer) (*Collector, error) {
	instance := &Collector{
		creates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_create_total",
			Help:      "Secret create requests by outcome",
		}, []string{"outcome"}),
		unlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_unlock_total",
			Help:      "Secret unlock requests by outcome",
		}, []string{"outcome"}),
		unlockDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "secret_unlock_duration_seconds",
			Help:      "Secret unlock processing time",
			Buckets:   prometheus.DefBuckets,
		}),
		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time codes issued",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_purged_total",
			Help:      "Expired secrets removed by the sweeper",
		}),
	}

	for _, oneCollector := range []prometheus.Collector{
		instance.creates,
		instance.unlocks,
		instance.unlockDuration,
		instance.otpIssued,
		instance.purged,
	} {
		if err := registerer.Register(oneCollector); err != nil {
			return nil, fmt.Errorf("failed to register metric [%w]", err)
		}
	}

	return instance, nil
}

// RecordCreate count a create request
func (c *Collector) RecordCreate(outcome string) {
	if c == nil {
		return
	}
	c.creates.WithLabelValues(outcome).Inc()
}

// RecordUnlock count an unlock request and its processing time
func (c *Collector) RecordUnlock(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.unlocks.WithLabelValues(outcome).Inc()
	c.unlockDuration.Observe(elapsed.Seconds())
}

// RecordOTPIssued count an issued one-time code
func (c *Collector) RecordOTPIssued() {
	if c == nil {
		return
	}
	c.otpIssued.Inc()
}

// RecordPurged count secrets removed by the sweeper
func (c *Collector) RecordPurged(count int64) {
	if c == nil || count <= 0 {
		return
	}
	c.purged.Add(float64(count))
}

/*
NewRegistry define a registry carrying the process and Go runtime collectors

	@returns registry
*/
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

/*
Handler HTTP handler exposing the metrics of a registry

	@param gatherer prometheus.Gatherer - metrics source
	@returns handler
*/
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
