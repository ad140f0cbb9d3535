// Package metrics exposes the wallet's Prometheus counters.
//
// All methods are safe to call on a nil *Metrics so services can run without instrumentation (e.g. in tests).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wallet"

// Metrics holds the collectors registered for one server instance
type Metrics struct {
	registry *prometheus.Registry

	identitiesCreated  prometheus.Counter
	unsealFailures     prometheus.Counter
	pinRotations       *prometheus.CounterVec
	requestsSubmitted  prometheus.Counter
	requestsDecided    *prometheus.CounterVec
	credentialsIssued  *prometheus.CounterVec
	credentialsRevoked prometheus.Counter
	tokenVerifications *prometheus.CounterVec
	kdfInFlight        prometheus.Gauge
}

// New creates the collectors on a fresh registry (including the Go runtime and process collectors)
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,

		identitiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identities_created_total",
			Help:      "Number of DID identities created.",
		}),
		unsealFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unseal_failures_total",
			Help:      "Number of failed attempts to unseal a private key (wrong PIN or corrupt data).",
		}),
		pinRotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pin_rotations_total",
			Help:      "Number of PIN rotations by outcome.",
		}, []string{"outcome"}),
		requestsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_requests_submitted_total",
			Help:      "Number of credential requests submitted by holders.",
		}),
		requestsDecided: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_requests_decided_total",
			Help:      "Number of credential requests approved or rejected.",
		}, []string{"decision"}),
		credentialsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_issued_total",
			Help:      "Number of credentials issued, by issuance path.",
		}, []string{"path"}),
		credentialsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_revoked_total",
			Help:      "Number of credentials revoked.",
		}),
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verifications_total",
			Help:      "Number of credential token verifications by result.",
		}, []string{"result"}),
		kdfInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kdf_in_flight",
			Help:      "Number of PIN key derivations currently running.",
		}),
	}

	reg.MustRegister(
		m.identitiesCreated,
		m.unsealFailures,
		m.pinRotations,
		m.requestsSubmitted,
		m.requestsDecided,
		m.credentialsIssued,
		m.credentialsRevoked,
		m.tokenVerifications,
		m.kdfInFlight,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (used by tests)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IdentityCreated() {
	if m != nil {
		m.identitiesCreated.Inc()
	}
}

func (m *Metrics) UnsealFailed() {
	if m != nil {
		m.unsealFailures.Inc()
	}
}

// PinRotated records a rotation outcome ("ok" or "failed")
func (m *Metrics) PinRotated(outcome string) {
	if m != nil {
		m.pinRotations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) RequestSubmitted() {
	if m != nil {
		m.requestsSubmitted.Inc()
	}
}

// RequestDecided records "approved" or "rejected"
func (m *Metrics) RequestDecided(decision string) {
	if m != nil {
		m.requestsDecided.WithLabelValues(decision).Inc()
	}
}

// CredentialIssued records the issuance path ("request" or "direct")
func (m *Metrics) CredentialIssued(path string) {
	if m != nil {
		m.credentialsIssued.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) CredentialRevoked() {
	if m != nil {
		m.credentialsRevoked.Inc()
	}
}

// TokenVerified records a verification result ("valid", "invalid", "revoked")
func (m *Metrics) TokenVerified(result string) {
	if m != nil {
		m.tokenVerifications.WithLabelValues(result).Inc()
	}
}

// KDFStarted and KDFFinished track in-flight key derivations
func (m *Metrics) KDFStarted() {
	if m != nil {
		m.kdfInFlight.Inc()
	}
}

func (m *Metrics) KDFFinished() {
	if m != nil {
		m.kdfInFlight.Dec()
	}
}
