package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Verification and authorization outcomes.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds the authentication counters exported at /metrics.
type Metrics struct {
	OTPVerifications *prometheus.CounterVec
	SessionsCreated  prometheus.Counter
	Authorizations   *prometheus.CounterVec
	LessonsCompleted prometheus.Counter
}

// New creates the counters and registers them with registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		OTPVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerspro_otp_verifications_total",
			Help: "OTP verification attempts by result",
		}, []string{"result"}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sellerspro_sessions_created_total",
			Help: "Total number of session tokens minted",
		}),
		Authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerspro_authorizations_total",
			Help: "Bearer token checks by result",
		}, []string{"result"}),
		LessonsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sellerspro_lessons_completed_total",
			Help: "Total number of lesson completion requests recorded",
		}),
	}

	registry.MustRegister(
		m.OTPVerifications,
		m.SessionsCreated,
		m.Authorizations,
		m.LessonsCompleted,
	)

	return m
}

// ObserveVerification counts an OTP verification outcome.
func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.OTPVerifications.WithLabelValues(result).Inc()
}

// ObserveAuthorization counts a bearer token check outcome.
func (m *Metrics) ObserveAuthorization(result string) {
	if m == nil {
		return
	}
	m.Authorizations.WithLabelValues(result).Inc()
}

// IncSessionsCreated counts a minted session.
func (m *Metrics) IncSessionsCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// IncLessonsCompleted counts a recorded lesson completion.
func (m *Metrics) IncLessonsCompleted() {
	if m == nil {
		return
	}
	m.LessonsCompleted.Inc()
}
