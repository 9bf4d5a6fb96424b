package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "tubeauth"

// Result labels.
const (
	ResultOK           = "ok"
	ResultBadRequest   = "bad_request"
	ResultNotFound     = "not_found"
	ResultInvalid      = "invalid_credentials"
	ResultUnauthorized = "unauthorized"
	ResultReused       = "reused"
	ResultRateLimited  = "rate_limited"
	ResultError        = "error"
)

// AuthMetrics counts the outcome of every session operation.
type AuthMetrics struct {
	Logins         *prometheus.CounterVec
	Rotations      *prometheus.CounterVec
	Authorizations *prometheus.CounterVec
}

func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		Rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotations_total",
			Help:      "Refresh token rotations by result.",
		}, []string{"result"}),
		Authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorizations_total",
			Help:      "Access token checks by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.Logins, m.Rotations, m.Authorizations)
	return m
}
