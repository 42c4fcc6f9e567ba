// Package metrics exposes Prometheus counters for the HTTP surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	AuthFailuresTotal prometheus.Counter
}

// New builds a Metrics set on its own registry, so each worker process
// reports independently and tests never collide on the default registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credkeeper_http_requests_total",
			Help: "HTTP requests handled, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credkeeper_auth_failures_total",
			Help: "Requests rejected by the access-control middleware.",
		}),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.AuthFailuresTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
