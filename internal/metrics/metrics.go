// Package metrics exposes Prometheus collectors for the board service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"racecal/internal/filter"
)

var (
	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racecal_loads_total",
			Help: "Total events document loads by result",
		},
		[]string{"result"},
	)

	loadedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "racecal_loaded_events",
			Help: "Number of events in the current snapshot",
		},
	)

	recomputesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "racecal_recomputes_total",
			Help: "Total filter pipeline recomputes",
		},
	)

	visibleEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "racecal_visible_events",
			Help: "Number of events matching the current criteria",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racecal_http_requests_total",
			Help: "HTTP requests by path",
		},
		[]string{"path"},
	)
)

// ObserveLoad records the outcome of an events document load.
func ObserveLoad(ok bool, count int) {
	result := "success"
	if !ok {
		result = "failure"
	}
	loadsTotal.WithLabelValues(result).Inc()
	if ok {
		loadedEvents.Set(float64(count))
	}
}

// ObserveRecompute records one pipeline run and the resulting counts.
func ObserveRecompute(sum filter.Summary) {
	recomputesTotal.Inc()
	visibleEvents.Set(float64(sum.Visible))
}

// ObserveRequest counts one HTTP request against its route.
func ObserveRequest(path string) {
	httpRequests.WithLabelValues(path).Inc()
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
