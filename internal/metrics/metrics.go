package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamefinder",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gamefinder",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamefinder",
		Name:      "provider_requests_total",
		Help:      "Total catalog fetches by provider name and result status.",
	}, []string{"provider", "status"})

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gamefinder",
		Name:      "provider_request_duration_seconds",
		Help:      "Catalog fetch duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20},
	}, []string{"provider"})

	ProviderAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gamefinder",
		Name:      "provider_available",
		Help:      "Whether the last fetch from a provider succeeded (1) or failed (0).",
	}, []string{"provider"})

	MetadataRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamefinder",
		Name:      "metadata_requests_total",
		Help:      "Total metadata service requests by endpoint and result status.",
	}, []string{"endpoint", "status"})

	MetadataRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gamefinder",
		Name:      "metadata_request_duration_seconds",
		Help:      "Metadata service request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	TokenRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamefinder",
		Name:      "token_refresh_total",
		Help:      "Access token acquisitions by source (remote, store) and result.",
	}, []string{"source", "status"})

	EnrichmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamefinder",
		Name:      "enrichments_total",
		Help:      "Listing enrichments by outcome (found, not_found, error).",
	}, []string{"outcome"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderAvailable,
		MetadataRequestsTotal,
		MetadataRequestDuration,
		TokenRefreshTotal,
		EnrichmentsTotal,
	)
}
