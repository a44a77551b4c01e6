package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// searchesTotal counts quota decisions: allowed, denied, unlimited.
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_searches_total",
			Help: "Search requests by quota outcome.",
		},
		[]string{"outcome"},
	)

	// deliveriesTotal counts delivery clicks: allowed, cooldown, miss.
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_deliveries_total",
			Help: "PDF delivery requests by outcome.",
		},
		[]string{"outcome"},
	)

	// cacheEvictions counts cached results removed for age.
	cacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_result_cache_evictions_total",
			Help: "Cached results evicted because they outlived the TTL.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(searchesTotal, deliveriesTotal, cacheEvictions)
}
