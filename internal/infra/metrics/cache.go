package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(contactCacheLookups) }

var contactCacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contact_cache_lookups_total",
		Help: "Redis lookups for notification recipients, by cache and hit/miss/error.",
	},
	[]string{"cache", "result"}, // cache="user_email"
)

// IncCacheRequest counts one cache lookup.
func IncCacheRequest(cacheName, result string) {
	contactCacheLookups.WithLabelValues(norm(cacheName), norm(result)).Inc()
}
