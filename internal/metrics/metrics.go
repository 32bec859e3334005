package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dormdesk"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		},
		[]string{"route", "code"},
	)

	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Document store operations by collection, operation and result.",
		},
		[]string{"collection", "op", "result"},
	)

	checkoutAutoCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_auto_completed_total",
			Help:      "Checkout requests completed by the expiry sweep.",
		},
	)

	domainEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Domain events published on the in-process bus.",
		},
		[]string{"type"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, storeOps, checkoutAutoCompleted, domainEvents)
	})
}

// IncHTTP increments the request counter for a route pattern and status code class ("2xx").
func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

// ObserveStore records the outcome of one store call.
func ObserveStore(collection, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOps.WithLabelValues(collection, op, result).Inc()
}

func AddCheckoutAutoCompleted(n int) {
	if n > 0 {
		checkoutAutoCompleted.Add(float64(n))
	}
}

func IncEvent(eventType string) {
	domainEvents.WithLabelValues(eventType).Inc()
}
