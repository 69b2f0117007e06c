package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ms_orders",
		Name:      "orders_placed_total",
		Help:      "Orders accepted by place_order, by side.",
	}, []string{"side"})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ms_orders",
		Name:      "orders_cancelled_total",
		Help:      "Orders cancelled by order_delete.",
	})

	SettlementSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ms_orders",
		Name:      "settlement_steps_total",
		Help:      "Committed settlement steps.",
	})

	SettlementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ms_orders",
		Name:      "settlement_failures_total",
		Help:      "Matching loop invocations that ended in error.",
	})

	FreezeRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ms_orders",
		Name:      "freeze_requests_total",
		Help:      "Best-effort account freeze requests issued.",
	})
)

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
