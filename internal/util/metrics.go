package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"op"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders checked out",
	})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of checkout operations",
		Buckets: prometheus.DefBuckets,
	})

	CouponRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_rejected_total",
		Help: "Total number of coupon codes rejected",
	}, []string{"reason"})

	OrdersClaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_claimed_total",
		Help: "Total number of orders claimed by carriers",
	})

	ClaimConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_claim_conflicts_total",
		Help: "Total number of claims lost to another carrier",
	})

	OrdersReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_released_total",
		Help: "Total number of claimed orders handed back",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of delivered orders",
	})

	OrdersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	}, []string{"from"})

	RatingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratings_total",
		Help: "Total number of ratings recorded",
	}, []string{"kind"})

	LedgerEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_ledger_events_total",
		Help: "Total number of events seen by the sales ledger",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
