package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "productos_created_total",
		Help: "Total number of catalog products created",
	})

	StoresCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiendas_created_total",
		Help: "Total number of stores created",
	})

	RequestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solicitudes_created_total",
		Help: "Total number of purchase requests created",
	})

	RequestsTransitionedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solicitudes_transitioned_total",
		Help: "Total number of committed request state transitions",
	}, []string{"estado"})

	ApprovalsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approvals_failed_total",
		Help: "Total number of rejected approval attempts",
	}, []string{"reason"})

	StockUnitsMovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_units_moved_total",
		Help: "Units of stock moved by approvals",
	}, []string{"tipo"})

	ApprovalLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "approval_latency_seconds",
		Help:    "Latency of approval engine transitions",
		Buckets: prometheus.DefBuckets,
	})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Total number of low stock alerts handled",
	})

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
