// Package metrics holds the Prometheus instruments exported by the store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results used as the "result" label.
const (
	ResultOK        = "ok"
	ResultNotFound  = "not_found"
	ResultDuplicate = "duplicate"
	ResultCanceled  = "canceled"
	ResultError     = "error"
)

var (
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopstore_operations_total",
			Help: "The total number of record access operations by verb and result",
		},
		[]string{"op", "result"},
	)
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopstore_operation_duration_seconds",
			Help:    "Time spent in record access operations, lock wait included",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"op"},
	)
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopstore_cache_requests_total",
			Help: "Collection cache lookups by result (hit, miss, fault)",
		},
		[]string{"result"},
	)
	collectionSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopstore_collection_saves_total",
			Help: "Collection saves by result",
		},
		[]string{"result"},
	)
)

// ObserveOperation records one finished operation.
func ObserveOperation(op string, start time.Time, result string) {
	operations.WithLabelValues(op, result).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// CacheHit, CacheMiss and CacheFault count collection cache lookups.
func CacheHit()   { cacheRequests.WithLabelValues("hit").Inc() }
func CacheMiss()  { cacheRequests.WithLabelValues("miss").Inc() }
func CacheFault() { cacheRequests.WithLabelValues("fault").Inc() }

// SaveResult counts a collection save.
func SaveResult(err error) {
	if err != nil {
		collectionSaves.WithLabelValues(ResultError).Inc()
		return
	}
	collectionSaves.WithLabelValues(ResultOK).Inc()
}
