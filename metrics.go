package cachex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cachex_hits_total",
	Help: "Number of cached calls served from storage",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cachex_misses_total",
	Help: "Number of cached calls that executed the wrapped computation",
})

var storageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cachex_storage_errors_total",
	Help: "Number of storage operations that failed and were degraded to a miss or swallowed",
}, []string{"op"})

var serializationErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cachex_serialization_errors_total",
	Help: "Number of computed results that could not be serialized for caching",
})

var decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cachex_decode_errors_total",
	Help: "Number of cached payloads that failed to deserialize and were discarded",
})
