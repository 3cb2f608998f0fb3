// Package metrics exposes Prometheus counters for query/answer/cache
// behavior, grounded on the request-counting pattern the teacher's gRPC
// interceptors use (requests, durations, keyed by method/code) but
// repurposed from RPC instrumentation to the query/answer/rcode/cache-hit
// counters this system's responders and resolver actually produce.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// QueriesTotal counts every decoded incoming question, labeled by the
	// server role that handled it ("authoritative" or "recursive") and
	// the query type name (A, NS, CNAME, PTR, MX, or a numeric fallback).
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dnscore_queries_total", Help: "Total questions processed"},
		[]string{"role", "type"},
	)

	// ResponsesTotal counts every response built by the authoritative
	// responder or the recursive resolver, labeled by the RCODE it
	// carried. FORMERR replies to undecodable requests are not counted.
	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dnscore_responses_total", Help: "Total responses emitted, by rcode"},
		[]string{"rcode"},
	)

	// CacheLookupsTotal counts resolver cache lookups, labeled by whether
	// the lookup hit or missed.
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dnscore_cache_lookups_total", Help: "Resolver cache lookups, by outcome"},
		[]string{"outcome"},
	)

	// ResolveDuration tracks the wall-clock time the recursive resolver
	// spends answering one request (all of its questions), including any
	// upstream UDP round trips, labeled by the response's RCODE.
	ResolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "dnscore_resolve_duration_seconds", Help: "Time to resolve one question", Buckets: prometheus.DefBuckets},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(QueriesTotal, ResponsesTotal, CacheLookupsTotal, ResolveDuration)
}

// RCodeName renders an RCODE as the label value used by ResponsesTotal.
func RCodeName(rcode uint8) string {
	switch rcode {
	case 0:
		return "NOERROR"
	case 1:
		return "FORMERR"
	case 2:
		return "SERVFAIL"
	case 3:
		return "NXDOMAIN"
	case 4:
		return "NOTIMP"
	case 5:
		return "REFUSED"
	default:
		return "UNKNOWN"
	}
}

// ObserveResolve records how long a single resolve took.
func ObserveResolve(outcome string, start time.Time) {
	ResolveDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
