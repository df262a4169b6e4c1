package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Duration histogram buckets in milliseconds.
var durationBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Collector collects metrics for Prometheus export
type Collector struct {
	httpRequests counterVec // route, status
	fetches      counterVec // outcome
	reconciles   counterVec // outcome
	imports      counterVec // source, result

	durationCounts []atomic.Int64 // per bucket, non-cumulative; last is +Inf
	durationSum    atomic.Int64
	durationCount  atomic.Int64

	startTime time.Time
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		durationCounts: make([]atomic.Int64, len(durationBuckets)+1),
		startTime:      time.Now(),
	}
}

// RecordHTTP records one served request. route is the registered pattern,
// never the raw path.
func (c *Collector) RecordHTTP(route string, status int, duration time.Duration) {
	c.httpRequests.inc(route, fmt.Sprint(status))

	ms := duration.Milliseconds()
	c.durationSum.Add(ms)
	c.durationCount.Add(1)
	idx := sort.SearchFloat64s(durationBuckets, float64(ms))
	c.durationCounts[idx].Add(1)
}

// RecordFetch records a fetch outcome: "ok" or the failure kind.
func (c *Collector) RecordFetch(outcome string) {
	c.fetches.inc(outcome)
}

// RecordReconcile records whether a document was patched or left
// unchanged because it did not parse.
func (c *Collector) RecordReconcile(parseFailed bool) {
	if parseFailed {
		c.reconciles.inc("parse_failure")
		return
	}
	c.reconciles.inc("patched")
}

// RecordImport records a catalog import. source is "url" or "content".
func (c *Collector) RecordImport(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.imports.inc(source, result)
}

// PrometheusFormat exports metrics in Prometheus text format
func (c *Collector) PrometheusFormat() string {
	var b strings.Builder

	writeHeader(&b, "yasp_http_requests_total", "Total number of HTTP requests", "counter")
	c.httpRequests.write(&b, "yasp_http_requests_total", "route", "status")

	writeHeader(&b, "yasp_http_request_duration_milliseconds", "HTTP request duration in milliseconds", "histogram")
	var cumulative int64
	for i, bucket := range durationBuckets {
		cumulative += c.durationCounts[i].Load()
		fmt.Fprintf(&b, "yasp_http_request_duration_milliseconds_bucket{le=\"%.0f\"} %d\n", bucket, cumulative)
	}
	fmt.Fprintf(&b, "yasp_http_request_duration_milliseconds_bucket{le=\"+Inf\"} %d\n", c.durationCount.Load())
	fmt.Fprintf(&b, "yasp_http_request_duration_milliseconds_sum %d\n", c.durationSum.Load())
	fmt.Fprintf(&b, "yasp_http_request_duration_milliseconds_count %d\n\n", c.durationCount.Load())

	writeHeader(&b, "yasp_spec_fetches_total", "Remote spec fetches by outcome", "counter")
	c.fetches.write(&b, "yasp_spec_fetches_total", "outcome")

	writeHeader(&b, "yasp_reconciles_total", "Server list reconciliations by outcome", "counter")
	c.reconciles.write(&b, "yasp_reconciles_total", "outcome")

	writeHeader(&b, "yasp_catalog_imports_total", "Catalog imports by source and result", "counter")
	c.imports.write(&b, "yasp_catalog_imports_total", "source", "result")

	writeHeader(&b, "yasp_uptime_seconds", "Uptime in seconds", "counter")
	fmt.Fprintf(&b, "yasp_uptime_seconds %.0f\n\n", time.Since(c.startTime).Seconds())

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, typ string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}

// counterVec is a set of counters keyed by label values.
type counterVec struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
}

const labelSep = "\xff"

func (v *counterVec) inc(values ...string) {
	key := strings.Join(values, labelSep)
	v.mu.RLock()
	counter, ok := v.counters[key]
	v.mu.RUnlock()
	if !ok {
		v.mu.Lock()
		if v.counters == nil {
			v.counters = make(map[string]*atomic.Int64)
		}
		if counter, ok = v.counters[key]; !ok {
			counter = &atomic.Int64{}
			v.counters[key] = counter
		}
		v.mu.Unlock()
	}
	counter.Add(1)
}

func (v *counterVec) get(values ...string) int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if counter, ok := v.counters[strings.Join(values, labelSep)]; ok {
		return counter.Load()
	}
	return 0
}

func (v *counterVec) write(b *strings.Builder, name string, labels ...string) {
	v.mu.RLock()
	keys := make([]string, 0, len(v.counters))
	for key := range v.counters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values := strings.Split(key, labelSep)
		pairs := make([]string, len(labels))
		for i, label := range labels {
			pairs[i] = fmt.Sprintf("%s=%q", label, values[i])
		}
		fmt.Fprintf(b, "%s{%s} %d\n", name, strings.Join(pairs, ","), v.counters[key].Load())
	}
	v.mu.RUnlock()
	b.WriteString("\n")
}
