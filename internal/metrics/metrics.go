// Package metrics provides Prometheus-compatible metrics for keytrack.
//
// Counters, gauges and histograms live in a Registry that renders the
// Prometheus text exposition format, optionally over HTTP.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Labels represents metric labels.
type Labels map[string]string

// String renders labels in Prometheus syntax with sorted keys.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}

	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(l))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s=%q`, k, l[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels Labels
	value  atomic.Uint64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds v to the counter.
func (c *Counter) Add(v uint64) {
	c.value.Add(v)
}

// Value returns the current value.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels Labels
	value  atomic.Int64
}

// Set sets the gauge.
func (g *Gauge) Set(v int64) {
	g.value.Store(v)
}

// Add adds v to the gauge.
func (g *Gauge) Add(v int64) {
	g.value.Add(v)
}

// Value returns the current value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

// Histogram tracks the distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  Labels
	buckets []float64

	mu     sync.Mutex
	counts []uint64
	sum    float64
	count  uint64
}

// LengthBuckets suit small integer sizes such as characters per flush.
var LengthBuckets = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++

	// counts[i] holds observations <= buckets[i]; the last slot is +Inf.
	idx := sort.SearchFloat64s(h.buckets, v)
	h.counts[idx]++
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of observed values.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Registry holds registered metrics.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	onScrape   []func()

	namespace string
}

// NewRegistry creates a Registry whose metric names are prefixed with
// namespace.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		namespace:  namespace,
	}
}

func (r *Registry) fullName(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "_" + name
}

func key(name string, labels Labels) string {
	return name + labels.String()
}

// Counter returns the counter with the given name and labels, registering
// it on first use.
func (r *Registry) Counter(name, help string, labels Labels) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	k := key(full, labels)
	if c, ok := r.counters[k]; ok {
		return c
	}
	c := &Counter{name: full, help: help, labels: labels}
	r.counters[k] = c
	return c
}

// Gauge returns the gauge with the given name and labels, registering it
// on first use.
func (r *Registry) Gauge(name, help string, labels Labels) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	k := key(full, labels)
	if g, ok := r.gauges[k]; ok {
		return g
	}
	g := &Gauge{name: full, help: help, labels: labels}
	r.gauges[k] = g
	return g
}

// Histogram returns the histogram with the given name, registering it on
// first use.
func (r *Registry) Histogram(name, help string, labels Labels, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	k := key(full, labels)
	if h, ok := r.histograms[k]; ok {
		return h
	}
	sorted := slices.Clone(buckets)
	slices.Sort(sorted)
	h := &Histogram{
		name:    full,
		help:    help,
		labels:  labels,
		buckets: sorted,
		counts:  make([]uint64, len(sorted)+1),
	}
	r.histograms[k] = h
	return h
}

// OnScrape registers fn to run before every WritePrometheus, for gauges
// that are sampled rather than updated.
func (r *Registry) OnScrape(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onScrape = append(r.onScrape, fn)
}

// WritePrometheus writes all metrics in Prometheus text format, sorted by
// name.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	hooks := slices.Clone(r.onScrape)
	r.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	seen := make(map[string]bool)
	header := func(name, help, typ string) {
		if seen[name] {
			return
		}
		seen[name] = true
		fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, typ)
	}

	for _, k := range sortedKeys(r.counters) {
		c := r.counters[k]
		header(c.name, c.help, "counter")
		fmt.Fprintf(&b, "%s%s %d\n", c.name, c.labels.String(), c.Value())
	}
	for _, k := range sortedKeys(r.gauges) {
		g := r.gauges[k]
		header(g.name, g.help, "gauge")
		fmt.Fprintf(&b, "%s%s %d\n", g.name, g.labels.String(), g.Value())
	}
	for _, k := range sortedKeys(r.histograms) {
		h := r.histograms[k]
		header(h.name, h.help, "histogram")
		h.write(&b)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (h *Histogram) write(b *strings.Builder) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prefix := "{"
	if s := h.labels.String(); s != "" {
		prefix = s[:len(s)-1] + ","
	}

	var cumulative uint64
	for i, bucket := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(b, "%s_bucket%sle=\"%g\"} %d\n", h.name, prefix, bucket, cumulative)
	}
	cumulative += h.counts[len(h.buckets)]
	fmt.Fprintf(b, "%s_bucket%sle=\"+Inf\"} %d\n", h.name, prefix, cumulative)
	fmt.Fprintf(b, "%s_sum%s %g\n", h.name, h.labels.String(), h.sum)
	fmt.Fprintf(b, "%s_count%s %d\n", h.name, h.labels.String(), h.count)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HTTPHandler serves the registry in Prometheus text format.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}
