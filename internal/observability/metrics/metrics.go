// Package metrics keeps process-wide counters for cipher operations and
// serves them in the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// labelSep joins label values into map keys. It cannot appear in valid UTF-8.
const labelSep = "\xff"

type collector interface {
	write(sb *strings.Builder)
}

// family holds the metadata shared by every metric kind.
type family struct {
	name   string
	help   string
	kind   string
	labels []string
}

func (f *family) key(values []string) string {
	if len(values) != len(f.labels) {
		panic(fmt.Sprintf("%s: expected %d labels, got %d", f.name, len(f.labels), len(values)))
	}
	return strings.Join(values, labelSep)
}

func (f *family) header(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
}

// series writes name+suffix with the labels encoded in key plus any extra
// name/value pairs.
func (f *family) series(sb *strings.Builder, suffix, key string, extra ...string) {
	sb.WriteString(f.name)
	sb.WriteString(suffix)
	var parts []string
	if len(f.labels) > 0 {
		values := strings.Split(key, labelSep)
		for i, label := range f.labels {
			parts = append(parts, label+`="`+escapeLabel(values[i])+`"`)
		}
	}
	for i := 0; i+1 < len(extra); i += 2 {
		parts = append(parts, extra[i]+`="`+escapeLabel(extra[i+1])+`"`)
	}
	if len(parts) > 0 {
		sb.WriteString("{")
		sb.WriteString(strings.Join(parts, ","))
		sb.WriteString("}")
	}
}

type counterVec struct {
	family
	mu     sync.Mutex
	values map[string]float64
}

func newCounterVec(name, help string, labels ...string) *counterVec {
	return &counterVec{family: family{name: name, help: help, kind: "counter", labels: labels}, values: map[string]float64{}}
}

func (c *counterVec) Inc(values ...string) {
	key := c.key(values)
	c.mu.Lock()
	c.values[key]++
	c.mu.Unlock()
}

func (c *counterVec) write(sb *strings.Builder) {
	c.header(sb)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range sortedKeys(c.values) {
		c.series(sb, "", key)
		fmt.Fprintf(sb, " %g\n", c.values[key])
	}
}

type gaugeVec struct {
	family
	mu     sync.Mutex
	values map[string]float64
}

func newGaugeVec(name, help string, labels ...string) *gaugeVec {
	return &gaugeVec{family: family{name: name, help: help, kind: "gauge", labels: labels}, values: map[string]float64{}}
}

func (g *gaugeVec) Set(v float64, values ...string) {
	key := g.key(values)
	g.mu.Lock()
	g.values[key] = v
	g.mu.Unlock()
}

func (g *gaugeVec) write(sb *strings.Builder) {
	g.header(sb)
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, key := range sortedKeys(g.values) {
		g.series(sb, "", key)
		fmt.Fprintf(sb, " %g\n", g.values[key])
	}
}

type histogram struct {
	counts []uint64 // per bucket, plus one overflow slot
	sum    float64
	total  uint64
}

type histogramVec struct {
	family
	buckets []float64
	mu      sync.Mutex
	values  map[string]*histogram
}

func newHistogramVec(name, help string, buckets []float64, labels ...string) *histogramVec {
	return &histogramVec{
		family:  family{name: name, help: help, kind: "histogram", labels: labels},
		buckets: buckets,
		values:  map[string]*histogram{},
	}
}

func (h *histogramVec) Observe(sample float64, values ...string) {
	key := h.key(values)
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.values[key]
	if !ok {
		entry = &histogram{counts: make([]uint64, len(h.buckets)+1)}
		h.values[key] = entry
	}
	entry.sum += sample
	entry.total++
	i := sort.SearchFloat64s(h.buckets, sample)
	entry.counts[i]++
}

func (h *histogramVec) write(sb *strings.Builder) {
	h.header(sb)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range sortedKeys(h.values) {
		entry := h.values[key]
		var cumulative uint64
		for i, upper := range h.buckets {
			cumulative += entry.counts[i]
			h.series(sb, "_bucket", key, "le", strconv.FormatFloat(upper, 'g', -1, 64))
			fmt.Fprintf(sb, " %d\n", cumulative)
		}
		cumulative += entry.counts[len(h.buckets)]
		h.series(sb, "_bucket", key, "le", "+Inf")
		fmt.Fprintf(sb, " %d\n", cumulative)
		h.series(sb, "_sum", key)
		fmt.Fprintf(sb, " %g\n", entry.sum)
		h.series(sb, "_count", key)
		fmt.Fprintf(sb, " %d\n", entry.total)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeLabel(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "\n", `\n`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	return value
}

var (
	operations = newCounterVec("cipherkit_operations_total",
		"Cipher operations and pipelines run, by transport and outcome.",
		"transport", "operation", "outcome")
	operationLatency = newHistogramVec("cipherkit_operation_duration_seconds",
		"Time spent running cipher operations and pipelines.",
		[]float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		"transport", "operation")
	requests = newCounterVec("cipherkit_requests_total",
		"API requests handled, by transport, route and status code.",
		"transport", "route", "code")
	detections = newCounterVec("cipherkit_detections_total",
		"Cipher detections reported, by encoding.",
		"encoding")
	recipes = newGaugeVec("cipherkit_recipes",
		"Recipes currently stored.")

	collectors = []collector{operations, operationLatency, requests, detections, recipes}
)

// ObserveOperation records one operation or pipeline run.
func ObserveOperation(transport, operation string, dur time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	operations.Inc(transport, operation, outcome)
	operationLatency.Observe(dur.Seconds(), transport, operation)
}

// RecordRequest counts one API request.
func RecordRequest(transport, route, code string) {
	if route == "" {
		route = "unmatched"
	}
	requests.Inc(transport, route, code)
}

// RecordDetection counts one detection result.
func RecordDetection(encoding string) {
	detections.Inc(encoding)
}

// SetRecipes sets the number of stored recipes.
func SetRecipes(n int) {
	recipes.Set(float64(n))
}

// Handler serves every metric in the Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var sb strings.Builder
		for _, c := range collectors {
			c.write(&sb)
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(sb.String()))
	})
}
