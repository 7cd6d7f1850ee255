package telemetry

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricDefinition describes one counter a module wants to emit. Type is
// currently always "counter" (histograms and gauges aren't wired anywhere
// in this tree) but stays a string field so a module can self-document its
// intent even before a second metric kind is needed.
type MetricDefinition struct {
	Name   string
	Type   string
	Help   string
	Labels []string
}

// ModuleConfig is the set of metrics one module declares up front, usually
// from an init() func, so a counter's Help text is known when its
// instrument is created. Label names are not validated.
type ModuleConfig struct {
	Metrics []MetricDefinition
}

var (
	declMu   sync.RWMutex
	declared = map[string]MetricDefinition{}

	instMu       sync.Mutex
	instruments  = map[string]metric.Int64Counter{}
	localCounts  sync.Map // string (name+labels key) -> *int64
)

// DeclareMetrics registers module's metric definitions with the registry.
// It is safe to call from package init() before Initialize has run: it only
// records the definitions. Counter creates each instrument on first use
// against the global MeterProvider, which stays the OTel no-op one
// (Initialize installs only a tracer provider).
func DeclareMetrics(module string, cfg ModuleConfig) {
	declMu.Lock()
	defer declMu.Unlock()
	for _, m := range cfg.Metrics {
		declared[m.Name] = m
	}
}

// Counter increments the named counter by one, with labelKVs as alternating
// key/value pairs. Unknown metric names are accepted
// rather than rejected: a call site that fires before its module's init()
// has registered a definition still gets an honest count, just without the
// Help text a dashboard would show.
func Counter(name string, labelKVs ...string) {
	addCounter(name, 1, labelKVs...)
}

func addCounter(name string, delta float64, labelKVs ...string) {
	attrs := attrsFromKV(labelKVs)

	instMu.Lock()
	inst, ok := instruments[name]
	if !ok {
		meter := otel.Meter("modelcore")
		help := ""
		declMu.RLock()
		if def, found := declared[name]; found {
			help = def.Help
		}
		declMu.RUnlock()
		var err error
		inst, err = meter.Int64Counter(name, metric.WithDescription(help))
		if err != nil {
			instMu.Unlock()
			return
		}
		instruments[name] = inst
	}
	instMu.Unlock()

	inst.Add(context.Background(), int64(delta), metric.WithAttributes(attrs...))

	key := localKey(name, labelKVs)
	v, _ := localCounts.LoadOrStore(key, new(int64))
	atomic.AddInt64(v.(*int64), int64(delta))

	if len(labelKVs) > 0 {
		total, _ := localCounts.LoadOrStore(name, new(int64))
		atomic.AddInt64(total.(*int64), int64(delta))
	}
}

// CounterValue returns the local tally for name+labelKVs, for tests and the
// doctor command's diagnostics. Called with no labelKVs, it returns the
// grand total across every label combination seen for name. It reflects
// calls made in this process only (there is no metric exporter backing it,
// see the package doc).
func CounterValue(name string, labelKVs ...string) int64 {
	key := localKey(name, labelKVs)
	v, ok := localCounts.Load(key)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

func localKey(name string, labelKVs []string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, kv := range labelKVs {
		b.WriteByte('\x1f')
		b.WriteString(kv)
	}
	return b.String()
}

func attrsFromKV(labelKVs []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labelKVs)/2)
	for i := 0; i+1 < len(labelKVs); i += 2 {
		attrs = append(attrs, attribute.String(labelKVs[i], labelKVs[i+1]))
	}
	return attrs
}
