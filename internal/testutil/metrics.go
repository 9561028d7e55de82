package testutil

import (
	"sync"
	"time"
)

// MetricCall is one call recorded by MetricsRecorder.
type MetricCall struct {
	Kind  string
	Name  string
	Value float64
	Tags  map[string]string
}

// MetricsRecorder is an in-memory statsd.Sink.
type MetricsRecorder struct {
	mu    sync.Mutex
	calls []MetricCall
}

func (r *MetricsRecorder) add(c MetricCall) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *MetricsRecorder) Count(name string, value int64, tags map[string]string) {
	r.add(MetricCall{Kind: "count", Name: name, Value: float64(value), Tags: tags})
}

func (r *MetricsRecorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(MetricCall{Kind: "gauge", Name: name, Value: value, Tags: tags})
}

func (r *MetricsRecorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(MetricCall{Kind: "timing", Name: name, Value: float64(value.Milliseconds()), Tags: tags})
}

// Calls returns a copy of everything recorded.
func (r *MetricsRecorder) Calls() []MetricCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MetricCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// Counted returns the result tags of every counter recorded under name.
func (r *MetricsRecorder) Counted(name string) []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Kind == "count" && c.Name == name {
			out = append(out, c.Tags["result"])
		}
	}
	return out
}
