package app

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects request and case counters on its own registry. A nil
// Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	cases    *prometheus.CounterVec
}

func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apicheck",
			Name:      "requests_total",
			Help:      "HTTP requests sent, by method and status class.",
		}, []string{"method", "code_class"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apicheck",
			Name:      "request_duration_seconds",
			Help:      "Round trip time of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apicheck",
			Name:      "cases_total",
			Help:      "Test cases executed, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(r.requests, r.latency, r.cases)

	return r
}

// ObserveRequest records one round trip. status is 0 for transport failures.
func (r *Recorder) ObserveRequest(method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}

	r.requests.WithLabelValues(method, codeClass(status)).Inc()
	r.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveCase(passed bool) {
	if r == nil {
		return
	}

	result := "passed"
	if !passed {
		result = "failed"
	}
	r.cases.WithLabelValues(result).Inc()
}

// WriteTextfile writes the registry in the text exposition format, suitable
// for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}

	return nil
}

func codeClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}

	return fmt.Sprintf("%dxx", status/100)
}
