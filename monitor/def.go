package monitor

import (
	"FeatureBench/logger"
	"FeatureBench/pipeline"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics exports stage timings and failures of benchmark runs together with
// the process' memory and CPU usage.
type Metrics struct {
	registry     *prometheus.Registry
	stageSeconds *prometheus.HistogramVec
	stagePoints  *prometheus.HistogramVec
	stageErrors  *prometheus.CounterVec
	frames       prometheus.Counter
	runs         *prometheus.CounterVec
	requests     *prometheus.CounterVec
	memUsage     prometheus.Gauge
	cpuUsage     prometheus.Gauge
}

func New() *Metrics {
	labels := []string{"stage", "detector", "descriptor", "matcher", "selector"}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "featurebench_stage_duration_seconds",
			Help:    "Provider time per pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, labels),
		stagePoints: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "featurebench_stage_points",
			Help:    "Keypoints or matches produced per pipeline stage",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, labels),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "featurebench_stage_errors_total",
			Help: "Recovered per-frame stage failures",
		}, labels),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "featurebench_frames_total",
			Help: "Frames processed",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "featurebench_runs_total",
			Help: "Completed runs",
		}, []string{"detector", "descriptor", "matcher", "selector"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "featurebench_requests_total",
			Help: "API requests handled",
		}, []string{"transport", "method"}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
	}
	m.registry.MustRegister(m.stageSeconds, m.stagePoints, m.stageErrors, m.frames, m.runs,
		m.requests, m.memUsage, m.cpuUsage)
	return m
}

func stageLabels(c pipeline.Combination, stage pipeline.Stage) prometheus.Labels {
	return prometheus.Labels{
		"stage":      stage.String(),
		"detector":   c.Detector,
		"descriptor": c.Descriptor,
		"matcher":    c.Matcher,
		"selector":   c.Selector,
	}
}

func (m *Metrics) StageDone(c pipeline.Combination, stage pipeline.Stage, elapsed time.Duration, points int) {
	l := stageLabels(c, stage)
	m.stageSeconds.With(l).Observe(elapsed.Seconds())
	m.stagePoints.With(l).Observe(float64(points))
}

func (m *Metrics) StageFailed(c pipeline.Combination, err *pipeline.StageError) {
	m.stageErrors.With(stageLabels(c, err.Stage)).Inc()
}

func (m *Metrics) FrameDone(runID string, c pipeline.Combination, index int, stats pipeline.RunStatistics) {
	m.frames.Inc()
}

func (m *Metrics) RunDone(summary pipeline.RunSummary) {
	c := summary.Combination
	m.runs.WithLabelValues(c.Detector, c.Descriptor, c.Matcher, c.Selector).Inc()
}

// Request counts one API call.
func (m *Metrics) Request(transport, method string) {
	m.requests.WithLabelValues(transport, method).Inc()
}

// RequestCounter exposes the counter behind Request.
func (m *Metrics) RequestCounter(transport, method string) prometheus.Counter {
	return m.requests.WithLabelValues(transport, method)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) checkProcessInfo(p *process.Process) {
	if memInfo, err := p.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := p.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon serves /metrics on port and samples the process every 500ms until
// ctx is cancelled.
func (m *Metrics) StartMon(ctx context.Context, port int) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("process info: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("Prometheus server ListenAndServe error", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			m.checkProcessInfo(p)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
