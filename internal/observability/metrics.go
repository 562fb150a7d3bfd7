package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// Metrics is the process-wide registry exposed in Prometheus text format.
// Every method is safe on a nil receiver so callers never branch on whether
// metrics are enabled.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	buildStage   *HistogramVec
	buildStageCt *CounterVec
	buildRuns    *CounterVec

	queueDepth *GaugeVec
}

var (
	initMu   sync.Mutex
	instance *Metrics
)

func Current() *Metrics {
	initMu.Lock()
	defer initMu.Unlock()
	return instance
}

// Init builds the registry once and makes it Current. Disabled metrics
// return nil.
func Init(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initMu.Lock()
	defer initMu.Unlock()
	if instance == nil {
		instance = NewMetrics()
	}
	return instance
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("sf_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"sf_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("sf_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("sf_llm_requests_total", "Provider calls by model/kind/status.", []string{"model", "kind", "status"}),
		llmLatency: NewHistogramVec(
			"sf_llm_request_duration_seconds",
			"Provider call latency in seconds by model/kind/status.",
			[]string{"model", "kind", "status"},
			[]float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90},
		),
		llmTokens: NewCounterVec("sf_llm_tokens_total", "Provider tokens by model/direction.", []string{"model", "direction"}),
		buildStage: NewHistogramVec(
			"sf_course_build_stage_duration_seconds",
			"Course build stage duration in seconds by stage/status.",
			[]string{"stage", "status"},
			[]float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		),
		buildStageCt: NewCounterVec("sf_course_build_stage_total", "Course build stages by stage/status.", []string{"stage", "status"}),
		buildRuns:    NewCounterVec("sf_course_build_runs_total", "Course build runs by outcome.", []string{"outcome"}),
		queueDepth:   NewGaugeVec("sf_job_queue_depth", "Job runs by status.", []string{"status"}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.buildStage, m.buildStageCt, m.buildRuns,
		m.queueDepth,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method, route, status = orUnknown(method), orUnknown(route), orUnknown(status)
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveLLMRequest records one provider call. kind is "text" or "json".
func (m *Metrics) ObserveLLMRequest(model, kind, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model, kind, status = orUnknown(model), orUnknown(kind), orUnknown(status)
	m.llmRequests.Inc(model, kind, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, kind, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

func (m *Metrics) ObserveCourseBuildStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	stage, status = orUnknown(stage), orUnknown(status)
	m.buildStageCt.Inc(stage, status)
	if dur > 0 {
		m.buildStage.Observe(dur.Seconds(), stage, status)
	}
}

// IncCourseBuildRun counts finished runs: completed, failed, stopped, skipped.
func (m *Metrics) IncCourseBuildRun(outcome string) {
	if m == nil {
		return
	}
	m.buildRuns.Inc(orUnknown(outcome))
}

// StartJobQueueCollector samples job_run counts per status until ctx ends.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.sampleQueueDepth(ctx, db); err != nil && log != nil {
					log.Warn("metrics: job queue depth query failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) sampleQueueDepth(ctx context.Context, db *gorm.DB) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range []string{types.JobStatusQueued, types.JobStatusRunning, types.JobStatusSucceeded, types.JobStatusFailed, types.JobStatusCanceled} {
		m.queueDepth.Set(0, s)
	}
	for _, row := range rows {
		m.queueDepth.Set(float64(row.Count), orUnknown(row.Status))
	}
	return nil
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
