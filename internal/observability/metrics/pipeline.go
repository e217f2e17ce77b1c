package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

// PipelineMetrics records orchestrator lifecycle events.
type PipelineMetrics struct {
	runsTotal           *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	ocrPollsTotal       *prometheus.CounterVec
	rejectedFilesTotal  *prometheus.CounterVec
	clarificationsTotal *prometheus.CounterVec
}

func NewPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Finished pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 240},
		},
		[]string{"stage"},
	)
	ocrPollsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ocr",
			Name:      "polls_total",
			Help:      "OCR job status polls by reported status.",
		},
		[]string{"status"},
	)
	rejectedFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rejected_files_total",
			Help:      "Files rejected during classification by extension.",
		},
		[]string{"extension"},
	)
	clarificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "clarifications_total",
			Help:      "Ambiguity items presented by presentation mode.",
		},
		[]string{"mode"},
	)

	registerer.MustRegister(runsTotal, stageDuration, ocrPollsTotal, rejectedFilesTotal, clarificationsTotal)

	return &PipelineMetrics{
		runsTotal:           runsTotal,
		stageDuration:       stageDuration,
		ocrPollsTotal:       ocrPollsTotal,
		rejectedFilesTotal:  rejectedFilesTotal,
		clarificationsTotal: clarificationsTotal,
	}
}

func (m *PipelineMetrics) StageChanged(_ string, from, _ domain.Stage, elapsed time.Duration) {
	if from.Busy() {
		m.stageDuration.WithLabelValues(string(from)).Observe(elapsed.Seconds())
	}
}

func (m *PipelineMetrics) FileRejected(extension string) {
	if extension == "" {
		extension = "none"
	}
	m.rejectedFilesTotal.WithLabelValues(extension).Inc()
}

func (m *PipelineMetrics) ClarificationPresented(mode domain.ClarificationMode, items int) {
	if items <= 0 {
		return
	}
	m.clarificationsTotal.WithLabelValues(string(mode)).Add(float64(items))
}

func (m *PipelineMetrics) RunFinished(run domain.PipelineRun) {
	m.runsTotal.WithLabelValues(Outcome(run)).Inc()
}

// RecordOCRPoll is wired to the OCR client's poll hook.
func (m *PipelineMetrics) RecordOCRPoll(job domain.ExtractionJob) {
	m.ocrPollsTotal.WithLabelValues(string(job.Status)).Inc()
}

// Outcome labels a finished run.
func Outcome(run domain.PipelineRun) string {
	switch {
	case run.Stage == domain.StageError:
		return "error"
	case run.Degraded:
		return "degraded"
	case run.Clarifying:
		return "clarifying"
	default:
		return "done"
	}
}
