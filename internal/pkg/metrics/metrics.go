package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 生成流水线的 Prometheus 指标，使用独立 registry
// 所有记录方法允许 nil 接收者，未启用指标时直接跳过
type Collector struct {
	registry *prometheus.Registry

	LLMAttempts     *prometheus.CounterVec
	LLMBackoff      *prometheus.HistogramVec
	PipelineResults *prometheus.CounterVec
	Corrections     *prometheus.CounterVec
	PipelineLatency prometheus.Histogram
}

// NewCollector 创建指标收集器。每个收集器注册到自己的 registry，可重复创建
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		LLMAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_attempts_total",
				Help:      "Generation service attempts by outcome",
			},
			[]string{"outcome"},
		),
		LLMBackoff: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_backoff_seconds",
				Help:      "Delay before retrying the generation service",
				Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"kind"},
		),
		PipelineResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_results_total",
				Help:      "Emitted models by source stage",
			},
			[]string{"source"},
		),
		Corrections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_corrections_total",
				Help:      "Correction steps applied to generated models",
			},
			[]string{"kind"},
		),
		PipelineLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "End-to-end model production latency",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	registry.MustRegister(c.LLMAttempts, c.LLMBackoff, c.PipelineResults, c.Corrections, c.PipelineLatency)

	return c
}

// Handler 暴露 /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordAttempt(outcome string) {
	if c == nil {
		return
	}
	c.LLMAttempts.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordBackoff(kind string, d time.Duration) {
	if c == nil {
		return
	}
	c.LLMBackoff.WithLabelValues(kind).Observe(d.Seconds())
}

func (c *Collector) RecordResult(source string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.PipelineResults.WithLabelValues(source).Inc()
	c.PipelineLatency.Observe(elapsed.Seconds())
}

func (c *Collector) RecordCorrection(kind string) {
	if c == nil {
		return
	}
	c.Corrections.WithLabelValues(kind).Inc()
}
