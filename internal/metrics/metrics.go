// Package metrics registers the Prometheus collectors of the analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rubric_analyses_total",
		Help: "Whole-evaluation analyses by outcome.",
	}, []string{"provider", "outcome"})

	GroupAnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rubric_group_analyses_total",
		Help: "Per-group analysis attempts by outcome (analyzed, skipped, failed).",
	}, []string{"provider", "outcome"})

	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rubric_llm_requests_total",
		Help: "Model provider calls by operation and outcome.",
	}, []string{"provider", "op", "outcome"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rubric_llm_request_duration_seconds",
		Help:    "Model provider call latency.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
	}, []string{"provider", "op"})

	DocumentBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rubric_document_bytes",
		Help:    "Size of documents fetched for analysis.",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 7),
	})
)
