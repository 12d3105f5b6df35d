//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 VertexDB. All rights reserved.
//

package schemaindex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the population engine's Prometheus instrumentation. A nil
// *Metrics is safe to call methods on: every method becomes a no-op, so
// callers that construct a Metrics with a nil registry (tests, or a
// deployment with metrics disabled) don't need a separate code path.
type Metrics struct {
	populationDuration prometheus.Histogram
	queueDepth         prometheus.Gauge
	drainBatchSize     prometheus.Histogram
	flips              *prometheus.CounterVec
}

// NewMetrics registers the engine's metrics against reg. Pass a nil reg to
// get a Metrics value whose calls are no-ops (used in tests).
func NewMetrics(reg prometheus.Registerer, descriptor string) *Metrics {
	if reg == nil {
		return nil
	}

	labels := prometheus.Labels{"descriptor": descriptor}
	m := &Metrics{
		populationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "schemaindex_population_duration_seconds",
			Help:        "Time spent running a single index population job, from create to flip or failure.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "schemaindex_queue_depth",
			Help:        "Number of updates currently queued for a populating index. Unbounded by design, watch for runaway growth.",
			ConstLabels: labels,
		}),
		drainBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "schemaindex_drain_batch_size",
			Help:        "Number of updates applied per opportunistic queue drain during scan.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 16),
		}),
		flips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "schemaindex_flips_total",
			Help:        "Number of FlippableProxy delegate flips, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.populationDuration, m.queueDepth, m.drainBatchSize, m.flips)
	return m
}

func (m *Metrics) ObservePopulationDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.populationDuration.Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) ObserveDrainBatch(n int) {
	if m == nil || n == 0 {
		return
	}
	m.drainBatchSize.Observe(float64(n))
}

func (m *Metrics) IncFlip(outcome string) {
	if m == nil {
		return
	}
	m.flips.WithLabelValues(outcome).Inc()
}
