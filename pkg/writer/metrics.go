// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package writer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics of the write path, labelled by write mode. A nil *Metrics
// records nothing.
type Metrics struct {
	submitted     *prometheus.CounterVec
	failed        *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	active        *prometheus.GaugeVec
	drainDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when reg
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tnt",
				Subsystem: "writer",
				Name:      "submitted_total",
				Help:      "Total number of dispatched writes.",
			}, []string{"mode"}),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tnt",
				Subsystem: "writer",
				Name:      "failed_total",
				Help:      "Total number of dispatched writes completed with an error.",
			}, []string{"mode"}),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tnt",
				Subsystem: "writer",
				Name:      "rejected_total",
				Help:      "Total number of writes failed before dispatch.",
			}, []string{"mode"}),
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tnt",
				Subsystem: "writer",
				Name:      "active",
				Help:      "Number of in-flight writes.",
			}, []string{"mode"}),
		drainDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tnt",
				Subsystem: "writer",
				Name:      "drain_duration_seconds",
				Help:      "Bucketed histogram of waiting for in-flight writes on close.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2.0, 20),
			}, []string{"mode"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.submitted,
			m.failed,
			m.rejected,
			m.active,
			m.drainDuration,
		)
	}
	return m
}

func (m *Metrics) onSubmit(mode string) {
	if m == nil {
		return
	}
	m.active.WithLabelValues(mode).Inc()
}

func (m *Metrics) onDispatch(mode string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(mode).Inc()
}

func (m *Metrics) onReject(mode string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(mode).Inc()
	m.active.WithLabelValues(mode).Dec()
}

func (m *Metrics) onComplete(mode string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.failed.WithLabelValues(mode).Inc()
	}
	m.active.WithLabelValues(mode).Dec()
}

func (m *Metrics) observeDrain(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.drainDuration.WithLabelValues(mode).Observe(d.Seconds())
}
