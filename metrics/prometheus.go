// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// A PrometheusSink records call metrics with Prometheus collectors.
type PrometheusSink struct {
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	attempts  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	pause     *prometheus.CounterVec
	transport *prometheus.HistogramVec
}

// NewPrometheusSink registers the sink's collectors on reg. If reg is
// nil, prometheus.DefaultRegisterer is used.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3x",
		Subsystem: "client",
		Name:      "calls_total",
		Help:      "Total number of calls by result.",
	}, []string{"service", "result", "status_code", "error_code"}) // result = "ok" | "error"
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "s3x",
		Subsystem: "client",
		Name:      "call_duration_seconds",
		Help:      "Histogram of call durations in seconds, including retries and pauses.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "result"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3x",
		Subsystem: "client",
		Name:      "attempts_total",
		Help:      "Total number of attempts, counting retries and redirects.",
	}, []string{"service"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3x",
		Subsystem: "client",
		Name:      "calls_retried_total",
		Help:      "Number of calls which needed more than one attempt.",
	}, []string{"service"})
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3x",
		Subsystem: "client",
		Name:      "bytes_total",
		Help:      "Total request and response body bytes processed.",
	}, []string{"service"})
	pause := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3x",
		Subsystem: "client",
		Name:      "retry_pause_seconds_total",
		Help:      "Total time spent in retry backoff in seconds.",
	}, []string{"service"})
	transport := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "s3x",
		Subsystem: "client",
		Name:      "transport_duration_seconds",
		Help:      "Histogram of time spent waiting on the transport per call in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service"})

	_ = reg.Register(calls)
	_ = reg.Register(duration)
	_ = reg.Register(attempts)
	_ = reg.Register(retries)
	_ = reg.Register(bytes)
	_ = reg.Register(pause)
	_ = reg.Register(transport)

	return &PrometheusSink{
		calls:     calls,
		duration:  duration,
		attempts:  attempts,
		retries:   retries,
		bytes:     bytes,
		pause:     pause,
		transport: transport,
	}
}

// Publish records m.
func (s *PrometheusSink) Publish(_ context.Context, m *Metrics) {
	res := result(m)
	status := ""
	if m.StatusCode != 0 {
		status = strconv.Itoa(m.StatusCode)
	}
	s.calls.WithLabelValues(m.ServiceName, res, status, m.ErrorCode).Inc()
	s.duration.WithLabelValues(m.ServiceName, res).Observe(m.Duration().Seconds())
	s.attempts.WithLabelValues(m.ServiceName).Add(float64(m.AttemptCount))
	if m.AttemptCount > 1 {
		s.retries.WithLabelValues(m.ServiceName).Inc()
	}
	if n := m.BytesProcessed(); n > 0 {
		s.bytes.WithLabelValues(m.ServiceName).Add(float64(n))
	}
	if m.RetryPauseTime > 0 {
		s.pause.WithLabelValues(m.ServiceName).Add(m.RetryPauseTime.Seconds())
	}
	s.transport.WithLabelValues(m.ServiceName).Observe(m.TransportTime.Seconds())
}
