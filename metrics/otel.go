// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the OpenTelemetry sink.
const MeterName = "github.com/gogama/s3x"

// OpenTelemetry instrument names.
const (
	MetricCallDuration  = "s3x.client.call.duration"
	MetricCalls         = "s3x.client.calls"
	MetricAttempts      = "s3x.client.attempts"
	MetricBytes         = "s3x.client.bytes"
	MetricRetryPause    = "s3x.client.retry_pause.duration"
	MetricTransportTime = "s3x.client.transport.duration"
)

const (
	attrService          = "s3x.service"
	attrResult           = "s3x.result"
	attrStatusCode       = "http.response.status_code"
	attrErrorCode        = "s3x.error_code"
	attrRedirectFollowed = "s3x.redirected"
)

// An OTelSink records call metrics with OpenTelemetry instruments.
type OTelSink struct {
	duration  metric.Float64Histogram
	calls     metric.Int64Counter
	attempts  metric.Int64Histogram
	bytes     metric.Int64Counter
	pause     metric.Float64Histogram
	transport metric.Float64Histogram
}

// NewOTelSink creates the sink's instruments with a meter from mp. If mp
// is nil, the global meter provider is used.
func NewOTelSink(mp metric.MeterProvider) (*OTelSink, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(MeterName)
	s := &OTelSink{}
	var err error
	if s.duration, err = meter.Float64Histogram(MetricCallDuration,
		metric.WithDescription("Duration of calls, including retries and pauses"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, MetricCallDuration)
	}
	if s.calls, err = meter.Int64Counter(MetricCalls,
		metric.WithDescription("Number of calls completed"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, errors.Wrap(err, MetricCalls)
	}
	if s.attempts, err = meter.Int64Histogram(MetricAttempts,
		metric.WithDescription("Attempts made per call"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, errors.Wrap(err, MetricAttempts)
	}
	if s.bytes, err = meter.Int64Counter(MetricBytes,
		metric.WithDescription("Request and response body bytes processed"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, errors.Wrap(err, MetricBytes)
	}
	if s.pause, err = meter.Float64Histogram(MetricRetryPause,
		metric.WithDescription("Time spent in retry backoff per call"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, MetricRetryPause)
	}
	if s.transport, err = meter.Float64Histogram(MetricTransportTime,
		metric.WithDescription("Time spent waiting on the transport per call"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, MetricTransportTime)
	}
	return s, nil
}

// Publish records m.
func (s *OTelSink) Publish(ctx context.Context, m *Metrics) {
	attrs := []attribute.KeyValue{
		attribute.String(attrService, m.ServiceName),
		attribute.String(attrResult, result(m)),
	}
	if m.StatusCode != 0 {
		attrs = append(attrs, attribute.Int(attrStatusCode, m.StatusCode))
	}
	if m.ErrorCode != "" {
		attrs = append(attrs, attribute.String(attrErrorCode, m.ErrorCode))
	}
	if m.RedirectLocation != "" {
		attrs = append(attrs, attribute.Bool(attrRedirectFollowed, true))
	}
	opt := metric.WithAttributes(attrs...)
	s.duration.Record(ctx, m.Duration().Seconds(), opt)
	s.calls.Add(ctx, 1, opt)
	s.attempts.Record(ctx, int64(m.AttemptCount), opt)
	if n := m.BytesProcessed(); n > 0 {
		s.bytes.Add(ctx, n, opt)
	}
	s.pause.Record(ctx, m.RetryPauseTime.Seconds(), opt)
	s.transport.Record(ctx, m.TransportTime.Seconds(), opt)
}
