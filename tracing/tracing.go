// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tracing

import (
	"context"

	"github.com/gogama/s3x/fault"
	"github.com/gogama/s3x/metrics"
	"github.com/gogama/s3x/request"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the spans.
const TracerName = "github.com/gogama/s3x/tracing"

const (
	attrMethod       = "http.request.method"
	attrURL          = "url.full"
	attrService      = "s3x.service"
	attrStatusCode   = "http.response.status_code"
	attrAttempts     = "s3x.attempt_count"
	attrRequestID    = "s3x.request_id"
	attrErrorCode    = "s3x.error_code"
	attrErrorType    = "s3x.error_type"
	attrRedirect     = "s3x.redirect_location"
	attrRetryPauseMS = "s3x.retry_pause_ms"
)

type parentKey struct{}

type spanKey struct{}

// WithParent makes ctx the parent of the span the interceptor starts
// for r. Call it before executing r.
func WithParent(r *request.Request, ctx context.Context) {
	r.SetValue(parentKey{}, ctx)
}

// An Interceptor starts one client span per call in BeforeRequest and
// ends it in AfterSuccess or AfterError. Add it to the HandlerChain of
// the call's ExecutionContext.
type Interceptor struct {
	tracer trace.Tracer
}

// NewInterceptor returns an Interceptor creating spans with a tracer
// from tp. If tp is nil, the global tracer provider is used.
func NewInterceptor(tp trace.TracerProvider) *Interceptor {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Interceptor{tracer: tp.Tracer(TracerName)}
}

// BeforeRequest starts the span.
func (i *Interceptor) BeforeRequest(r *request.Request) error {
	parent, _ := r.Value(parentKey{}).(context.Context)
	if parent == nil {
		parent = context.Background()
	}
	_, span := i.tracer.Start(parent, "s3x."+r.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrMethod, r.Method),
			attribute.String(attrService, r.ServiceName),
		),
	)
	if r.Endpoint != nil {
		span.SetAttributes(attribute.String(attrURL, r.URL().String()))
	}
	r.SetValue(spanKey{}, span)
	return nil
}

// AfterSuccess records the call's timing and ends the span.
func (i *Interceptor) AfterSuccess(r *request.Request, _ interface{}, t metrics.Timing) error {
	span := spanOf(r)
	if span == nil {
		return nil
	}
	attrs := []attribute.KeyValue{
		attribute.Int(attrStatusCode, t.StatusCode),
		attribute.Int(attrAttempts, t.AttemptCount),
		attribute.Int64(attrRetryPauseMS, t.RetryPauseTime.Milliseconds()),
	}
	if t.RequestID != "" {
		attrs = append(attrs, attribute.String(attrRequestID, t.RequestID))
	}
	if t.RedirectLocation != "" {
		attrs = append(attrs, attribute.String(attrRedirect, t.RedirectLocation))
	}
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
	span.End()
	return nil
}

// AfterError records err and ends the span.
func (i *Interceptor) AfterError(r *request.Request, err error) {
	span := spanOf(r)
	if span == nil || err == nil {
		return
	}
	var se *fault.ServiceError
	if errors.As(err, &se) {
		span.SetAttributes(
			attribute.Int(attrStatusCode, se.StatusCode),
			attribute.String(attrErrorCode, se.Code),
			attribute.String(attrErrorType, se.Type.String()),
			attribute.String(attrRequestID, se.RequestID),
		)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}

func spanOf(r *request.Request) trace.Span {
	span, _ := r.Value(spanKey{}).(trace.Span)
	return span
}
