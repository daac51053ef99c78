// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics accumulates the counters and timers of one call across all
// of its attempts. The client creates a Metrics when a call starts and
// finalizes it exactly once when the call ends, whatever the outcome.
//
// The exported fields are written by the client's goroutine while the
// call is in progress. Sinks and interceptors should treat a Metrics as
// read-only.
type Metrics struct {
	// CallID uniquely identifies the call.
	CallID string
	// ServiceName names the service called.
	ServiceName string
	// Endpoint is the endpoint of the final attempt.
	Endpoint string

	// Start is when the call started. End is when it was finalized.
	Start, End time.Time

	// AttemptCount is the number of attempts made, counting redirects.
	AttemptCount int

	// SigningTime is the total time spent signing.
	SigningTime time.Duration
	// TransportTime is the total time spent waiting on the transport
	// for response headers.
	TransportTime time.Duration
	// RetryPauseTime is the total time spent in backoff pauses.
	RetryPauseTime time.Duration
	// ResponseProcessingTime is the total time spent in response and
	// error handlers.
	ResponseProcessingTime time.Duration

	// StatusCode is the status code of the last response, or zero if
	// no response was received.
	StatusCode int
	// RequestID is the service request id of the last response.
	RequestID string
	// ErrorCode is the service error code of the terminal failure, if
	// it was a service error.
	ErrorCode string
	// RedirectLocation is the location of the last redirect followed.
	RedirectLocation string
	// Err is the terminal error, or nil if the call succeeded.
	Err error

	bytes     atomic.Int64
	finalized sync.Once
}

// New returns a Metrics for a call starting now.
func New(callID, serviceName string, start time.Time) *Metrics {
	return &Metrics{CallID: callID, ServiceName: serviceName, Start: start}
}

// AddBytes adds n to the count of bytes processed: request bytes sent
// and response bytes read.
func (m *Metrics) AddBytes(n int64) {
	m.bytes.Add(n)
}

// BytesProcessed returns the count of bytes processed so far.
func (m *Metrics) BytesProcessed() int64 {
	return m.bytes.Load()
}

// Finalize ends the call at end and publishes the metrics to sink,
// which may be nil. Only the first call to Finalize has any effect; it
// returns true, and later calls return false.
func (m *Metrics) Finalize(ctx context.Context, sink Sink, end time.Time) bool {
	first := false
	m.finalized.Do(func() {
		first = true
		m.End = end
		if sink != nil {
			sink.Publish(ctx, m)
		}
	})
	return first
}

// Duration returns the duration of the call, or zero if it has not
// been finalized.
func (m *Metrics) Duration() time.Duration {
	if m.End.IsZero() {
		return 0
	}
	return m.End.Sub(m.Start)
}

// Timing returns a snapshot of the timers and counters.
func (m *Metrics) Timing() Timing {
	return Timing{
		Start:                  m.Start,
		End:                    m.End,
		AttemptCount:           m.AttemptCount,
		SigningTime:            m.SigningTime,
		TransportTime:          m.TransportTime,
		RetryPauseTime:         m.RetryPauseTime,
		ResponseProcessingTime: m.ResponseProcessingTime,
		BytesProcessed:         m.BytesProcessed(),
		StatusCode:             m.StatusCode,
		RequestID:              m.RequestID,
		RedirectLocation:       m.RedirectLocation,
	}
}

// Timing is a point-in-time copy of the timers and counters of a call,
// handed to interceptors when the call succeeds.
type Timing struct {
	Start, End             time.Time
	AttemptCount           int
	SigningTime            time.Duration
	TransportTime          time.Duration
	RetryPauseTime         time.Duration
	ResponseProcessingTime time.Duration
	BytesProcessed         int64
	StatusCode             int
	RequestID              string
	RedirectLocation       string
}

// Duration returns End minus Start.
func (t Timing) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// A Sink receives the finalized metrics of every call.
//
// Implementations of Sink must be safe for concurrent use by multiple
// goroutines.
type Sink interface {
	Publish(ctx context.Context, m *Metrics)
}

// The SinkFunc type is an adapter to allow the use of ordinary
// functions as sinks.
type SinkFunc func(ctx context.Context, m *Metrics)

// Publish calls f(ctx, m).
func (f SinkFunc) Publish(ctx context.Context, m *Metrics) {
	f(ctx, m)
}

// Discard is a Sink which drops everything.
var Discard Sink = SinkFunc(func(context.Context, *Metrics) {})

// Multi returns a Sink which publishes to each of sinks in order.
func Multi(sinks ...Sink) Sink {
	s := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			s = append(s, sink)
		}
	}
	return SinkFunc(func(ctx context.Context, m *Metrics) {
		for _, sink := range s {
			sink.Publish(ctx, m)
		}
	})
}

func result(m *Metrics) string {
	if m.Err != nil {
		return "error"
	}
	return "ok"
}
