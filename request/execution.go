// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/http"
	"time"

	"github.com/gogama/s3x/transient"
)

// An Execution represents the state of a single call: the request being
// executed and the outcome of the most recent attempt.
//
// The client creates an Execution for each call and updates it as the
// call progresses. Retry and timeout policies read it to make their
// decisions, and should treat it as read-only.
type Execution struct {
	// Request is the request being executed. It is never nil.
	Request *Request

	// CallID uniquely identifies the call in logs and metrics.
	CallID string

	// Start is the start time of the call. It is assigned a non-zero
	// value when the call starts, and this value remains constant
	// thereafter.
	Start time.Time

	// End is the end time of the call. It contains the zero value until
	// the call ends, when it is set to the current time.
	End time.Time

	// Attempt is the zero-based number of the current attempt. It is
	// set to zero on the initial attempt, one on the next attempt (a
	// retry or a redirect), and so on.
	Attempt int

	// AttemptTimeouts is the count of attempts that timed out during
	// the call.
	AttemptTimeouts int

	// Response is the response received in the most recent attempt. It
	// is nil if the attempt ended in a transport error, or before the
	// first attempt completes.
	Response *Response

	// Err is the failure of the most recent attempt: either a transport
	// error (in which case Response is nil) or the *fault.ServiceError
	// unmarshalled from an error response. It is nil if the most recent
	// attempt succeeded or has not completed.
	Err error
}

// StatusCode returns the status code of the response from the most
// recent attempt. If there is no response, 0 is returned.
func (e *Execution) StatusCode() int {
	if e.Response == nil {
		return 0
	}

	return e.Response.StatusCode
}

// Header returns the headers of the response from the most recent
// attempt. If there is no response, the nil header is returned.
//
// Note that a nil return value is always safe for read-only operations,
// since http.Header is a map type.
func (e *Execution) Header() http.Header {
	if e.Response == nil {
		var nilHeader http.Header
		return nilHeader
	}

	return e.Response.Header
}

// Duration returns the duration of the call.
//
// If the call has not yet started, the duration is zero. If the call
// has ended, the duration returned is equal to End minus Start.
// Otherwise, it is equal to the current time minus Start.
func (e *Execution) Duration() time.Duration {
	if !e.Started() {
		return time.Duration(0)
	} else if !e.Ended() {
		return time.Since(e.Start)
	}

	return e.End.Sub(e.Start)
}

// Started indicates whether the call has started.
func (e *Execution) Started() bool {
	return e.Start != (time.Time{})
}

// Ended indicates whether the call has ended.
func (e *Execution) Ended() bool {
	return e.End != (time.Time{})
}

// Timeout indicates whether Err currently contains a non-nil value
// which indicates a timeout.
func (e *Execution) Timeout() bool {
	cat := transient.Categorize(e.Err)
	return cat == transient.Timeout
}

// Transport indicates whether the most recent attempt failed before
// any response was received.
func (e *Execution) Transport() bool {
	return e.Err != nil && e.Response == nil
}

// PendingBytes returns the number of request body bytes the next attempt
// will send: zero if the request has no body, and -1 if the length of
// the body is not known in advance.
func (e *Execution) PendingBytes() int64 {
	if e.Request == nil || e.Request.Content == nil {
		return 0
	}
	c := e.Request.Content
	if c.Len() < 0 {
		return -1
	}
	return c.Len() - c.Offset()
}
