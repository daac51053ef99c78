// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package fault

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// An ErrorType records which party is to blame for a ServiceError.
type ErrorType int

const (
	// Unknown indicates the service did not say who caused the error.
	Unknown ErrorType = iota
	// Client indicates the error was caused by the caller, for example
	// a malformed request or a request for a missing object.
	Client
	// Service indicates the error was caused by a problem on the
	// service side.
	Service
)

var errorTypeNames = []string{"Unknown", "Client", "Service"}

// String returns the name of the error type.
func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
	return errorTypeNames[t]
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// callers captures the stack of the function calling the constructor
// that called callers.
func callers() errors.StackTrace {
	st := errors.New("").(stackTracer).StackTrace()
	if len(st) > 2 {
		return st[2:]
	}
	return st
}

// A ClientError reports a failure whose cause is local: the call was
// set up badly, the service could not be reached (after any retries),
// a response could not be unmarshalled, or the request body could not
// be replayed for a retry.
//
// A ClientError is always terminal. The client never retries a call
// that has produced one.
type ClientError struct {
	// Msg describes what went wrong.
	Msg string
	// Err is the underlying cause, if any.
	Err error

	stack errors.StackTrace
}

// NewClientError constructs a ClientError with the given message and
// optional cause, recording the caller's stack.
func NewClientError(msg string, cause error) *ClientError {
	return &ClientError{Msg: msg, Err: cause, stack: callers()}
}

// Error returns the message, followed by the cause if there is one.
func (e *ClientError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// StackTrace returns the stack recorded when the error was created.
func (e *ClientError) StackTrace() errors.StackTrace {
	return e.stack
}

// Format implements fmt.Formatter. The verb %+v prints the message,
// the stack trace, and the cause in %+v form.
func (e *ClientError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = io.WriteString(s, e.Msg)
			e.stack.Format(s, verb)
			if e.Err != nil {
				_, _ = fmt.Fprintf(s, "\ncaused by: %+v", e.Err)
			}
			return
		}
		fallthrough
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// A ServiceError reports an error response returned by the service.
//
// The status code and service name are stamped onto the error by the
// client once the error response has been unmarshalled, so error
// unmarshallers need only fill in the fields found in the response.
type ServiceError struct {
	// Code is the service's error code, for example "NoSuchKey" or
	// "SlowDown".
	Code string
	// Message is the human readable error message from the service.
	Message string
	// RequestID is the service's identifier for the failed request.
	RequestID string
	// HostID is the extended request identifier, if the service sent
	// one.
	HostID string
	// StatusCode is the HTTP status code of the error response.
	StatusCode int
	// Type records whether the caller or the service caused the error.
	Type ErrorType
	// ServiceName is the name of the service that returned the error.
	ServiceName string
	// Body is the unread remainder of the error response. It is set
	// only when the error handler asked for the connection to be left
	// open and the error ended the call, in which case the caller must
	// close it.
	Body io.ReadCloser

	stack errors.StackTrace
}

// Stamp sets the status code and service name on the error and
// captures the caller's stack as the error site.
func (e *ServiceError) Stamp(statusCode int, serviceName string) {
	e.StatusCode = statusCode
	e.ServiceName = serviceName
	e.stack = errors.New("").(stackTracer).StackTrace()[1:]
}

// Error formats the error with its status, code and request ID.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s (Service: %s; Status Code: %d; Error Code: %s; Request ID: %s)",
		e.Message, e.ServiceName, e.StatusCode, e.Code, e.RequestID)
}

// StackTrace returns the stack captured by the most recent call to
// Stamp, or nil if the error was never stamped.
func (e *ServiceError) StackTrace() errors.StackTrace {
	return e.stack
}

// Format implements fmt.Formatter. The verb %+v adds the stack trace.
func (e *ServiceError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		_, _ = io.WriteString(s, e.Error())
		if s.Flag('+') {
			e.stack.Format(s, verb)
		}
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// An IntegrityError reports that a response body did not match the
// checksum the service sent with it, meaning the data was corrupted in
// transit. The client returns it unchanged rather than wrapping it in
// a ClientError.
type IntegrityError struct {
	// Algorithm names the checksum algorithm, for example "MD5".
	Algorithm string
	// Expected is the checksum sent by the service.
	Expected string
	// Actual is the checksum computed over the received content.
	Actual string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("s3x/fault: %s checksum mismatch: expected %s, computed %s",
		e.Algorithm, e.Expected, e.Actual)
}

var throttlingCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
}

// IsThrottlingCode reports whether a service error code signals that
// the caller is being throttled.
func IsThrottlingCode(code string) bool {
	return throttlingCodes[code]
}

// IsThrottling reports whether err is, or wraps, a ServiceError whose
// code signals throttling.
func IsThrottling(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && IsThrottlingCode(se.Code)
}
