// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"github.com/gogama/s3x/fault"
)

// A Category is the transience category of a particular error, as
// reported by function Categorize().
//
// The category Not means a retry after encountering this error is very
// unlikely to succeed. All other categories mean a retry has some
// prospect of success.
type Category int

const (
	// Not indicates any non-transient error.
	Not Category = iota
	// Timeout indicates a client-side timeout.
	//
	// Function Categorize() will return Timeout if the error or any of
	// its wrapped causes has a Timeout() function that reports true.
	Timeout
	// ConnRefused indicates the remote host refused the connection, and
	// corresponds to the POSIX error code ECONNREFUSED.
	ConnRefused
	// ConnReset indicates the remote host returned an RST packet on a
	// previously active TCP connection, and corresponds to the POSIX
	// error code ECONNRESET.
	ConnReset
	// Transport indicates any other I/O failure while sending the
	// request or receiving the response headers: a *url.Error, a
	// net.Error, or an unexpected EOF.
	Transport
	// ServerError indicates a service error response with status 500
	// (Internal Server Error) or 503 (Service Unavailable).
	ServerError
	// Throttling indicates a service error response whose error code
	// says the caller is sending requests too quickly. Callers should
	// back off for longer than usual before retrying.
	Throttling
)

var categoryNames = []string{
	"Not",
	"Timeout",
	"ConnRefused",
	"ConnReset",
	"Transport",
	"ServerError",
	"Throttling",
}

// String returns the name of the category.
func (c Category) String() string {
	return categoryNames[c]
}

// Categorize returns the transience category of the given error. A nil
// error, and an error that is not transient, both produce the return
// value Not.
//
// Service errors are categorized by error code first and status code
// second, so a throttling code makes an error transient whatever its
// status. All other errors are examined for timeouts, connection
// errors and transport failures, looking through wrapped causes.
// Cancellation of a context by the caller is never transient.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var se *fault.ServiceError
	if errors.As(err, &se) {
		if fault.IsThrottlingCode(se.Code) {
			return Throttling
		}
		if se.StatusCode == http.StatusInternalServerError || se.StatusCode == http.StatusServiceUnavailable {
			return ServerError
		}
		return Not
	}

	var ce *fault.ClientError
	if errors.As(err, &ce) || errors.Is(err, context.Canceled) {
		return Not
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if errno == syscall.ECONNRESET {
			return ConnReset
		} else if errno == syscall.ECONNREFUSED {
			return ConnRefused
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return Transport
	}

	return Not
}

type hasTimeout interface {
	Timeout() bool
}
