// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package s3x

import (
	"net/http"

	"github.com/gogama/s3x/fault"
	"github.com/gogama/s3x/request"
)

// An HTTPDoer implements a Do method in the same manner as the GoLang
// standard library http.Client from the net/http package.
//
// The client handles redirects itself, so an HTTPDoer should return
// redirect responses rather than follow them. The default HTTPDoer is
// an http.Client whose CheckRedirect returns http.ErrUseLastResponse.
type HTTPDoer interface {
	// Do sends an HTTP request and returns an HTTP response following
	// policy (such as cookies, proxies, TLS) configured on the
	// HTTPDoer.
	//
	// The Do method must follow the contract documented on the GoLang
	// standard library http.Client from the net/http package.
	Do(r *http.Request) (*http.Response, error)
}

// IdleCloser is the interface that wraps the basic CloseIdleConnections
// method.
//
// If the underlying implementation supports it, CloseIdleConnections
// closes any idle which were previously connected from previous
// requests but are now sitting idle in a "keep-alive" state. It does
// not interrupt any connections currently in use.
//
// If the underlying implementation does not support this ability,
// CloseIdleConnections does nothing.
type IdleCloser interface {
	CloseIdleConnections()
}

// A ResponseHandler unmarshals a response into a result of type T.
//
// The client calls Handle with the response to the attempt that ended
// the call. Unless NeedsConnectionLeftOpen returns true, the client
// closes the response body once Handle returns. If it returns true,
// closing the body becomes the job of whoever consumes the result,
// typically because the result streams the body.
type ResponseHandler[T any] interface {
	Handle(resp *request.Response) (T, error)
	NeedsConnectionLeftOpen() bool
}

// An ErrorHandler unmarshals an error response into a service error.
type ErrorHandler = ResponseHandler[*fault.ServiceError]

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as response handlers. A HandlerFunc never needs the
// connection left open.
type HandlerFunc[T any] func(resp *request.Response) (T, error)

// Handle calls f(resp).
func (f HandlerFunc[T]) Handle(resp *request.Response) (T, error) {
	return f(resp)
}

// NeedsConnectionLeftOpen returns false.
func (f HandlerFunc[T]) NeedsConnectionLeftOpen() bool {
	return false
}

// A ClientMarker is implemented by original call objects which want a
// marker appended to the User-Agent header of their requests.
type ClientMarker interface {
	ClientMarker() string
}
