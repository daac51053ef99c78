// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

// A Response is what the transport returned for one attempt. It is
// handed to response handlers, which read Body to produce a result or
// a service error.
type Response struct {
	// StatusCode is the HTTP status code, for example 200.
	StatusCode int
	// Reason is the reason phrase from the status line, for example
	// "Service Unavailable", exactly as the server sent it. It is empty
	// if the status line had none.
	Reason string
	// Header holds the response headers.
	Header http.Header
	// Body is the response body. The client closes it once the
	// response has been handled, unless the handler asked for the
	// connection to be left open.
	Body io.ReadCloser
	// Request is the request the response answers.
	Request *Request
}

// FromHTTP wraps the response resp received for request r.
func FromHTTP(r *Request, resp *http.Response) *Response {
	b := resp.Body
	if b == nil {
		b = http.NoBody
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Header:     resp.Header,
		Body:       b,
		Request:    r,
	}
}

func reasonPhrase(resp *http.Response) string {
	return strings.TrimPrefix(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)), " ")
}
