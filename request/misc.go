// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

// Validate checks that the request can be turned into a well-formed
// HTTP request: the method is a token, the endpoint is absolute, and
// every header name and value is legal on the wire.
func (r *Request) Validate() error {
	if !validMethod(r.Method) {
		return errors.Errorf("s3x/request: invalid method %q", r.Method)
	}
	if r.Endpoint == nil || r.Endpoint.Host == "" {
		return errors.New("s3x/request: missing endpoint host")
	}
	for k, v := range r.Header {
		if !httpguts.ValidHeaderFieldName(k) {
			return errors.Errorf("s3x/request: invalid header name %q", k)
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			return errors.Errorf("s3x/request: invalid value for header %q", k)
		}
	}
	return nil
}

func validMethod(method string) bool {
	/*
	     Method         = "OPTIONS"                ; Section 9.2
	                    | "GET"                    ; Section 9.3
	                    | "HEAD"                   ; Section 9.4
	                    | "POST"                   ; Section 9.5
	                    | "PUT"                    ; Section 9.6
	                    | "DELETE"                 ; Section 9.7
	                    | "TRACE"                  ; Section 9.8
	                    | "CONNECT"                ; Section 9.9
	                    | extension-method
	   extension-method = token
	     token          = 1*<any CHAR except CTLs or separators>
	*/
	return len(method) > 0 && strings.IndexFunc(method, isNotToken) == -1
}

func isNotToken(r rune) bool {
	return !httpguts.IsTokenRune(r)
}

// hasPort is lifted verbatim from net/http/http.go
//
// Given a string of the form "host", "host:port", or "[ipv6::address]:port",
// return true if the string includes a port.
func hasPort(s string) bool { return strings.LastIndex(s, ":") > strings.LastIndex(s, "]") }

// removeEmptyPort is lifted verbatim from net/http/http.go
//
// removeEmptyPort strips the empty port in ":port" to ""
// as mandated by RFC 3986 Section 6.2.3.
func removeEmptyPort(host string) string {
	if hasPort(host) {
		return strings.TrimSuffix(host, ":")
	}
	return host
}
