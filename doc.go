// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package s3x provides a robust client for calling an S3-compatible object
storage service. It sits between high-level operations (get an object,
put an object) and an HTTP transport, and takes care of the work every
call needs: signing, retrying transient failures with backoff,
following redirects, rewinding the request body, unmarshalling
responses and errors, and publishing per-call metrics.

Make a call by describing it with a request.Request and handing it to
Execute together with a handler for the success response, a handler
for error responses, and the call's ExecutionContext:

	r, err := request.New("GET", "https://s3.amazonaws.com", "/bucket/key")
	...
	ec := &s3x.ExecutionContext{
		Signer:      &signer.S3Signer{},
		Credentials: credentials.Static{AccessKeyID: akid, SecretAccessKey: secret},
	}
	b, err := s3x.Execute(ctx, client, r, unmarshal.Bytes, unmarshal.XMLError, ec)

A call is made of one or more attempts, executed one at a time on the
calling goroutine. The client's retry.Policy decides whether a failed
attempt is retried and how long to pause first; the timeout.Policy sets
a timeout on each attempt. A 307 response with a Location header sends
the next attempt to the new location.

Errors returned by Execute are of three kinds, all in package fault: a
*fault.ServiceError for an error response from the service, a
*fault.IntegrityError for a response body which failed its integrity
check, and a *fault.ClientError for everything else.

Interceptors installed in the ExecutionContext's HandlerChain observe
each call: BeforeRequest runs once before the first attempt, and
exactly one of AfterSuccess and AfterError runs when the call ends.
*/
package s3x
