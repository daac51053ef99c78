// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core types Request (describes one logical
call to the object storage service), Response (what the transport
returned for one attempt) and Execution (the state of a call in
progress).

A Request looks like a stripped-down http.Request which outlives the
attempts of a call. Its headers and query parameters are plain maps
with at most one value per name, its resource path is kept unescaped,
and its body is a *body.Content which the client can rewind between
attempts:

	r, err := request.New("PUT", "https://s3.amazonaws.com", "/bucket/key")
	...
	r.SetHeader("Content-Type", "text/plain")
	r.Content = body.NewBytes(data)
	result, err := s3x.Execute(ctx, client, r, handler, errorHandler, ec)
	...

The client converts the Request into a fresh http.Request for each
attempt with ToHTTP, and wraps each http.Response with FromHTTP before
handing it to a response handler.

Execution is the input type for the client's retry and timeout
policies. You will typically not allocate Execution instances yourself,
but will instead work with the ones handed out by the client.
*/
package request
