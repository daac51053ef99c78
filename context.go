// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package s3x

import (
	"github.com/gogama/s3x/credentials"
	"github.com/gogama/s3x/metrics"
	"github.com/gogama/s3x/retry"
	"github.com/gogama/s3x/signer"
)

// An ExecutionContext bundles the collaborators of one call. The caller
// creates one for each call and must not change it while the call is in
// progress.
//
// Every field is optional.
type ExecutionContext struct {
	// Signer signs each attempt. If Signer or Credentials is nil, the
	// request is sent unsigned.
	Signer signer.Signer

	// Credentials supplies the credentials passed to Signer. It is
	// consulted once per call, before the first attempt.
	Credentials credentials.Provider

	// Handlers holds the interceptors observing the call.
	Handlers *HandlerChain

	// Metrics receives the call's metrics once the call ends. If nil,
	// metrics are collected but not published.
	Metrics metrics.Sink

	// Backoff, if not nil, replaces the retry policy's waiter when
	// computing the pause before a retry. Its delay is capped at
	// retry.MaxBackoff.
	Backoff retry.Backoff
}
