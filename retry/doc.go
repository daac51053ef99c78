// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides policies for retrying failed attempts during
// a call, and how long to wait before retrying.
//
// The interface Policy defines a retry Policy. A Policy instance can be
// constructed using NewPolicy by providing a decision-maker, Decider,
// and a wait time calculator, Waiter. Both Decider and Waiter have
// constructors for common use cases, so that a useful policy can be
// quickly assembled:
//
//	decider := retry.Times(5).And(retry.Repeatable).And(retry.TransientErr)
//	policy := retry.NewPolicy(decider, retry.DefaultWaiter)
//
// DefaultPolicy retries transport failures, 500 and 503 responses and
// throttling errors up to DefaultTimes times, waiting
// min(2^attempt * 300ms, 20s) between attempts, or longer when
// throttled.
//
// A Backoff replaces the Waiter for a single call when the caller
// supplies one.
package retry
