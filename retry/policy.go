// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"time"

	"github.com/gogama/s3x/request"
)

// A Policy controls if and how retries are done in a call. In
// particular, after every failed attempt, a Policy decides whether a
// retry should be done and, if so, how long the wait period should be
// before retrying.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
//
// A Policy is composed of the Decider and Waiter interfaces. While you
// can implement Policy yourself, it may be more efficient to use one
// of the built-in retry policies, DefaultPolicy or Never, or to construct
// your policy using NewPolicy or WithMaxRetries.
type Policy interface {
	Decider
	Waiter
}

// DefaultPolicy is a general-purpose retry policy suitable for common
// use cases. It is a composition of DefaultDecider for retry decisions
// and DefaultWaiter for wait time calculations.
var DefaultPolicy Policy = policy{DefaultDecider, DefaultWaiter}

// Never is a policy that never retries.
var Never Policy = policy{Times(0), DefaultWaiter}

type policy struct {
	decider Decider
	waiter  Waiter
}

// NewPolicy composes a Decider and a Waiter into a retry Policy.
func NewPolicy(d Decider, w Waiter) Policy {
	if d == nil {
		panic("s3x/retry: nil decider")
	}
	if w == nil {
		panic("s3x/retry: nil waiter")
	}
	return policy{decider: d, waiter: w}
}

// WithMaxRetries returns a policy that behaves like DefaultPolicy but
// allows up to n retries instead of DefaultTimes.
func WithMaxRetries(n int) Policy {
	return policy{Times(n).And(Repeatable).And(TransientErr), DefaultWaiter}
}

func (p policy) Decide(e *request.Execution) bool {
	return p.decider.Decide(e)
}

func (p policy) Wait(e *request.Execution) time.Duration {
	return p.waiter.Wait(e)
}

// A Backoff is a caller-supplied strategy for the pause before a retry.
// When a call carries a Backoff, it is used instead of the retry
// policy's Waiter.
//
// Delay receives the zero-based index of the attempt that failed. The
// client caps the result at MaxBackoff.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// The BackoffFunc type is an adapter to allow the use of ordinary
// functions as a Backoff.
type BackoffFunc func(attempt int) time.Duration

// Delay calls f(attempt).
func (f BackoffFunc) Delay(attempt int) time.Duration {
	return f(attempt)
}

// Sleep pauses for d or until ctx is done, whichever happens first. It
// returns nil if the full pause elapsed and ctx.Err() otherwise.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
