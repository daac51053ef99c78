// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/s3x/request"
	"github.com/gogama/s3x/transient"
)

// A Decider decides if a retry should be done.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors Times, StatusCode, and Before, and the
// built-in deciders TransientErr, Repeatable and Throttled; or
// implement your Decider. Use DeciderFunc to convert an ordinary
// function into a Decider, and to compose deciders logically using
// DeciderFunc.And and DeciderFunc.Or.
type Decider interface {
	Decide(e *request.Execution) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
type DeciderFunc func(e *request.Execution) bool

// DefaultTimes is the number of times DefaultPolicy will retry.
const DefaultTimes = 3

// DefaultDecider is the retry decider used by DefaultPolicy. It will
// allow up to DefaultTimes retries (i.e. up to 4 total attempts) as
// long as the request body can be replayed, and will retry transport
// failures, service errors with status 500 or 503, and throttling
// errors regardless of status.
var DefaultDecider = Times(DefaultTimes).And(Repeatable).And(TransientErr)

// TransientErr is a decider that indicates a retry if the current
// error is transient according to transient.Categorize.
var TransientErr DeciderFunc = transientErr

// Repeatable is a decider that returns false if the request body can
// no longer be rewound to its mark, in other words if it is not
// repeatable and at least one byte of it has been sent.
var Repeatable DeciderFunc = repeatable

// Throttled is a decider that returns true if the current error is a
// service error signalling throttling.
var Throttled DeciderFunc = throttled

// Decide returns true if a retry should be done, and false otherwise,
// after examining the current call state.
func (f DeciderFunc) Decide(e *request.Execution) bool {
	return f(e)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) && g(e)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) || g(e)
	}
}

// Times constructs a retry decider which allows up to n retries. The
// returned decider returns true while the execution attempt index
// e.Attempt is less than n, and false otherwise.
func Times(n int) DeciderFunc {
	if n < 0 {
		panic("s3x/retry: negative retry count")
	}
	return func(e *request.Execution) bool {
		return e.Attempt < n
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the start of the call.
func Before(d time.Duration) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Duration() < d
	}
}

// StatusCode constructs a retry decider allowing retries based on the
// HTTP response status code. If the most recent attempt received a
// response, and its status code is contained in the list ss, the
// decider returns true. Otherwise, it returns false.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(e *request.Execution) bool {
		for _, s := range ss2 {
			if e.StatusCode() == s {
				return true
			}
		}
		return false
	}
}

func transientErr(e *request.Execution) bool {
	return transient.Categorize(e.Err) != transient.Not
}

func repeatable(e *request.Execution) bool {
	if e.Request == nil {
		return true
	}
	c := e.Request.Content
	return c == nil || c.IsRepeatable() || c.Consumed() == 0
}

func throttled(e *request.Execution) bool {
	return transient.Categorize(e.Err) == transient.Throttling
}
