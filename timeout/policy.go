// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/s3x/request"
)

// A Policy chooses the timeout for each attempt of a call.
//
// The client asks the policy for a timeout just before every attempt,
// after any retry pause. The timeout bounds the whole attempt: sending
// the request body, waiting for the status line and reading the
// response body. An attempt that runs out of time fails with a
// transport error, which the retry policy treats as transient.
//
// A Policy is shared by every call made through a client and must be
// safe for concurrent use.
type Policy interface {
	// Timeout returns the time allowed for the next attempt of the
	// call described by e. Zero or a negative value means the attempt
	// is bounded only by the caller's context.
	Timeout(e *request.Execution) time.Duration
}

// Infinite never times out an attempt.
var Infinite Policy = Fixed(0)

// DefaultPolicy is used by a client with no timeout policy. Objects
// can be gigabytes long, so it is Infinite.
var DefaultPolicy = Infinite

// Fixed allows every attempt the same time d. Fixed(0) is Infinite.
func Fixed(d time.Duration) Policy {
	return fixed(d)
}

type fixed time.Duration

func (d fixed) Timeout(_ *request.Execution) time.Duration {
	return time.Duration(d)
}

// Adaptive starts every call with the timeout usual, and lengthens it
// after an attempt times out.
//
// S3 occasionally stalls on one connection while the next connection
// answers at once, so a short timeout with a quick retry often beats
// waiting. But when the service is slow across the board, repeatedly
// cutting attempts short only adds load. Adaptive handles both: the
// first timed-out attempt is retried with backoff[0], the second with
// backoff[1], and so on, the last value being reused once backoff is
// exhausted. An attempt that follows an error other than a timeout is
// given usual again.
//
// For example, with
//
//	p := Adaptive(2*time.Second, 10*time.Second, time.Minute)
//
// a HEAD that stalls for 2 seconds is retried with 10 seconds to
// spare, and if that also times out, with a minute.
func Adaptive(usual time.Duration, backoff ...time.Duration) Policy {
	return &adaptive{usual: usual, backoff: backoff}
}

type adaptive struct {
	usual   time.Duration
	backoff []time.Duration
}

func (a *adaptive) Timeout(e *request.Execution) time.Duration {
	if len(a.backoff) == 0 || e.AttemptTimeouts == 0 || !e.Timeout() {
		return a.usual
	}
	i := e.AttemptTimeouts - 1
	if i >= len(a.backoff) {
		i = len(a.backoff) - 1
	}
	return a.backoff[i]
}

// MiB is the unit of body size used by Sized.
const MiB = 1 << 20

// Sized allows each attempt base plus perMiB for every started mebibyte
// of request body the attempt will send, so a 1 GiB PUT is not held to
// the timeout that suits a DELETE.
//
// An attempt whose body length is unknown, for example an upload
// streamed from a pipe, has no timeout. Sized does not account for the
// size of response bodies, so bound large downloads with the caller's
// context instead.
func Sized(base, perMiB time.Duration) Policy {
	return sized{base: base, perMiB: perMiB}
}

type sized struct {
	base   time.Duration
	perMiB time.Duration
}

func (s sized) Timeout(e *request.Execution) time.Duration {
	n := e.PendingBytes()
	if n < 0 {
		return 0
	}
	mib := (n + MiB - 1) / MiB
	return s.base + time.Duration(mib)*s.perMiB
}
