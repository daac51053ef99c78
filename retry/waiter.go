// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gogama/s3x/request"
	"github.com/gogama/s3x/transient"
)

// A Waiter specifies how long to wait before retrying a failed attempt.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines.
//
// The client calls the Waiter after the Decider has decided to retry,
// while e.Attempt is still the index of the attempt that failed and
// e.Err is its failure.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

const (
	// MaxBackoff caps every retry pause.
	MaxBackoff = 20 * time.Second
	// BaseScale is the scale factor of DefaultWaiter's exponential
	// formula.
	BaseScale = 300 * time.Millisecond
	// ThrottledScale is the minimum scale factor of DefaultWaiter's
	// exponential formula after a throttling error.
	ThrottledScale = 500 * time.Millisecond
	// ThrottledJitter is the upper bound (exclusive) of the random
	// amount added to ThrottledScale.
	ThrottledJitter = 100 * time.Millisecond
)

// DefaultWaiter is the default retry wait policy. It waits
//
//	min(2**attempt * scale, MaxBackoff)
//
// where scale is BaseScale, unless the failed attempt was throttled, in
// which case scale is ThrottledScale plus a random amount below
// ThrottledJitter.
var DefaultWaiter = NewThrottleWaiter(time.Now())

// NewThrottleWaiter constructs a Waiter that behaves like DefaultWaiter.
// Parameter jitter seeds the random amount added to the scale after a
// throttling error, and accepts the same values as in NewExpWaiter
// except nil.
func NewThrottleWaiter(jitter interface{}) Waiter {
	r := jitterToRand(jitter)
	if r == nil {
		panic("s3x/retry: throttle waiter needs jitter")
	}
	return &throttleWaiter{rand: r}
}

type throttleWaiter struct {
	rand *rand.Rand
	lock sync.Mutex
}

func (w *throttleWaiter) Wait(e *request.Execution) time.Duration {
	scale := BaseScale
	if transient.Categorize(e.Err) == transient.Throttling {
		w.lock.Lock()
		scale = ThrottledScale + time.Duration(w.rand.Int63n(int64(ThrottledJitter)/int64(time.Millisecond)))*time.Millisecond
		w.lock.Unlock()
	}
	return Exp(scale, e.Attempt, MaxBackoff)
}

// Exp returns min(scale * 2**attempt, max). It never overflows.
func Exp(scale time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 62 {
		return max
	}
	exp := int64(1) << attempt
	d := int64(scale) * exp
	if d/exp != int64(scale) || d < 0 || d > int64(max) {
		return max
	}
	return time.Duration(d)
}

// NewFixedWaiter constructs a Waiter that always returns the given
// duration.
//
// Use NewFixedWaiter to obtain a constant retry backoff.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewExpWaiter constructs a Waiter implementing an exponential backoff
// formula with optional jitter.
//
// The formula implemented is the "Full Jitter" approach described in:
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter.
//
// Parameters base and max control the exponential calculation of the
// ceiling:
//
//	ceil := min(base * 2**attempt, max)
//
// Base and max must be positive values, and max must be at least equal
// to base.
//
// Parameter jitter is used to generate a random number between 0 and
// ceil. To make a waiter that does not jitter and simply returns
// ceil on each attempt, pass nil for jitter. Otherwise you may specify
// either a random number generator seed value (as a time.Time, int, or
// int64) or a random number generator (as a rand.Source).
func NewExpWaiter(base, max time.Duration, jitter interface{}) Waiter {
	if base < 1 {
		panic("s3x/retry: base must be positive")
	}
	if max < base {
		panic("s3x/retry: max must be at least base")
	}
	r := jitterToRand(jitter)
	return &jitterExpWaiter{
		base: base,
		max:  max,
		rand: r,
	}
}

type jitterExpWaiter struct {
	base time.Duration
	max  time.Duration
	rand *rand.Rand
	lock sync.Mutex
}

func (w *jitterExpWaiter) Wait(e *request.Execution) time.Duration {
	ceil := int64(Exp(w.base, e.Attempt, w.max))

	duration := ceil
	if ceil > 0 {
		w.lock.Lock()
		defer w.lock.Unlock()
		if w.rand != nil {
			duration = w.rand.Int63n(ceil)
		}
	}

	return time.Duration(duration)
}

func jitterToRand(jitter interface{}) *rand.Rand {
	var s rand.Source
	switch j := jitter.(type) {
	case nil:
		return nil
	case time.Time:
		s = rand.NewSource(j.UnixNano())
	case int:
		s = rand.NewSource(int64(j))
	case int64:
		s = rand.NewSource(j)
	case *rand.Rand:
		if j == nil {
			panic("s3x/retry: jitter may not be a typed nil")
		}
		return j
	case rand.Source:
		s = j
	default:
		panic("s3x/retry: invalid jitter type")
	}
	return rand.New(s)
}
