// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package s3x

import (
	"github.com/gogama/s3x/metrics"
	"github.com/gogama/s3x/request"
)

// An Interceptor observes the lifecycle of calls.
//
// For each call, BeforeRequest is invoked once, before the first
// attempt. Then exactly one of AfterSuccess and AfterError is invoked,
// once, when the call ends.
type Interceptor interface {
	// BeforeRequest may modify r. If it returns an error, the call
	// fails with a ClientError wrapping that error.
	BeforeRequest(r *request.Request) error

	// AfterSuccess receives the result produced by the call's response
	// handler and the call's timing. If it returns an error, the
	// remaining interceptors are skipped and the call fails with that
	// error.
	AfterSuccess(r *request.Request, result interface{}, t metrics.Timing) error

	// AfterError receives the error about to be returned to the
	// caller.
	AfterError(r *request.Request, err error)
}

// A HandlerChain is an ordered list of interceptors which can be
// installed in an ExecutionContext. Interceptors run in the order they
// were added.
//
// A nil *HandlerChain is an empty chain.
type HandlerChain struct {
	interceptors []Interceptor
}

// NewHandlerChain returns a chain holding the given interceptors.
func NewHandlerChain(interceptors ...Interceptor) *HandlerChain {
	c := &HandlerChain{}
	for _, i := range interceptors {
		c.PushBack(i)
	}
	return c
}

// PushBack adds an interceptor to the back of the chain.
func (c *HandlerChain) PushBack(i Interceptor) {
	if i == nil {
		panic("s3x: nil interceptor")
	}

	c.interceptors = append(c.interceptors, i)
}

// Len returns the number of interceptors in the chain.
func (c *HandlerChain) Len() int {
	if c == nil {
		return 0
	}

	return len(c.interceptors)
}

func (c *HandlerChain) beforeRequest(r *request.Request) error {
	if c == nil {
		return nil
	}
	for _, i := range c.interceptors {
		if err := i.BeforeRequest(r); err != nil {
			return err
		}
	}
	return nil
}

func (c *HandlerChain) afterSuccess(r *request.Request, result interface{}, t metrics.Timing) error {
	if c == nil {
		return nil
	}
	for _, i := range c.interceptors {
		if err := i.AfterSuccess(r, result, t); err != nil {
			return err
		}
	}
	return nil
}

func (c *HandlerChain) afterError(r *request.Request, err error) {
	if c == nil {
		return
	}
	for _, i := range c.interceptors {
		i.AfterError(r, err)
	}
}

// InterceptorFuncs adapts ordinary functions into an Interceptor. Nil
// functions are skipped.
type InterceptorFuncs struct {
	Before  func(r *request.Request) error
	Success func(r *request.Request, result interface{}, t metrics.Timing) error
	Error   func(r *request.Request, err error)
}

// BeforeRequest calls f.Before(r) if it is not nil.
func (f InterceptorFuncs) BeforeRequest(r *request.Request) error {
	if f.Before == nil {
		return nil
	}
	return f.Before(r)
}

// AfterSuccess calls f.Success(r, result, t) if it is not nil.
func (f InterceptorFuncs) AfterSuccess(r *request.Request, result interface{}, t metrics.Timing) error {
	if f.Success == nil {
		return nil
	}
	return f.Success(r, result, t)
}

// AfterError calls f.Error(r, err) if it is not nil.
func (f InterceptorFuncs) AfterError(r *request.Request, err error) {
	if f.Error != nil {
		f.Error(r, err)
	}
}
