// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package s3x

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gogama/s3x/body"
	"github.com/gogama/s3x/credentials"
	"github.com/gogama/s3x/fault"
	"github.com/gogama/s3x/metadata"
	"github.com/gogama/s3x/metrics"
	"github.com/gogama/s3x/request"
	"github.com/gogama/s3x/retry"
	"github.com/gogama/s3x/timeout"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Version is the version of this package, reported in the default
// User-Agent.
const Version = "1.0.0"

// DefaultUserAgent is the User-Agent sent when Client.UserAgent is
// empty.
const DefaultUserAgent = "s3x/" + Version

// MaxRedirects is the number of redirects a call follows before
// failing.
const MaxRedirects = 10

var defaultDoer HTTPDoer = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// A Client executes calls to an object storage service, retrying failed
// attempts and following redirects. Its zero value is a valid
// configuration.
//
// The zero value client uses an http.Client which does not follow
// redirects as the HTTPDoer, retry.DefaultPolicy as the retry policy,
// timeout.DefaultPolicy as the timeout policy, no logging, and a
// metadata cache of metadata.DefaultCapacity entries.
//
// Client's HTTPDoer typically has an internal state (cached TCP
// connections) so Client instances should be reused instead of created
// as needed. Client is safe for concurrent use by multiple goroutines.
//
// A call runs on the calling goroutine as a strict sequence of
// attempts: sign, send, classify the response, then either return or
// pause and try again. There is never more than one attempt in flight
// for a call.
type Client struct {
	// HTTPDoer specifies the mechanics of sending HTTP requests and
	// receiving responses.
	//
	// If HTTPDoer is nil, an http.Client which returns redirect
	// responses instead of following them is used.
	HTTPDoer HTTPDoer
	// RetryPolicy decides when to retry failed attempts and how long
	// to pause after a failed attempt before retrying.
	//
	// If RetryPolicy is nil, retry.DefaultPolicy is used.
	RetryPolicy retry.Policy
	// TimeoutPolicy specifies how to set timeouts on individual
	// attempts.
	//
	// If TimeoutPolicy is nil, timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// Logger receives debug logs of each attempt. If nil, nothing is
	// logged.
	Logger *zerolog.Logger
	// UserAgent is sent as the User-Agent header. If empty,
	// DefaultUserAgent is used.
	UserAgent string
	// Metadata caches the response metadata of successful calls. If
	// nil, a cache of metadata.DefaultCapacity entries is created on
	// first use.
	Metadata *metadata.Cache
	// Sleep pauses before a retry. It must return early with an error
	// if ctx is done. If nil, retry.Sleep is used.
	Sleep func(ctx context.Context, d time.Duration) error

	once sync.Once
}

// NewClient returns a Client with its own metadata cache.
func NewClient() *Client {
	return &Client{Metadata: metadata.NewCache(metadata.DefaultCapacity)}
}

// ResponseMetadata returns the metadata of the response which completed
// the most recent successful call made with the given original call
// object, if it is still in the cache.
func (c *Client) ResponseMetadata(original interface{}) (metadata.ResponseMetadata, bool) {
	return c.cache().Get(original)
}

// CloseIdleConnections invokes the same method on the client's
// underlying HTTPDoer.
//
// If the HTTPDoer has no CloseIdleConnections method, this method does
// nothing.
func (c *Client) CloseIdleConnections() {
	doer := c.doer()
	if ic, ok := doer.(IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}

func (c *Client) doer() HTTPDoer {
	if c.HTTPDoer == nil {
		return defaultDoer
	}

	return c.HTTPDoer
}

func (c *Client) cache() *metadata.Cache {
	c.once.Do(func() {
		if c.Metadata == nil {
			c.Metadata = metadata.NewCache(metadata.DefaultCapacity)
		}
	})
	return c.Metadata
}

// Execute executes request r and returns the result produced by h from
// the successful response.
//
// Failed attempts are retried as directed by the client's retry policy,
// pausing before each retry. A 307 redirect is followed by sending the
// next attempt to the redirect location. Every attempt restores the
// request's headers and parameters to what they were before the first
// attempt, rewinds the request body, and is signed afresh.
//
// If the call fails, the error is a *fault.ServiceError unmarshalled by
// eh from the last error response, a *fault.IntegrityError returned by
// h, or a *fault.ClientError for every other failure. Cancelling ctx
// aborts the call, including any pause before a retry, with a
// ClientError.
//
// A nil ec yields a ClientError. A nil ctx, r, h or eh is a programming
// error and causes a panic.
func Execute[T any](ctx context.Context, c *Client, r *request.Request, h ResponseHandler[T], eh ErrorHandler, ec *ExecutionContext) (T, error) {
	var zero T
	if ctx == nil {
		panic("s3x: nil context")
	}
	if r == nil {
		panic("s3x: nil request")
	}
	if h == nil || eh == nil {
		panic("s3x: nil response handler")
	}
	if ec == nil {
		return zero, fault.NewClientError("s3x: no execution context specified", nil)
	}
	if c == nil {
		c = &Client{}
	}

	x := newCall(ctx, c, r, ec)
	result, err := run(x, h, eh)
	if err != nil {
		return zero, err
	}
	return result, nil
}

type call struct {
	ctx     context.Context
	client  *Client
	r       *request.Request
	ec      *ExecutionContext
	e       *request.Execution
	m       *metrics.Metrics
	logger  zerolog.Logger
	doer    HTTPDoer
	retry   retry.Policy
	timeout timeout.Policy
	sleep   func(context.Context, time.Duration) error
	creds   *credentials.Credentials
	pause   time.Duration
	reader  *body.Reader
}

func newCall(ctx context.Context, c *Client, r *request.Request, ec *ExecutionContext) *call {
	start := time.Now()
	callID := uuid.NewString()
	x := &call{
		ctx:     ctx,
		client:  c,
		r:       r,
		ec:      ec,
		e:       &request.Execution{Request: r, CallID: callID, Start: start},
		m:       metrics.New(callID, r.ServiceName, start),
		doer:    c.doer(),
		retry:   c.RetryPolicy,
		timeout: c.TimeoutPolicy,
		sleep:   c.Sleep,
	}
	if c.Logger != nil {
		x.logger = c.Logger.With().Str("call_id", callID).Logger()
	} else {
		x.logger = zerolog.Nop()
	}
	if x.retry == nil {
		x.retry = retry.DefaultPolicy
	}
	if x.timeout == nil {
		x.timeout = timeout.DefaultPolicy
	}
	if x.sleep == nil {
		x.sleep = retry.Sleep
	}
	return x
}

func run[T any](x *call, h ResponseHandler[T], eh ErrorHandler) (T, error) {
	var zero T
	r := x.r

	if err := x.ec.Handlers.beforeRequest(r); err != nil {
		return zero, x.fail(fault.NewClientError("s3x: interceptor rejected request", err))
	}
	x.setUserAgent()
	if err := x.loadCredentials(); err != nil {
		return zero, x.fail(err)
	}
	snapshot := r.Snapshot()
	if r.Content != nil {
		r.Content.Mark()
	}

	redirects := 0
	for {
		if x.e.Attempt > 0 {
			r.Restore(snapshot)
			if err := x.wait(); err != nil {
				return zero, x.fail(err)
			}
		}
		x.m.AttemptCount++

		resp, err := x.send()
		if err != nil {
			if _, ok := err.(*fault.ClientError); ok {
				return zero, x.fail(err)
			}
			x.logger.Info().Err(err).Int("attempt", x.e.Attempt).Msg("unable to execute HTTP request")
			if x.ctx.Err() == nil {
				if retrying, rerr := x.decideRetry(err); rerr != nil {
					return zero, x.fail(rerr)
				} else if retrying {
					continue
				}
			}
			return zero, x.fail(fault.NewClientError("s3x: unable to execute HTTP request", err))
		}

		switch Classify(resp.StatusCode, resp.Header) {
		case Success:
			t0 := time.Now()
			result, md, err := handleSuccess(resp, h)
			x.m.ResponseProcessingTime += time.Since(t0)
			leftOpen := err == nil && h.NeedsConnectionLeftOpen()
			if !leftOpen {
				_ = resp.Body.Close()
			}
			x.detach()
			if err != nil {
				return zero, x.fail(err)
			}
			x.client.cache().Add(r.Original, md)
			if err = x.succeed(result); err != nil {
				if leftOpen {
					_ = resp.Body.Close()
				}
				return zero, err
			}
			return result, nil
		case Redirect:
			loc := resp.Header.Get("Location")
			_ = resp.Body.Close()
			x.detach()
			if err := x.redirect(loc, &redirects); err != nil {
				return zero, x.fail(err)
			}
		default:
			t0 := time.Now()
			err := handleError(resp, eh, r.ServiceName)
			x.m.ResponseProcessingTime += time.Since(t0)
			x.detach()
			x.e.Err = err
			var se *fault.ServiceError
			if !errors.As(err, &se) {
				_ = resp.Body.Close()
				return zero, x.fail(err)
			}
			x.m.ErrorCode = se.Code
			retrying, rerr := x.decideRetry(se)
			if retrying || rerr != nil || !eh.NeedsConnectionLeftOpen() {
				_ = resp.Body.Close()
			} else {
				se.Body = resp.Body
			}
			if rerr != nil {
				return zero, x.fail(rerr)
			} else if !retrying {
				return zero, x.fail(se)
			}
		}
	}
}

func (x *call) setUserAgent() {
	ua := x.client.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	if m, ok := x.r.Original.(ClientMarker); ok {
		if marker := m.ClientMarker(); marker != "" {
			ua += " " + marker
		}
	}
	x.r.SetHeader("User-Agent", ua)
}

func (x *call) loadCredentials() error {
	if x.ec.Signer == nil || x.ec.Credentials == nil {
		return nil
	}
	creds, err := x.ec.Credentials.Retrieve(x.ctx)
	if err != nil {
		return fault.NewClientError("s3x: unable to load credentials", err)
	}
	x.creds = creds
	return nil
}

// send signs and sends one attempt. A *fault.ClientError return is
// terminal; any other error is a transport error.
func (x *call) send() (*request.Response, error) {
	r, e := x.r, x.e
	e.Response = nil
	e.Err = nil

	if x.ec.Signer != nil && x.creds != nil {
		t0 := time.Now()
		err := x.ec.Signer.Sign(r, x.creds)
		x.m.SigningTime += time.Since(t0)
		if err != nil {
			return nil, fault.NewClientError("s3x: unable to sign request", err)
		}
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if d := x.timeout.Timeout(e); d > 0 {
		ctx, cancel = context.WithTimeout(x.ctx, d)
	} else {
		ctx, cancel = context.WithCancel(x.ctx)
	}
	req, err := r.ToHTTP(ctx)
	if err != nil {
		cancel()
		return nil, fault.NewClientError("s3x: unable to build HTTP request", err)
	}

	x.logger.Debug().
		Int("attempt", e.Attempt).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("sending request")
	t0 := time.Now()
	httpResp, err := x.doer.Do(req)
	x.m.TransportTime += time.Since(t0)
	x.reader, _ = req.Body.(*body.Reader)
	if err != nil {
		x.detach()
		if ctx.Err() == context.DeadlineExceeded && x.ctx.Err() == nil {
			e.AttemptTimeouts++
		}
		cancel()
		e.Err = urlErrorWrap(r, err)
		return nil, e.Err
	}

	resp := request.FromHTTP(r, httpResp)
	resp.Body = &attemptBody{rc: resp.Body, cancel: cancel, m: x.m}
	e.Response = resp
	x.m.StatusCode = resp.StatusCode
	x.m.RequestID = resp.Header.Get(metadata.RequestIDHeader)
	x.m.Endpoint = r.Endpoint.String()
	x.logger.Debug().
		Int("attempt", e.Attempt).
		Int("status", resp.StatusCode).
		Str("request_id", x.m.RequestID).
		Msg("received response")
	return resp, nil
}

// decideRetry consults the retry policy about the failed attempt. If it
// decides to retry, the request body is rewound and the pause before
// the next attempt is computed.
func (x *call) decideRetry(cause error) (bool, error) {
	if !x.retry.Decide(x.e) {
		return false, nil
	}
	if x.r.Content != nil {
		if err := x.r.Content.Reset(); err != nil {
			return false, fault.NewClientError("s3x: unable to reset request body for retry", errors.Join(err, cause))
		}
	}
	x.pause = x.delay()
	x.logger.Debug().
		Err(cause).
		Int("attempt", x.e.Attempt).
		Dur("pause", x.pause).
		Msg("retryable error")
	x.e.Attempt++
	return true, nil
}

func (x *call) delay() time.Duration {
	if x.ec.Backoff != nil {
		d := x.ec.Backoff.Delay(x.e.Attempt)
		if d > retry.MaxBackoff {
			d = retry.MaxBackoff
		}
		return d
	}
	return x.retry.Wait(x.e)
}

func (x *call) wait() error {
	d := x.pause
	x.pause = 0
	if d <= 0 {
		return nil
	}
	t0 := time.Now()
	err := x.sleep(x.ctx, d)
	x.m.RetryPauseTime += time.Since(t0)
	if err != nil {
		return fault.NewClientError("s3x: interrupted while waiting to retry", err)
	}
	return nil
}

func (x *call) redirect(location string, redirects *int) error {
	*redirects++
	if *redirects > MaxRedirects {
		return fault.NewClientError("s3x: stopped after "+strconv.Itoa(MaxRedirects)+" redirects", nil)
	}
	u, err := x.r.URL().Parse(location)
	if err != nil {
		return fault.NewClientError("s3x: invalid redirect location", err)
	}
	x.logger.Debug().
		Int("attempt", x.e.Attempt).
		Str("location", u.String()).
		Msg("redirecting")
	x.r.Retarget(u)
	x.m.RedirectLocation = u.String()
	if x.r.Content != nil {
		if err := x.r.Content.Reset(); err != nil {
			return fault.NewClientError("s3x: unable to reset request body for redirect", err)
		}
	}
	x.pause = x.delay()
	x.e.Attempt++
	return nil
}

// detach ends the transport's use of the request body for the current
// attempt and counts the bytes it sent. The transport may still be
// writing the body after Do returns, so the call only touches Content
// again once detach has returned.
func (x *call) detach() {
	if x.reader == nil {
		return
	}
	x.reader.Detach()
	x.reader = nil
	x.m.AddBytes(x.r.Content.Consumed())
}

func (x *call) succeed(result interface{}) error {
	x.e.End = time.Now()
	x.m.Finalize(x.ctx, x.ec.Metrics, x.e.End)
	return x.ec.Handlers.afterSuccess(x.r, result, x.m.Timing())
}

func (x *call) fail(err error) error {
	x.e.End = time.Now()
	x.m.Err = err
	var se *fault.ServiceError
	if errors.As(err, &se) {
		x.m.ErrorCode = se.Code
	}
	x.m.Finalize(x.ctx, x.ec.Metrics, x.e.End)
	x.ec.Handlers.afterError(x.r, err)
	x.logger.Debug().Err(err).Int("attempts", x.m.AttemptCount).Msg("call failed")
	return err
}

// attemptBody counts the response bytes read and releases the attempt's
// context when closed.
type attemptBody struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
	m      *metrics.Metrics
}

func (b *attemptBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	b.m.AddBytes(int64(n))
	return n, err
}

func (b *attemptBody) Close() error {
	err := b.rc.Close()
	b.cancel()
	return err
}

func urlErrorWrap(r *request.Request, err error) error {
	if _, ok := err.(*url.Error); ok {
		return err
	}

	return &url.Error{
		Op:  urlErrorOp(r.Method),
		URL: r.URL().String(),
		Err: err,
	}
}

// urlErrorOp is lifted verbatim from net/http/client.go
func urlErrorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
