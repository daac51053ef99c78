// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Credentials are the keys used to sign requests.
type Credentials struct {
	// AccessKeyID identifies the caller. It appears in the clear in
	// the Authorization header.
	AccessKeyID string
	// SecretAccessKey is the signing key. It is never sent.
	SecretAccessKey string
	// SessionToken is set for temporary (session) credentials only.
	SessionToken string
}

// IsSession reports whether the credentials are temporary session
// credentials, which must be accompanied by their token.
func (c *Credentials) IsSession() bool {
	return c.SessionToken != ""
}

// A Provider supplies credentials. The client retrieves credentials
// once per call, so a provider may change the credentials it returns
// between calls.
//
// Implementations of Provider must be safe for concurrent use by
// multiple goroutines.
type Provider interface {
	Retrieve(ctx context.Context) (*Credentials, error)
}

// The ProviderFunc type is an adapter to allow the use of ordinary
// functions as credential providers.
type ProviderFunc func(ctx context.Context) (*Credentials, error)

// Retrieve calls f(ctx).
func (f ProviderFunc) Retrieve(ctx context.Context) (*Credentials, error) {
	return f(ctx)
}

// Static is a Provider that always returns the same credentials.
type Static Credentials

// Retrieve returns a copy of the static credentials.
func (s Static) Retrieve(_ context.Context) (*Credentials, error) {
	c := Credentials(s)
	return &c, nil
}

// Anonymous is a Provider that returns no credentials, so requests are
// sent unsigned.
var Anonymous Provider = ProviderFunc(func(_ context.Context) (*Credentials, error) {
	return nil, nil
})

// A Refreshing provider caches the credentials of an underlying source
// for a fixed time to live. When the cache expires, concurrent callers
// share a single retrieval from the source.
type Refreshing struct {
	source Provider
	ttl    time.Duration
	now    func() time.Time

	group   singleflight.Group
	lock    sync.RWMutex
	cached  *Credentials
	expires time.Time
}

// NewRefreshing returns a provider that caches credentials retrieved
// from source for ttl.
func NewRefreshing(source Provider, ttl time.Duration) *Refreshing {
	if source == nil {
		panic("s3x/credentials: nil source")
	}
	if ttl <= 0 {
		panic("s3x/credentials: ttl must be positive")
	}
	return &Refreshing{source: source, ttl: ttl, now: time.Now}
}

// Retrieve returns the cached credentials, retrieving fresh ones from
// the source if the cache is empty or expired.
func (p *Refreshing) Retrieve(ctx context.Context) (*Credentials, error) {
	if c := p.current(); c != nil {
		return c, nil
	}
	v, err, _ := p.group.Do("retrieve", func() (interface{}, error) {
		if c := p.current(); c != nil {
			return c, nil
		}
		c, err := p.source.Retrieve(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "s3x/credentials: refresh failed")
		}
		p.lock.Lock()
		p.cached = c
		p.expires = p.now().Add(p.ttl)
		p.lock.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credentials), nil
}

// Invalidate empties the cache so the next Retrieve goes to the source.
func (p *Refreshing) Invalidate() {
	p.lock.Lock()
	p.cached = nil
	p.lock.Unlock()
}

func (p *Refreshing) current() *Credentials {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.cached == nil || !p.now().Before(p.expires) {
		return nil
	}
	return p.cached
}
