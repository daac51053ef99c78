// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"net/http"
	urlpkg "net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/s3x/body"
	"github.com/pkg/errors"
)

// A Request describes one logical call to the object storage service.
//
// Unlike an http.Request, which is good for a single attempt, a Request
// survives every attempt of a call: the client converts it into a fresh
// http.Request for each attempt. A Request belongs to one call at a
// time. The client snapshots Header and Params before the first attempt
// and restores them before every later attempt, so changes made while
// signing or sending an attempt never leak into the next one.
type Request struct {
	// Method specifies the HTTP method (GET, PUT, DELETE, etc.).
	Method string

	// Endpoint is the scheme and host of the service, for example
	// https://s3.amazonaws.com. A redirect replaces it.
	Endpoint *urlpkg.URL

	// ResourcePath is the unescaped path of the resource, starting with
	// "/", for example "/bucket/photos/cat.jpg".
	ResourcePath string

	// Header holds request headers. Each name appears at most once;
	// use SetHeader and HeaderValue to work with names regardless of
	// case.
	Header map[string]string

	// Params holds query parameters. A parameter with an empty value
	// is sent as a bare name, as in "?acl".
	Params map[string]string

	// Content is the request body, or nil if there is none.
	Content *body.Content

	// Original is the caller's high-level call object. The client uses
	// it as the key when caching response metadata, so it should be
	// a comparable value, typically a pointer.
	Original interface{}

	// TimeOffset is the difference between the local clock and the
	// service clock. Signers subtract it from the local time.
	TimeOffset time.Duration

	// ServiceName names the service, for example "Amazon S3". It is
	// recorded on errors and metrics.
	ServiceName string

	data context.Context
}

// A Snapshot is a copy of the headers and parameters of a Request.
type Snapshot struct {
	header map[string]string
	params map[string]string
}

// New returns a new Request for the given method, endpoint and resource
// path. An empty method means GET.
func New(method, endpoint, resourcePath string) (*Request, error) {
	if method == "" {
		method = "GET"
	}
	if !validMethod(method) {
		return nil, errors.Errorf("s3x/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "s3x/request: invalid endpoint")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("s3x/request: endpoint %q needs a scheme and host", endpoint)
	}
	u.Host = removeEmptyPort(u.Host)
	return &Request{
		Method:       method,
		Endpoint:     u,
		ResourcePath: cleanResourcePath(resourcePath),
		Header:       make(map[string]string),
		Params:       make(map[string]string),
	}, nil
}

func cleanResourcePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// SetHeader sets the named header, replacing any header whose name
// differs only in case.
func (r *Request) SetHeader(name, value string) {
	if r.Header == nil {
		r.Header = make(map[string]string)
	}
	r.DelHeader(name)
	r.Header[name] = value
}

// DelHeader removes the named header, ignoring case.
func (r *Request) DelHeader(name string) {
	for k := range r.Header {
		if strings.EqualFold(k, name) {
			delete(r.Header, k)
		}
	}
}

// HeaderValue returns the value of the named header, ignoring case, and
// whether it was present.
func (r *Request) HeaderValue(name string) (string, bool) {
	if v, ok := r.Header[name]; ok {
		return v, true
	}
	for k, v := range r.Header {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// SetParam sets a query parameter.
func (r *Request) SetParam(name, value string) {
	if r.Params == nil {
		r.Params = make(map[string]string)
	}
	r.Params[name] = value
}

// EscapedResourcePath returns the resource path escaped for use in a
// URL. Slashes are preserved.
func (r *Request) EscapedResourcePath() string {
	return (&urlpkg.URL{Path: r.ResourcePath}).EscapedPath()
}

// URL returns the full URL of the request: the endpoint, the resource
// path and the query parameters sorted by name.
func (r *Request) URL() *urlpkg.URL {
	u := *r.Endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + r.ResourcePath
	u.RawPath = ""
	u.RawQuery = encodeParams(r.Params)
	u.Fragment = ""
	return &u
}

func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(urlpkg.QueryEscape(k))
		if v := params[k]; v != "" {
			b.WriteByte('=')
			b.WriteString(urlpkg.QueryEscape(v))
		}
	}
	return b.String()
}

// Retarget points the request at the redirect location u. The endpoint
// becomes u's scheme and host. If u has a path, it becomes the resource
// path.
func (r *Request) Retarget(u *urlpkg.URL) {
	r.Endpoint = &urlpkg.URL{Scheme: u.Scheme, User: u.User, Host: removeEmptyPort(u.Host)}
	if u.Path != "" {
		r.ResourcePath = u.Path
	}
}

// Snapshot copies the request's headers and parameters.
func (r *Request) Snapshot() Snapshot {
	return Snapshot{header: copyMap(r.Header), params: copyMap(r.Params)}
}

// Restore replaces the request's headers and parameters with copies of
// those in s.
func (r *Request) Restore(s Snapshot) {
	r.Header = copyMap(s.header)
	r.Params = copyMap(s.params)
}

func copyMap(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// ToHTTP converts the request into an http.Request for one attempt. The
// context of the new request is set to ctx, which may not be nil.
//
// The body of the returned request is a *body.Reader over Content.
// Closing it does not close Content, which must outlive the attempt.
// The caller must detach the reader before using Content again.
func (r *Request) ToHTTP(ctx context.Context) (*http.Request, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL().String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "s3x/request: building HTTP request")
	}
	contentLength := int64(-1)
	for k, v := range r.Header {
		if strings.EqualFold(k, "Content-Length") {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return nil, errors.Errorf("s3x/request: invalid Content-Length %q", v)
			}
			contentLength = n
			continue
		}
		req.Header.Set(k, v)
	}
	if r.Content == nil {
		return req, nil
	}
	if contentLength < 0 {
		contentLength = r.Content.Len()
		if contentLength >= 0 {
			contentLength -= r.Content.Offset()
		}
	}
	if contentLength == 0 {
		req.Body = http.NoBody
		return req, nil
	}
	req.Body = r.Content.NewReader()
	req.ContentLength = contentLength
	return req, nil
}

// SetValue stores arbitrary data on the request, for example state
// an interceptor needs to carry from BeforeRequest to AfterSuccess.
//
// The key must follow the same rules as the key parameter in
// context.WithValue: it may not be nil, it must be comparable, and it
// should not be of a built-in type.
func (r *Request) SetValue(key, value interface{}) {
	ctx := r.data
	if ctx == nil {
		ctx = context.Background()
	}

	r.data = context.WithValue(ctx, key, value)
}

// Value returns the data value stored on the request for key, or nil.
func (r *Request) Value(key interface{}) interface{} {
	if r.data == nil {
		return nil
	}

	return r.data.Value(key)
}
