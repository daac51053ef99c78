// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gogama/s3x/fault"
	"github.com/gogama/s3x/unmarshal"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	lock    sync.Mutex
	objects map[string][]byte
	meta    map[string]http.Header
	seen    []*http.Request
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	f := &fakeS3{objects: map[string][]byte{}, meta: map[string]http.Header{}}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server
}

func etag(b []byte) string {
	sum := md5.Sum(b)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.seen = append(f.seen, r)
	w.Header().Set("x-amz-request-id", "req-1")
	w.Header().Set("x-amz-id-2", "host-1")
	key := r.URL.Path
	switch r.Method {
	case "PUT":
		b, _ := io.ReadAll(r.Body)
		f.objects[key] = b
		h := http.Header{}
		for k, v := range r.Header {
			if strings.HasPrefix(strings.ToLower(k), "x-amz-meta-") {
				h[k] = v
			}
		}
		f.meta[key] = h
		w.Header().Set("ETag", etag(b))
		w.WriteHeader(http.StatusOK)
	case "GET", "HEAD":
		b, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == "GET" {
				_, _ = io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><RequestId>req-1</RequestId></Error>`)
			}
			return
		}
		for k, v := range f.meta[key] {
			w.Header()[k] = v
		}
		w.Header().Set("ETag", etag(b))
		if strings.HasSuffix(key, "/corrupt") {
			w.Header().Set("ETag", `"00000000000000000000000000000000"`)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Last-Modified", "Sun, 01 Jan 2006 12:00:00 GMT")
		w.WriteHeader(http.StatusOK)
		if r.Method == "GET" {
			_, _ = w.Write(b)
		}
	case "DELETE":
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCommands(t *testing.T) {
	t.Setenv("S3X_CREDENTIALS__ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("S3X_CREDENTIALS__SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3X_MAX_RETRIES", "0")
	f, server := newFakeS3(t)
	endpoint := "--endpoint=" + server.URL

	out, _, err := run(t, "hello, world", endpoint, "put", "bucket/key", "--content-type", "text/plain", "--meta", "author=john")
	require.NoError(t, err)
	var md unmarshal.ObjectMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &md))
	assert.Equal(t, strings.Trim(etag([]byte("hello, world")), `"`), md.ETag)
	assert.Equal(t, []byte("hello, world"), f.objects["/bucket/key"])

	f.lock.Lock()
	put := f.seen[len(f.seen)-1]
	f.lock.Unlock()
	assert.True(t, strings.HasPrefix(put.Header.Get("Authorization"), "AWS AKIDEXAMPLE:"))
	assert.NotEmpty(t, put.Header.Get("Date"))
	assert.Equal(t, "text/plain", put.Header.Get("Content-Type"))
	assert.Equal(t, "john", put.Header.Get("x-amz-meta-author"))
	assert.Contains(t, put.Header.Get("User-Agent"), "s3call/put")

	out, _, err = run(t, "", endpoint, "get", "bucket/key")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", out)

	out, _, err = run(t, "", endpoint, "get", "--verify", "bucket/key")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", out)

	out, _, err = run(t, "", endpoint, "head", "bucket/key")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &md))
	assert.Equal(t, "text/plain", md.ContentType)
	assert.Equal(t, "john", md.UserMetadata["author"])

	_, _, err = run(t, "", endpoint, "delete", "bucket/key")
	require.NoError(t, err)
	assert.NotContains(t, f.objects, "/bucket/key")

	_, _, err = run(t, "", endpoint, "get", "bucket/key")
	var se *fault.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "NoSuchKey", se.Code)
	assert.Equal(t, 404, se.StatusCode)
	assert.Equal(t, "req-1", se.RequestID)
}

func TestGet_Verify(t *testing.T) {
	t.Setenv("S3X_MAX_RETRIES", "0")
	f, server := newFakeS3(t)
	f.objects["/bucket/corrupt"] = []byte("data")

	_, _, err := run(t, "", "--endpoint="+server.URL, "get", "--verify", "bucket/corrupt")
	var ie *fault.IntegrityError
	require.True(t, errors.As(err, &ie))

	out, _, err := run(t, "", "--endpoint="+server.URL, "get", "bucket/corrupt")
	require.NoError(t, err)
	assert.Equal(t, "data", out)
}

func TestGet_Output(t *testing.T) {
	f, server := newFakeS3(t)
	f.objects["/bucket/key"] = []byte("to a file")
	path := filepath.Join(t.TempDir(), "out")

	out, _, err := run(t, "", "--endpoint="+server.URL, "get", "-o", path, "bucket/key")
	require.NoError(t, err)
	assert.Empty(t, out)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "to a file", string(b))
}

func TestPut_File(t *testing.T) {
	f, server := newFakeS3(t)
	path := filepath.Join(t.TempDir(), "in")
	require.NoError(t, os.WriteFile(path, []byte("from a file"), 0o600))

	_, _, err := run(t, "", "--endpoint="+server.URL, "put", "-f", path, "bucket/file")
	require.NoError(t, err)
	assert.Equal(t, []byte("from a file"), f.objects["/bucket/file"])
}

func TestVerbose(t *testing.T) {
	f, server := newFakeS3(t)
	f.objects["/bucket/key"] = []byte("x")

	_, errOut, err := run(t, "", "--endpoint="+server.URL, "-v", "head", "bucket/key")
	require.NoError(t, err)
	assert.Contains(t, errOut, "req-1")
	assert.Contains(t, errOut, "call_id")
}

func TestNoEndpoint(t *testing.T) {
	_, _, err := run(t, "", "head", "bucket/key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoint")
}
