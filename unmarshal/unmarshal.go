// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package unmarshal

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/s3x"
	"github.com/gogama/s3x/fault"
	"github.com/gogama/s3x/request"
	"github.com/pkg/errors"
)

// Bytes reads the whole response body.
var Bytes s3x.ResponseHandler[[]byte] = s3x.HandlerFunc[[]byte](readAll)

func readAll(resp *request.Response) ([]byte, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "s3x/unmarshal: reading body")
	}
	return b, nil
}

// Stream returns the response body unread. The connection is left open
// and the caller must close the returned reader.
var Stream s3x.ResponseHandler[io.ReadCloser] = stream{}

type stream struct{}

func (stream) Handle(resp *request.Response) (io.ReadCloser, error) {
	return resp.Body, nil
}

func (stream) NeedsConnectionLeftOpen() bool {
	return true
}

// ObjectMetadata holds the object attributes the service returns in
// response headers.
type ObjectMetadata struct {
	ContentLength int64
	ContentType   string
	ETag          string
	LastModified  time.Time
	VersionID     string
	// UserMetadata holds the x-amz-meta- headers, keyed by lowercase
	// name without the prefix.
	UserMetadata map[string]string
}

const userMetaPrefix = "x-amz-meta-"

// Headers unmarshals object metadata from the response headers. It
// ignores the body, which makes it suitable for HEAD and PUT
// responses.
var Headers s3x.ResponseHandler[*ObjectMetadata] = s3x.HandlerFunc[*ObjectMetadata](headers)

func headers(resp *request.Response) (*ObjectMetadata, error) {
	h := resp.Header
	md := &ObjectMetadata{
		ContentLength: -1,
		ContentType:   h.Get("Content-Type"),
		ETag:          strings.Trim(h.Get("ETag"), `"`),
		VersionID:     h.Get("x-amz-version-id"),
		UserMetadata:  make(map[string]string),
	}
	if v := h.Get("Content-Length"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "s3x/unmarshal: bad Content-Length %q", v)
		}
		md.ContentLength = n
	}
	if v := h.Get("Last-Modified"); v != "" {
		t, err := http.ParseTime(v)
		if err != nil {
			return nil, errors.Wrapf(err, "s3x/unmarshal: bad Last-Modified %q", v)
		}
		md.LastModified = t
	}
	for k, vs := range h {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, userMetaPrefix) && len(vs) > 0 {
			md.UserMetadata[lk[len(userMetaPrefix):]] = vs[0]
		}
	}
	return md, nil
}

type errorDocument struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
	HostID    string   `xml:"HostId"`
}

// XMLError unmarshals an S3 XML error document. A response without a
// body, such as the response to a HEAD, yields an error whose code is
// the status line. Status codes below 500 are attributed to the
// caller, others to the service.
var XMLError s3x.ErrorHandler = s3x.HandlerFunc[*fault.ServiceError](xmlError)

func xmlError(resp *request.Response) (*fault.ServiceError, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "s3x/unmarshal: reading error body")
	}
	se := &fault.ServiceError{Type: errorType(resp.StatusCode)}
	if len(bytes.TrimSpace(b)) == 0 {
		se.Code = strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode)
		se.Message = resp.Reason
		if se.Message == "" {
			se.Message = http.StatusText(resp.StatusCode)
		}
		return se, nil
	}
	var doc errorDocument
	if err = xml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "s3x/unmarshal: parsing error document")
	}
	if doc.Code == "" {
		return nil, errors.New("s3x/unmarshal: error document has no code")
	}
	se.Code = doc.Code
	se.Message = doc.Message
	se.RequestID = doc.RequestID
	se.HostID = doc.HostID
	return se, nil
}

func errorType(statusCode int) fault.ErrorType {
	if statusCode < 500 {
		return fault.Client
	}
	return fault.Service
}

// MD5Check wraps h so that the body it returns is checked against the
// response's ETag, which for a single-part upload is the hex MD5 of the
// object. A mismatch yields a *fault.IntegrityError. ETags which are not
// plain MD5 digests, such as multipart ETags, are not checked. Do not
// use MD5Check for ranged GETs.
func MD5Check(h s3x.ResponseHandler[[]byte]) s3x.ResponseHandler[[]byte] {
	if h == nil {
		panic("s3x/unmarshal: nil handler")
	}
	return md5Check{h}
}

type md5Check struct {
	h s3x.ResponseHandler[[]byte]
}

func (c md5Check) Handle(resp *request.Response) ([]byte, error) {
	b, err := c.h.Handle(resp)
	if err != nil {
		return nil, err
	}
	etag := strings.ToLower(strings.Trim(resp.Header.Get("ETag"), `"`))
	if !isMD5(etag) {
		return b, nil
	}
	sum := md5.Sum(b)
	actual := hex.EncodeToString(sum[:])
	if actual != etag {
		return nil, &fault.IntegrityError{Algorithm: "MD5", Expected: etag, Actual: actual}
	}
	return b, nil
}

func (c md5Check) NeedsConnectionLeftOpen() bool {
	return c.h.NeedsConnectionLeftOpen()
}

func isMD5(s string) bool {
	if len(s) != 2*md5.Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
