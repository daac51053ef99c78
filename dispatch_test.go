// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package s3x

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gogama/s3x/fault"
	"github.com/gogama/s3x/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	loc := http.Header{"Location": {"https://elsewhere/"}}
	testCases := []struct {
		status   int
		h        http.Header
		expected Outcome
	}{
		{200, nil, Success},
		{204, nil, Success},
		{206, nil, Success},
		{299, nil, Success},
		{307, loc, Redirect},
		{307, nil, Failure},
		{301, loc, Failure},
		{302, loc, Failure},
		{304, nil, Failure},
		{400, nil, Failure},
		{503, loc, Failure},
	}
	for _, testCase := range testCases {
		h := testCase.h
		if h == nil {
			h = http.Header{}
		}
		assert.Equal(t, testCase.expected, Classify(testCase.status, h), "status %d", testCase.status)
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "Redirect", Redirect.String())
	assert.Equal(t, "Failure", Failure.String())
	assert.Equal(t, "Outcome(?)", Outcome(-1).String())
	assert.Equal(t, "Outcome(?)", Outcome(3).String())
}

func dispatchResponse(status int, reason, b string, h http.Header) *request.Response {
	if h == nil {
		h = http.Header{}
	}
	return &request.Response{
		StatusCode: status,
		Reason:     reason,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(b)),
	}
}

func TestHandleSuccess(t *testing.T) {
	h := http.Header{"X-Amz-Request-Id": {"rid"}, "X-Amz-Id-2": {"hid"}}
	b, md, err := handleSuccess(dispatchResponse(200, "OK", "body", h), bytesHandler)
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), b)
	assert.Equal(t, "rid", md.RequestID)
	assert.Equal(t, "hid", md.HostID)

	cause := errors.New("bad xml")
	var failing ResponseHandler[int] = HandlerFunc[int](func(*request.Response) (int, error) {
		return 7, cause
	})
	n, md, err := handleSuccess(dispatchResponse(200, "OK", "", h), failing)
	assert.Equal(t, 0, n)
	assert.Equal(t, "rid", md.RequestID)
	var ce *fault.ClientError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, cause)
}

func TestHandleError(t *testing.T) {
	t.Run("stamped", func(t *testing.T) {
		h := http.Header{"X-Amz-Request-Id": {"rid"}, "X-Amz-Id-2": {"hid"}}
		err := handleError(dispatchResponse(403, "Forbidden", "AccessDenied", h), codeErrorHandler, "Amazon S3")
		var se *fault.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "AccessDenied", se.Code)
		assert.Equal(t, 403, se.StatusCode)
		assert.Equal(t, "Amazon S3", se.ServiceName)
		assert.Equal(t, "rid", se.RequestID)
		assert.Equal(t, "hid", se.HostID)
		assert.NotEmpty(t, se.StackTrace())
	})
	t.Run("handler request ID wins", func(t *testing.T) {
		var eh ErrorHandler = HandlerFunc[*fault.ServiceError](func(*request.Response) (*fault.ServiceError, error) {
			return &fault.ServiceError{Code: "NoSuchKey", RequestID: "doc"}, nil
		})
		err := handleError(dispatchResponse(404, "Not Found", "", http.Header{"X-Amz-Request-Id": {"hdr"}}), eh, "")
		var se *fault.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "doc", se.RequestID)
	})
	t.Run("nil error", func(t *testing.T) {
		var eh ErrorHandler = HandlerFunc[*fault.ServiceError](func(*request.Response) (*fault.ServiceError, error) {
			return nil, nil
		})
		err := handleError(dispatchResponse(400, "Bad Request", "", nil), eh, "")
		var ce *fault.ClientError
		require.ErrorAs(t, err, &ce)
	})
	t.Run("service unavailable", func(t *testing.T) {
		err := handleError(dispatchResponse(503, "Service Unavailable", "", nil), codeErrorHandler, "")
		var se *fault.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "Service unavailable", se.Message)
		assert.Equal(t, fault.Service, se.Type)
	})
	t.Run("service unavailable needs exact reason", func(t *testing.T) {
		for _, reason := range []string{"SERVICE UNAVAILABLE", "service unavailable", ""} {
			err := handleError(dispatchResponse(503, reason, "", nil), codeErrorHandler, "")
			var ce *fault.ClientError
			assert.ErrorAs(t, err, &ce, "reason %q", reason)
		}
	})
}
