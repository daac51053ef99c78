// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package s3x

import (
	"net/http"

	"github.com/gogama/s3x/fault"
	"github.com/gogama/s3x/metadata"
	"github.com/gogama/s3x/request"
	"github.com/pkg/errors"
)

// An Outcome classifies the response to an attempt.
type Outcome int

const (
	// Success means the response has a 2xx status.
	Success Outcome = iota
	// Redirect means the response is a 307 with a Location.
	Redirect
	// Failure means the response is an error response.
	Failure
)

var outcomeNames = []string{"Success", "Redirect", "Failure"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "Outcome(?)"
	}
	return outcomeNames[o]
}

// Classify decides what a response with the given status code and
// headers means for the call.
func Classify(statusCode int, h http.Header) Outcome {
	switch {
	case statusCode/100 == 2:
		return Success
	case statusCode == http.StatusTemporaryRedirect && h.Get("Location") != "":
		return Redirect
	default:
		return Failure
	}
}

// handleSuccess unmarshals a success response. Handler failures other
// than integrity check failures become ClientErrors.
func handleSuccess[T any](resp *request.Response, h ResponseHandler[T]) (T, metadata.ResponseMetadata, error) {
	md := metadata.FromHeader(resp.Header)
	result, err := h.Handle(resp)
	if err != nil {
		var zero T
		var ie *fault.IntegrityError
		if errors.As(err, &ie) {
			return zero, md, err
		}
		return zero, md, fault.NewClientError("s3x: unable to unmarshall response", err)
	}
	return result, md, nil
}

// handleError unmarshals an error response into a stamped ServiceError,
// or returns a ClientError if that is not possible.
func handleError(resp *request.Response, eh ErrorHandler, serviceName string) error {
	se, err := eh.Handle(resp)
	if err != nil || se == nil {
		switch {
		case resp.StatusCode == http.StatusRequestEntityTooLarge:
			se = &fault.ServiceError{
				Code:    "Request entity too large",
				Message: "Request entity too large",
				Type:    fault.Client,
			}
		case resp.StatusCode == http.StatusServiceUnavailable && resp.Reason == "Service Unavailable":
			se = &fault.ServiceError{
				Code:    "Service unavailable",
				Message: "Service unavailable",
				Type:    fault.Service,
			}
		default:
			if err == nil {
				err = errors.New("s3x: error handler returned no error")
			}
			return fault.NewClientError("s3x: unable to unmarshall error response", err)
		}
	}
	if se.RequestID == "" || se.HostID == "" {
		md := metadata.FromHeader(resp.Header)
		if se.RequestID == "" {
			se.RequestID = md.RequestID
		}
		if se.HostID == "" {
			se.HostID = md.HostID
		}
	}
	se.Stamp(resp.StatusCode, serviceName)
	return se
}
