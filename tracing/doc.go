// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package tracing provides an interceptor which wraps each call in an
// OpenTelemetry client span.
package tracing
