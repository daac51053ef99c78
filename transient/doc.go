// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies errors from request attempts as
// transient or non-transient. This is handy for writing retry policies,
// and for other purposes such as bucketing error metrics.
//
// Transport failures, timeouts and connection errors are transient, as
// are service errors with status 500 or 503 and service errors whose
// code signals throttling.
package transient
