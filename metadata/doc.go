// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package metadata records the correlation identifiers the service
// returns with each successful response, keyed by the caller's original
// call object.
package metadata
