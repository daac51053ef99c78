// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout decides how long each attempt of an S3 call may take.
//
// Plug a Policy into s3x.Client.TimeoutPolicy. Fixed gives every attempt
// the same allowance, Adaptive lengthens it after attempts time out,
// and Sized scales it with the size of the upload.
package timeout
