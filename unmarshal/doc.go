// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package unmarshal provides response handlers for common S3 responses:
// whole bodies, streamed bodies, object metadata headers and XML error
// documents.
package unmarshal
