// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package credentials supplies the keys used to sign S3 requests.

Static credentials never change. Refreshing wraps another Provider and
caches what it returns for a fixed time, collapsing concurrent refreshes
into one. FromAWS adapts the credential chain of the AWS SDK.
*/
package credentials
