// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package signer authenticates requests to the object storage service.

S3Signer implements the S3 HMAC-SHA1 scheme. The client invokes the
signer once per attempt, so a retry or a redirect is always signed
afresh:

	ec := &s3x.ExecutionContext{
		Signer:      &signer.S3Signer{},
		Credentials: credentials.Static{AccessKeyID: akid, SecretAccessKey: secret},
	}
*/
package signer
