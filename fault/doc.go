// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package fault defines the error kinds returned by the s3x client.

A ClientError has a local cause. A ServiceError carries an error
response from the service. An IntegrityError reports content corrupted
in transit. Use errors.As to tell them apart:

	var se *fault.ServiceError
	if errors.As(err, &se) && se.Code == "NoSuchKey" {
		...
	}
*/
package fault
