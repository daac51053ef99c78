// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package body provides request bodies that can be replayed byte for byte
when a request attempt is retried.

A Content is one of three kinds. File content reopens its file on reset
and can always be replayed. Buffered content keeps a bounded window of
bytes in memory. NonReplayable content cannot be replayed once a byte
has been read.

	c, err := body.NewFile("/tmp/upload.bin", 0)
	...
	c.Mark()
	// send...
	if err := c.Reset(); err != nil {
		// give up: the body cannot be replayed
	}
*/
package body
