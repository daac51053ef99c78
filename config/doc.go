// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package config loads client settings from defaults, an optional YAML
file and S3X_ environment variables, and builds the client, logger,
credentials provider and metrics sink they describe.

An example file:

	endpoint: https://s3.us-west-2.amazonaws.com
	max_retries: 5
	timeout:
	  attempt: 30s
	  per_mib: 2s
	credentials:
	  source: aws
	  profile: default
	log:
	  level: debug
	  pretty: true
	metrics:
	  backend: prometheus
*/
package config
