// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package metrics accumulates per-call counters and timers and publishes
them when the call ends.

The client finalizes each call's Metrics exactly once, on success or
failure, and publishes it to the Sink in the call's ExecutionContext.
Two sinks are provided: OTelSink records OpenTelemetry instruments, and
PrometheusSink registers Prometheus collectors.

	sink, err := metrics.NewOTelSink(otel.GetMeterProvider())
	...
	ec := &s3x.ExecutionContext{Metrics: sink}
*/
package metrics
