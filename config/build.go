// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"io"
	"os"
	"time"

	"github.com/gogama/s3x"
	"github.com/gogama/s3x/credentials"
	"github.com/gogama/s3x/metadata"
	"github.com/gogama/s3x/metrics"
	"github.com/gogama/s3x/retry"
	"github.com/gogama/s3x/timeout"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

// NewLogger returns a logger writing to w at the given level. An
// unknown level means info. If pretty is true, output is formatted for
// humans.
func NewLogger(w io.Writer, level string, pretty bool) *zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(w).With().Timestamp().Logger()

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)
	return &l
}

// NewClient builds a client from cfg, logging to logger.
func (cfg *Config) NewClient(logger *zerolog.Logger) *s3x.Client {
	tp := timeout.Fixed(cfg.Timeout.Attempt)
	if cfg.Timeout.PerMiB > 0 {
		tp = timeout.Sized(cfg.Timeout.Attempt, cfg.Timeout.PerMiB)
	}
	return &s3x.Client{
		RetryPolicy:   retry.WithMaxRetries(cfg.MaxRetries),
		TimeoutPolicy: tp,
		Logger:        logger,
		UserAgent:     cfg.UserAgent,
		Metadata:      metadata.NewCache(cfg.MetadataCacheSize),
	}
}

// CredentialsProvider returns the provider selected by the credentials
// section. With the static source and no keys, requests are anonymous.
// A positive refresh interval caches the provider's credentials for
// that long.
func (cfg *Config) CredentialsProvider() (credentials.Provider, error) {
	cc := cfg.Credentials
	var p credentials.Provider
	switch cc.Source {
	case SourceStatic, "":
		if cc.AccessKeyID == "" {
			return credentials.Anonymous, nil
		}
		p = credentials.Static{
			AccessKeyID:     cc.AccessKeyID,
			SecretAccessKey: cc.SecretAccessKey,
			SessionToken:    cc.SessionToken,
		}
	case SourceAWS:
		p = credentials.DefaultAWSChain(cc.Profile)
	default:
		return nil, errors.Errorf("s3x/config: unknown credentials source %q", cc.Source)
	}
	if cc.Refresh > 0 {
		p = credentials.NewRefreshing(p, cc.Refresh)
	}
	return p, nil
}

// MetricsSink returns the sink selected by the metrics section. The
// otel backend uses the global meter provider. The prometheus backend
// registers its collectors with reg, or with the default registerer if
// reg is nil.
func (cfg *Config) MetricsSink(reg prometheus.Registerer) (metrics.Sink, error) {
	switch cfg.Metrics.Backend {
	case BackendNone, "":
		return metrics.Discard, nil
	case BackendOTel:
		s, err := metrics.NewOTelSink(otel.GetMeterProvider())
		if err != nil {
			return nil, errors.Wrap(err, "s3x/config: creating otel sink")
		}
		return s, nil
	case BackendPrometheus:
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		return metrics.NewPrometheusSink(reg), nil
	default:
		return nil, errors.Errorf("s3x/config: unknown metrics backend %q", cfg.Metrics.Backend)
	}
}
