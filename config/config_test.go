// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogama/s3x"
	"github.com/gogama/s3x/body"
	"github.com/gogama/s3x/credentials"
	"github.com/gogama/s3x/metrics"
	"github.com/gogama/s3x/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "s3x.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.MaxRetries)
		assert.Equal(t, s3x.DefaultUserAgent, cfg.UserAgent)
		assert.Equal(t, 50, cfg.MetadataCacheSize)
		assert.Equal(t, "Amazon S3", cfg.ServiceName)
		assert.Equal(t, time.Duration(0), cfg.Timeout.Attempt)
		assert.Equal(t, SourceStatic, cfg.Credentials.Source)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Pretty)
		assert.Equal(t, BackendNone, cfg.Metrics.Backend)
	})
	t.Run("file", func(t *testing.T) {
		path := writeFile(t, `
endpoint: https://s3.us-west-2.amazonaws.com
max_retries: 5
timeout:
  attempt: 30s
  per_mib: 2s
credentials:
  source: aws
  profile: dev
log:
  level: debug
  pretty: true
metrics:
  backend: prometheus
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "https://s3.us-west-2.amazonaws.com", cfg.Endpoint)
		assert.Equal(t, 5, cfg.MaxRetries)
		assert.Equal(t, 30*time.Second, cfg.Timeout.Attempt)
		assert.Equal(t, 2*time.Second, cfg.Timeout.PerMiB)
		assert.Equal(t, SourceAWS, cfg.Credentials.Source)
		assert.Equal(t, "dev", cfg.Credentials.Profile)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Log.Pretty)
		assert.Equal(t, BackendPrometheus, cfg.Metrics.Backend)
		assert.Equal(t, 50, cfg.MetadataCacheSize)
	})
	t.Run("environment wins", func(t *testing.T) {
		path := writeFile(t, "max_retries: 5\n")
		t.Setenv("S3X_MAX_RETRIES", "7")
		t.Setenv("S3X_TIMEOUT__ATTEMPT", "2s")
		t.Setenv("S3X_CREDENTIALS__ACCESS_KEY_ID", "AKIDEXAMPLE")
		t.Setenv("S3X_CREDENTIALS__SECRET_ACCESS_KEY", "secret")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.MaxRetries)
		assert.Equal(t, 2*time.Second, cfg.Timeout.Attempt)
		assert.Equal(t, "AKIDEXAMPLE", cfg.Credentials.AccessKeyID)
		assert.Equal(t, "secret", cfg.Credentials.SecretAccessKey)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "max_retries: [\n"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"too many retries", "max_retries: 31\n"},
		{"negative retries", "max_retries: -1\n"},
		{"zero cache", "metadata_cache_size: 0\n"},
		{"bad endpoint", "endpoint: not a url\n"},
		{"bad source", "credentials:\n  source: vault\n"},
		{"key without secret", "credentials:\n  access_key_id: AKIDEXAMPLE\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad backend", "metrics:\n  backend: statsd\n"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := Load(writeFile(t, testCase.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "s3x/config: invalid")
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn", false)
	l.Info().Msg("hidden")
	l.Warn().Str("call_id", "abc").Msg("shown")

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "warn", event["level"])
	assert.Equal(t, "shown", event["message"])
	assert.Equal(t, "abc", event["call_id"])
	assert.Contains(t, event, "time")

	buf.Reset()
	l = NewLogger(&buf, "bogus", true)
	l.Debug().Msg("hidden")
	l.Info().Msg("pretty")
	assert.Contains(t, buf.String(), "pretty")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestConfig_NewClient(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.UserAgent = "tester/1.0"
	logger := NewLogger(&bytes.Buffer{}, "info", false)
	c := cfg.NewClient(logger)
	require.NotNil(t, c)
	assert.Same(t, logger, c.Logger)
	assert.Equal(t, "tester/1.0", c.UserAgent)
	assert.NotNil(t, c.RetryPolicy)
	assert.NotNil(t, c.TimeoutPolicy)
	require.NotNil(t, c.Metadata)
	assert.Equal(t, 50, c.Metadata.Capacity())

	put, err := request.New("PUT", "https://s3.amazonaws.com", "/bucket/key")
	require.NoError(t, err)
	put.Content = body.NewBytes(make([]byte, 3<<20))
	e := &request.Execution{Request: put}
	assert.Equal(t, time.Duration(0), c.TimeoutPolicy.Timeout(e))

	cfg.Timeout.Attempt = 5 * time.Second
	cfg.Timeout.PerMiB = time.Second
	c = cfg.NewClient(logger)
	assert.Equal(t, 8*time.Second, c.TimeoutPolicy.Timeout(e))
}

func TestConfig_CredentialsProvider(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		cfg := &Config{}
		p, err := cfg.CredentialsProvider()
		require.NoError(t, err)
		c, err := p.Retrieve(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, c)
	})
	t.Run("static", func(t *testing.T) {
		cfg := &Config{Credentials: CredentialsConfig{
			Source:          SourceStatic,
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			SessionToken:    "token",
		}}
		p, err := cfg.CredentialsProvider()
		require.NoError(t, err)
		c, err := p.Retrieve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &credentials.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			SessionToken:    "token",
		}, c)
	})
	t.Run("refreshing", func(t *testing.T) {
		cfg := &Config{Credentials: CredentialsConfig{
			Source:          SourceStatic,
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			Refresh:         time.Minute,
		}}
		p, err := cfg.CredentialsProvider()
		require.NoError(t, err)
		assert.IsType(t, &credentials.Refreshing{}, p)
	})
	t.Run("aws", func(t *testing.T) {
		cfg := &Config{Credentials: CredentialsConfig{Source: SourceAWS}}
		p, err := cfg.CredentialsProvider()
		require.NoError(t, err)
		assert.NotNil(t, p)
	})
	t.Run("unknown", func(t *testing.T) {
		cfg := &Config{Credentials: CredentialsConfig{Source: "vault"}}
		_, err := cfg.CredentialsProvider()
		assert.Error(t, err)
	})
}

func TestConfig_MetricsSink(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		s, err := (&Config{}).MetricsSink(nil)
		require.NoError(t, err)
		assert.NotNil(t, s)
	})
	t.Run("otel", func(t *testing.T) {
		s, err := (&Config{Metrics: MetricsConfig{Backend: BackendOTel}}).MetricsSink(nil)
		require.NoError(t, err)
		assert.IsType(t, &metrics.OTelSink{}, s)
	})
	t.Run("prometheus", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		s, err := (&Config{Metrics: MetricsConfig{Backend: BackendPrometheus}}).MetricsSink(reg)
		require.NoError(t, err)
		assert.IsType(t, &metrics.PrometheusSink{}, s)
		s.Publish(context.Background(), metrics.New("id", "Amazon S3", time.Now()))
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := (&Config{Metrics: MetricsConfig{Backend: "statsd"}}).MetricsSink(nil)
		assert.Error(t, err)
	})
}
