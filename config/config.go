// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gogama/s3x"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix prefixes the environment variables read by Load. A double
// underscore separates key levels, so S3X_TIMEOUT__ATTEMPT sets
// timeout.attempt.
const EnvPrefix = "S3X_"

// Credential sources.
const (
	SourceStatic = "static"
	SourceAWS    = "aws"
)

// Metrics backends.
const (
	BackendNone       = "none"
	BackendOTel       = "otel"
	BackendPrometheus = "prometheus"
)

// Config holds the settings of an s3x client.
type Config struct {
	Endpoint          string            `koanf:"endpoint" validate:"omitempty,url"`
	MaxRetries        int               `koanf:"max_retries" validate:"min=0,max=30"`
	UserAgent         string            `koanf:"user_agent" validate:"required"`
	MetadataCacheSize int               `koanf:"metadata_cache_size" validate:"gt=0"`
	ServiceName       string            `koanf:"service_name"`
	Timeout           TimeoutConfig     `koanf:"timeout"`
	Credentials       CredentialsConfig `koanf:"credentials"`
	Log               LogConfig         `koanf:"log"`
	Metrics           MetricsConfig     `koanf:"metrics"`
}

// TimeoutConfig holds per-attempt timeout settings.
type TimeoutConfig struct {
	// Attempt bounds each attempt. Zero means no timeout.
	Attempt time.Duration `koanf:"attempt" validate:"min=0"`
	// PerMiB, if set, is added to Attempt for every mebibyte of
	// request body, so large uploads get longer.
	PerMiB time.Duration `koanf:"per_mib" validate:"min=0"`
}

// CredentialsConfig selects where signing credentials come from.
type CredentialsConfig struct {
	Source          string        `koanf:"source" validate:"oneof=static aws"`
	AccessKeyID     string        `koanf:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string        `koanf:"secret_access_key" validate:"required_with=AccessKeyID"`
	SessionToken    string        `koanf:"session_token"`
	Profile         string        `koanf:"profile"`
	Refresh         time.Duration `koanf:"refresh" validate:"min=0"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend string `koanf:"backend" validate:"oneof=none otel prometheus"`
}

// Default returns the configuration used when nothing overrides it.
func Default() map[string]any {
	return map[string]any{
		"max_retries":         3,
		"user_agent":          s3x.DefaultUserAgent,
		"metadata_cache_size": 50,
		"service_name":        "Amazon S3",
		"timeout.attempt":     "0s",
		"timeout.per_mib":     "0s",
		"credentials.source":  SourceStatic,
		"credentials.refresh": "0s",
		"log.level":           "info",
		"log.pretty":          false,
		"metrics.backend":     BackendNone,
	}
}

// Load loads configuration from, in increasing order of priority, the
// defaults, the YAML file at path, and S3X_ environment variables. An
// empty path skips the file. A path which does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Default(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "s3x/config: loading defaults")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "s3x/config: config file %s", path)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "s3x/config: loading %s", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "__", "."), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "s3x/config: loading environment")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "s3x/config: unmarshalling")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks cfg against its field constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return errors.Errorf("s3x/config: invalid %s: failed %q constraint", ve[0].Namespace(), ve[0].Tag())
		}
		return errors.Wrap(err, "s3x/config: invalid configuration")
	}
	return nil
}
