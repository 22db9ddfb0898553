// Package config loads plantingcore settings from defaults, an optional YAML
// file and PLANTINGCORE_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"plantingcore/internal/blob"
	"plantingcore/internal/core"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PLANTINGCORE_STORAGE_DRIVER.
const EnvPrefix = "PLANTINGCORE"

const (
	keyStorageDriver    = "storage.driver"
	keySQLitePath       = "storage.sqlite_path"
	keyPostgresDSN      = "storage.postgres_dsn"
	keyArchiveDriver    = "archive.driver"
	keyArchiveFSRoot    = "archive.fs_root"
	keyS3Bucket         = "archive.s3.bucket"
	keyS3Region         = "archive.s3.region"
	keyS3Endpoint       = "archive.s3.endpoint"
	keyS3AccessKeyID    = "archive.s3.access_key_id"
	keyS3SecretKey      = "archive.s3.secret_access_key"
	keyS3SessionToken   = "archive.s3.session_token"
	keyS3PathStyle      = "archive.s3.path_style"
	keyS3Prefix         = "archive.s3.prefix"
	keyArchiveJobs      = "archive.concurrency"
	keyLogLevel         = "log.level"
	keyLogFormat        = "log.format"
	keyMetricsExporter  = "metrics.exporter"
	keyTraceExporter    = "trace.exporter"
	keyTraceServiceName = "trace.service_name"
)

// Metrics exporters.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Trace exporters.
const (
	TraceNone   = "none"
	TraceStdout = "stdout"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Storage core.StorageConfig
	Archive ArchiveConfig
	Log     LogConfig
	Metrics MetricsConfig
	Trace   TraceConfig
}

// ArchiveConfig selects the report archive backend.
type ArchiveConfig struct {
	Blob        blob.Config
	Concurrency int
}

// LogConfig controls the slog handler built by the CLI.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig selects how service metrics are exported.
type MetricsConfig struct {
	Exporter string
}

// TraceConfig selects the span exporter.
type TraceConfig struct {
	Exporter    string
	ServiceName string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyStorageDriver, string(core.StorageSQLite))
	v.SetDefault(keySQLitePath, "plantingcore.db")
	v.SetDefault(keyPostgresDSN, "")
	v.SetDefault(keyArchiveDriver, string(blob.DriverFilesystem))
	v.SetDefault(keyArchiveFSRoot, "./archive")
	v.SetDefault(keyS3Bucket, "")
	v.SetDefault(keyS3Region, "us-east-1")
	v.SetDefault(keyS3Endpoint, "")
	v.SetDefault(keyS3AccessKeyID, "")
	v.SetDefault(keyS3SecretKey, "")
	v.SetDefault(keyS3SessionToken, "")
	v.SetDefault(keyS3PathStyle, false)
	v.SetDefault(keyS3Prefix, "")
	v.SetDefault(keyArchiveJobs, 4)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "text")
	v.SetDefault(keyMetricsExporter, MetricsNone)
	v.SetDefault(keyTraceExporter, TraceNone)
	v.SetDefault(keyTraceServiceName, "plantingcore")
}

// Load resolves the configuration. A non-empty path must name a readable
// YAML file; environment variables override both file and defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(strings.ToLower(v.GetString(keyStorageDriver))),
			SQLitePath:  v.GetString(keySQLitePath),
			PostgresDSN: v.GetString(keyPostgresDSN),
		},
		Archive: ArchiveConfig{
			Blob: blob.Config{
				Driver: blob.Driver(strings.ToLower(v.GetString(keyArchiveDriver))),
				FSRoot: v.GetString(keyArchiveFSRoot),
				S3: blob.S3Config{
					Bucket:          v.GetString(keyS3Bucket),
					Region:          v.GetString(keyS3Region),
					Endpoint:        v.GetString(keyS3Endpoint),
					AccessKeyID:     v.GetString(keyS3AccessKeyID),
					SecretAccessKey: v.GetString(keyS3SecretKey),
					SessionToken:    v.GetString(keyS3SessionToken),
					PathStyle:       v.GetBool(keyS3PathStyle),
					Prefix:          v.GetString(keyS3Prefix),
				},
			},
			Concurrency: v.GetInt(keyArchiveJobs),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString(keyLogLevel)),
			Format: strings.ToLower(v.GetString(keyLogFormat)),
		},
		Metrics: MetricsConfig{Exporter: strings.ToLower(v.GetString(keyMetricsExporter))},
		Trace: TraceConfig{
			Exporter:    strings.ToLower(v.GetString(keyTraceExporter)),
			ServiceName: v.GetString(keyTraceServiceName),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Archive.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Archive.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("archive.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive driver %q", c.Archive.Blob.Driver))
	}
	if c.Archive.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("archive.concurrency must be positive, got %d", c.Archive.Concurrency))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	switch c.Metrics.Exporter {
	case MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("unknown metrics exporter %q", c.Metrics.Exporter))
	}
	switch c.Trace.Exporter {
	case TraceNone, TraceStdout:
	default:
		errs = append(errs, fmt.Errorf("unknown trace exporter %q", c.Trace.Exporter))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level as a slog level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}
