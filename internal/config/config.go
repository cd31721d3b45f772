// Package config defines the JSON configuration for a migration run and its
// validation. Validation reports all findings at once instead of failing on
// the first, so a config can be fixed in one pass (-validate mode).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Defaults applied by Normalize.
const (
	DefaultSampleSize       = 1000
	DefaultBatchSize        = 1000
	DefaultDecimalPrecision = 38
	DefaultDecimalScale     = 18
	DefaultWorkers          = 1
)

// Mismatch policies for values that violate a committed column type.
const (
	MismatchFallback = "fallback"
	MismatchReject   = "reject"
)

type Config struct {
	// Job tags logs and metrics. Optional.
	Job string `json:"job"`

	Source    Source    `json:"source"`
	Target    Target    `json:"target"`
	Migration Migration `json:"migration"`
}

type Source struct {
	URI      string `json:"uri"`
	Database string `json:"database"`

	// Collections to migrate. Empty means every collection in the database.
	Collections []string `json:"collections"`

	// ConnectTimeoutSeconds bounds the initial connect+ping. 0 means the
	// driver default.
	ConnectTimeoutSeconds int `json:"connect_timeout_seconds"`
}

type Target struct {
	// Kind selects the registered storage backend: "postgres" | "mssql" | "sqlite".
	Kind string `json:"kind"`

	// DSN may reference environment variables ($VAR), expanded at run time.
	DSN string `json:"dsn"`
}

type Migration struct {
	// SampleSize caps how many documents vote on the schema. <= 0 uses the
	// default; -1 is not a "sample everything" switch, use a large value.
	SampleSize int `json:"sample_size"`

	// BatchSize bounds rows accumulated before an insert flush.
	BatchSize int `json:"batch_size"`

	// Decimal column parameters used during inference.
	DecimalPrecision int `json:"decimal_precision"`
	DecimalScale     int `json:"decimal_scale"`

	// Recreate drops and recreates existing target tables.
	Recreate bool `json:"recreate"`

	// OnMismatch: "fallback" (default) stores a text rendering of values
	// that violate the committed type; "reject" skips the row.
	OnMismatch string `json:"on_mismatch"`

	// Workers > 1 migrates that many collections concurrently.
	Workers int `json:"workers"`
}

// Load reads and parses a config file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Normalize fills defaults in place. Call after Validate passed.
func Normalize(cfg *Config) {
	if cfg.Migration.SampleSize <= 0 {
		cfg.Migration.SampleSize = DefaultSampleSize
	}
	if cfg.Migration.BatchSize <= 0 {
		cfg.Migration.BatchSize = DefaultBatchSize
	}
	if cfg.Migration.DecimalPrecision <= 0 {
		cfg.Migration.DecimalPrecision = DefaultDecimalPrecision
	}
	if cfg.Migration.DecimalScale <= 0 {
		cfg.Migration.DecimalScale = DefaultDecimalScale
	}
	if cfg.Migration.OnMismatch == "" {
		cfg.Migration.OnMismatch = MismatchFallback
	}
	if cfg.Migration.Workers <= 0 {
		cfg.Migration.Workers = DefaultWorkers
	}
	cfg.Target.DSN = os.ExpandEnv(cfg.Target.DSN)
}

// Severity of a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, tied to the JSON path it concerns.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error (warnings alone do not
// block a run).
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks the raw (pre-Normalize) config and returns all findings.
func Validate(cfg Config) []Issue {
	var issues []Issue

	errf := func(path, format string, v ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, v...)})
	}
	warnf := func(path, format string, v ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, v...)})
	}

	if strings.TrimSpace(cfg.Source.URI) == "" {
		errf("source.uri", "must be set")
	}
	if strings.TrimSpace(cfg.Source.Database) == "" {
		errf("source.database", "must be set")
	}
	seen := make(map[string]struct{}, len(cfg.Source.Collections))
	for idx, c := range cfg.Source.Collections {
		if strings.TrimSpace(c) == "" {
			errf(fmt.Sprintf("source.collections[%d]", idx), "must not be empty")
			continue
		}
		if _, dup := seen[c]; dup {
			warnf(fmt.Sprintf("source.collections[%d]", idx), "duplicate collection %q", c)
		}
		seen[c] = struct{}{}
	}
	if cfg.Source.ConnectTimeoutSeconds < 0 {
		errf("source.connect_timeout_seconds", "must be >= 0")
	}

	if strings.TrimSpace(cfg.Target.Kind) == "" {
		errf("target.kind", "must be set")
	}
	if strings.TrimSpace(cfg.Target.DSN) == "" {
		errf("target.dsn", "must be set")
	}

	m := cfg.Migration
	if m.SampleSize < 0 {
		errf("migration.sample_size", "must be >= 0 (0 applies the default %d)", DefaultSampleSize)
	}
	if m.BatchSize < 0 {
		errf("migration.batch_size", "must be >= 0 (0 applies the default %d)", DefaultBatchSize)
	}
	if m.DecimalPrecision < 0 || m.DecimalPrecision > 38 {
		errf("migration.decimal_precision", "must be in [0, 38]")
	}
	if m.DecimalScale < 0 {
		errf("migration.decimal_scale", "must be >= 0")
	}
	if m.DecimalPrecision > 0 && m.DecimalScale > m.DecimalPrecision {
		errf("migration.decimal_scale", "must not exceed decimal_precision (%d)", m.DecimalPrecision)
	}
	switch m.OnMismatch {
	case "", MismatchFallback, MismatchReject:
	default:
		errf("migration.on_mismatch", "must be %q or %q, got %q", MismatchFallback, MismatchReject, m.OnMismatch)
	}
	if m.Workers < 0 {
		errf("migration.workers", "must be >= 0 (0 applies the default %d)", DefaultWorkers)
	}
	if m.Workers > 1 && len(cfg.Source.Collections) == 1 {
		warnf("migration.workers", "workers=%d has no effect with a single collection", m.Workers)
	}

	return issues
}
