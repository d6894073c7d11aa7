// Package config loads and validates vaultsync configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// VAULTSYNC_* environment variables. The merged result is checked against an
// embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vaultsync/internal/engine"
	"github.com/roach88/vaultsync/internal/schedule"
	"github.com/roach88/vaultsync/internal/secret"
)

//go:embed schema.cue
var schemaSource string

// Environment variables that override file values.
const (
	EnvSecretsPrefix       = "VAULTSYNC_SECRETS_PREFIX"
	EnvSourceConnection    = "VAULTSYNC_SOURCE_CONNECTION"
	EnvNotifyOnFailure     = "VAULTSYNC_NOTIFY_ON_FAILURE"
	EnvNotificationChannel = "VAULTSYNC_NOTIFICATION_CHANNEL"
	EnvTriggerSchedule     = "VAULTSYNC_TRIGGER_SCHEDULE"
	EnvEncryptionKeyID     = "VAULTSYNC_ENCRYPTION_KEY_ID"
	EnvRegion              = "VAULTSYNC_REGION"
	EnvBackend             = "VAULTSYNC_BACKEND"
	EnvConcurrency         = "VAULTSYNC_CONCURRENCY"
)

// Backend selects the source and sink implementations.
type Backend string

const (
	// BackendAWS reads from Vault and writes to Secrets Manager.
	BackendAWS Backend = "aws"
	// BackendLocal uses one SQLite database for both sides.
	BackendLocal Backend = "local"
)

// Config is the process configuration.
type Config struct {
	SecretsPrefix string `yaml:"secrets_prefix" json:"secrets_prefix"`
	// SourceConnectionLocator names the sink entry holding the Vault
	// credential, or the SQLite path for the local backend.
	SourceConnectionLocator    string  `yaml:"source_connection_locator" json:"source_connection_locator"`
	NotifyOnFailure            bool    `yaml:"notify_on_failure" json:"notify_on_failure"`
	NotificationChannelLocator string  `yaml:"notification_channel_locator,omitempty" json:"notification_channel_locator,omitempty"`
	TriggerSchedule            string  `yaml:"trigger_schedule" json:"trigger_schedule"`
	EncryptionKeyID            string  `yaml:"encryption_key_id,omitempty" json:"encryption_key_id,omitempty"`
	Region                     string  `yaml:"region,omitempty" json:"region,omitempty"`
	Backend                    Backend `yaml:"backend" json:"backend"`
	Concurrency                int     `yaml:"concurrency" json:"concurrency"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		TriggerSchedule: schedule.DefaultExpression,
		Backend:         BackendAWS,
		Concurrency:     engine.DefaultConcurrency,
	}
}

// Load builds the configuration from path (optional) and the environment,
// then validates it. getenv is usually os.Getenv.
//
// Every failure is CONFIGURATION_INVALID.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, secret.NewConfigurationInvalid(fmt.Errorf("read config: %w", err))
		}
		if err := cfg.decode(data); err != nil {
			return nil, secret.NewConfigurationInvalid(fmt.Errorf("parse %s: %w", path, err))
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, secret.NewConfigurationInvalid(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := []struct {
		env string
		dst *string
	}{
		{EnvSecretsPrefix, &c.SecretsPrefix},
		{EnvSourceConnection, &c.SourceConnectionLocator},
		{EnvNotificationChannel, &c.NotificationChannelLocator},
		{EnvTriggerSchedule, &c.TriggerSchedule},
		{EnvEncryptionKeyID, &c.EncryptionKeyID},
		{EnvRegion, &c.Region},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(getenv(s.env)); v != "" {
			*s.dst = v
		}
	}

	if v := strings.TrimSpace(getenv(EnvBackend)); v != "" {
		c.Backend = Backend(strings.ToLower(v))
	}
	if raw := getenv(EnvNotifyOnFailure); raw != "" {
		v, ok := parseBool(raw)
		if !ok {
			return fmt.Errorf("%s: invalid boolean %q", EnvNotifyOnFailure, raw)
		}
		c.NotifyOnFailure = v
	}
	if raw := strings.TrimSpace(getenv(EnvConcurrency)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvConcurrency, raw)
		}
		c.Concurrency = n
	}
	return nil
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Validate checks the configuration against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return secret.NewConfigurationInvalid(formatCUEError(err))
	}
	return nil
}

// Schedule parses the trigger schedule.
func (c *Config) Schedule() (schedule.Schedule, error) {
	s, err := schedule.Parse(c.TriggerSchedule)
	if err != nil {
		return schedule.Schedule{}, secret.NewConfigurationInvalid(err)
	}
	return s, nil
}

// formatCUEError flattens CUE's error list into one line per failing field.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := fieldPath(e.Path()); path != "" {
			msg = path + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldPath(path []string) string {
	if len(path) > 0 && path[0] == "#Config" {
		path = path[1:]
	}
	return strings.Join(path, ".")
}
