package testsupport

import (
	"path/filepath"
	"testing"

	"drivesync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SpoolDir = filepath.Join(base, "spool")
	cfgVal.Paths.CredentialsFile = filepath.Join(base, "credentials.json")
	cfgVal.Paths.TokenFile = filepath.Join(base, "token.json")
	cfgVal.Retry.MaxAttempts = 2
	cfgVal.Retry.BaseDelayMS = 1
	cfgVal.Retry.MaxDelayMS = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithConflictPolicy sets the conflict decision policy on the test config.
func WithConflictPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conflicts.Policy = policy
	}
}

// WithNtfyTopic points notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
