package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "file", cfg.Mirror.Backend)
	assert.Equal(t, "5 0 1 1 *", cfg.Rollover.Schedule)
	assert.False(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.Ledger.Enabled)
	assert.Empty(t, cfg.Ledger.Token)
}

func TestLoad_LedgerTokenFromEnv(t *testing.T) {
	t.Setenv("HRMS_LEDGER_TOKEN", "s3cret")
	t.Setenv("HRMS_CLIENT_TOKEN", "s3cret")

	cfg, err := config.Load(writeConfig(t, "ledger:\n  enabled: false\n"))
	require.NoError(t, err)

	assert.False(t, cfg.Ledger.Enabled)
	assert.Equal(t, "s3cret", cfg.Ledger.Token)
	assert.Equal(t, "s3cret", cfg.Client.Token)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	// GIVEN: A file setting the port and an env var setting it differently
	path := writeConfig(t, "server:\n  port: 9000\ndb:\n  path: from-file.db\n")
	t.Setenv("HRMS_SERVER_PORT", "9100")

	// WHEN: Config is loaded
	cfg, err := config.Load(path)
	require.NoError(t, err)

	// THEN: The environment wins, the rest comes from the file
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "from-file.db", cfg.Database.Path)
}

func TestLoad_PolicyOverrides(t *testing.T) {
	path := writeConfig(t, `
policy:
  defaults:
    annual: 25
    vacation: 25
  carryover_caps:
    casual: 2
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	p := cfg.LeavePolicy()
	assert.Equal(t, "25", p.Defaults[leave.TypeAnnual].String())
	assert.Equal(t, "12", p.Defaults[leave.TypeCasual].String())
	assert.Equal(t, "2", p.CarryOverCaps[leave.TypeCasual].String())
	assert.Equal(t, "5", p.CarryOverCaps[leave.TypeAnnual].String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"unknown mirror backend", "mirror:\n  backend: s3\n"},
		{"unknown leave type", "policy:\n  defaults:\n    sabbatical: 30\n"},
		{"negative allowance", "policy:\n  defaults:\n    sick: -1\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n  brokers: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}
