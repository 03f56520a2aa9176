// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const baseYAML = `
app:
  name: loan-workers
camunda:
  broker_address: localhost:26500
database:
  driver: postgres
  postgres:
    host: ${LOAN_TEST_DB_HOST}
    database: loans
    user: loan
  redis:
    enabled: true
    address: localhost:6379
workers:
  loan-create:
    enabled: true
loan:
  allow_same_status: false
`

// ==========================
// Loading Tests
// ==========================

func TestLoadFromFile_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("LOAN_TEST_DB_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	assert.Equal(t, "Loan Application", cfg.Loan.FormType)
	assert.Equal(t, MatchIdentity, cfg.Loan.PrerequisiteMatching)
	assert.False(t, cfg.Loan.AllowSameStatus)
	assert.Equal(t, 5*time.Minute, cfg.Loan.TemplateCacheDuration())
	assert.Equal(t, time.Minute, cfg.Loan.PermissionCacheDuration())
	assert.Equal(t, "loan-audit", cfg.Loan.AuditIndex)
	assert.Equal(t, "LOAN", cfg.Loan.PermissionModule)

	w := cfg.Workers["loan-create"]
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_EnvOverridesPolicy(t *testing.T) {
	t.Setenv("LOAN_TEST_DB_HOST", "db.internal")
	t.Setenv("LOAN_ALLOW_SAME_STATUS", "true")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)
	assert.True(t, cfg.Loan.AllowSameStatus)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// ==========================
// Validation Tests
// ==========================

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "memory driver needs no postgres",
			mutate: func(c *Config) { c.Database.Driver = "memory"; c.Database.Postgres = PostgresConfig{} },
		},
		{
			name:    "postgres host required",
			mutate:  func(c *Config) { c.Database.Postgres.Host = "" },
			wantErr: "database.postgres.host",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mongo" },
			wantErr: "database.driver",
		},
		{
			name:    "unknown matching strategy",
			mutate:  func(c *Config) { c.Loan.PrerequisiteMatching = "fuzzy" },
			wantErr: "prerequisite_matching",
		},
		{
			name:    "sns without topic",
			mutate:  func(c *Config) { c.Notifications.SNS.Enabled = true },
			wantErr: "topic_arn",
		},
		{
			name:    "elasticsearch enabled without address",
			mutate:  func(c *Config) { c.Database.Elasticsearch.Enabled = true },
			wantErr: "elasticsearch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Database: DatabaseConfig{
					Driver:   "postgres",
					Postgres: PostgresConfig{Host: "h", Database: "d", User: "u"},
				},
			}
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_FallsBackToDefaults(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{}}
	w := GetWorkerConfig(cfg, "loan-delete")
	assert.True(t, w.Enabled)
	assert.Equal(t, 30*time.Second, GetDuration(w.Timeout))
	assert.True(t, IsWorkerEnabled(cfg, "loan-delete"))
}

func TestRequireBroker(t *testing.T) {
	assert.Error(t, (&Config{}).RequireBroker())
	assert.NoError(t, (&Config{Camunda: CamundaConfig{BrokerAddress: "zeebe:26500"}}).RequireBroker())
}
