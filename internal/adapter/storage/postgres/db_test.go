package postgres

import (
	"testing"
	"time"

	"personal-ledger/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ledger",
		Password: "secret",
		DBName:   "personal_ledger",
		SSLMode:  "disable",
	}
}

func TestPoolConfig_LedgerSessionSettings(t *testing.T) {
	cfg := testDatabaseConfig()
	cfg.MaxConns = 20
	cfg.MinConns = 5
	cfg.ConnMaxLifetime = 30 * time.Minute
	cfg.IdleTxTimeout = 30 * time.Second

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(20), poolCfg.MaxConns)
	assert.Equal(t, int32(5), poolCfg.MinConns)
	assert.Equal(t, 30*time.Minute, poolCfg.MaxConnLifetime)
	assert.Equal(t, "personal_ledger", poolCfg.ConnConfig.Database)

	params := poolCfg.ConnConfig.RuntimeParams
	assert.Equal(t, "personal-ledger", params["application_name"])
	assert.Equal(t, "UTC", params["timezone"])
	assert.Equal(t, "30000", params["idle_in_transaction_session_timeout"])
}

func TestPoolConfig_MinConnsCappedByMax(t *testing.T) {
	cfg := testDatabaseConfig()
	cfg.MaxConns = 4
	cfg.MinConns = 10

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(4), poolCfg.MinConns)
}

func TestPoolConfig_NoIdleTimeoutWhenDisabled(t *testing.T) {
	poolCfg, err := poolConfig(testDatabaseConfig())
	require.NoError(t, err)
	assert.NotContains(t, poolCfg.ConnConfig.RuntimeParams, "idle_in_transaction_session_timeout")
}

func TestPoolConfig_InvalidDSN(t *testing.T) {
	cfg := testDatabaseConfig()
	cfg.SSLMode = "bogus"

	_, err := poolConfig(cfg)
	assert.ErrorContains(t, err, "parsing database config")
}

// NewPool and Migrate need a live PostgreSQL; see integration_test.go.
