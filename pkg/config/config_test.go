package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, LockBackendLocal, cfg.Engine.LockBackend)
	assert.Equal(t, StorePostgres, cfg.Engine.Store)
	assert.Equal(t, 2*time.Second, cfg.Engine.LockWait)
	assert.Equal(t, 5*time.Second, cfg.Engine.TxTimeout)
	assert.Equal(t, time.UTC, cfg.Report.Location())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, 25, cfg.DB.MaxConns)
	assert.Equal(t, "inventario-wac", cfg.DB.AppName)
}

func TestFromViper_Engine(t *testing.T) {
	v := viper.New()
	v.Set("ENGINE_LOCK_BACKEND", "Redis")
	v.Set("ENGINE_LOCK_WAIT_MS", "150")
	v.Set("ENGINE_TX_TIMEOUT_MS", "abc") // inválido: default
	v.Set("ENGINE_STORE", "memory")
	v.Set("REDIS_DB", "3")
	v.Set("REPORT_TIMEZONE", "America/Bogota")

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, LockBackendRedis, cfg.Engine.LockBackend)
	assert.Equal(t, 150*time.Millisecond, cfg.Engine.LockWait)
	assert.Equal(t, 5*time.Second, cfg.Engine.TxTimeout)
	assert.Equal(t, StoreMemory, cfg.Engine.Store)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "America/Bogota", cfg.Report.Location().String())
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"backend desconocido", "ENGINE_LOCK_BACKEND", "etcd"},
		{"store desconocido", "ENGINE_STORE", "sqlite"},
		{"ttl menor que tx", "ENGINE_LOCK_TTL_MS", "1000"},
		{"pool sin conexiones", "DB_MAX_CONNS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := fromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_DSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "wac", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/wac?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}
