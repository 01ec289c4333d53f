package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadReadsYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: sqlite
  dsn: "file:test.db"
kafka:
  brokers: ["k1:9092", "k2:9092"]
auth:
  jwt_secret: s3cret
business:
  max_retry_count: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "file:test.db", cfg.Database.DSN)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 3, cfg.Business.MaxRetryCount)

	// 未配置的项走默认值
	require.Equal(t, 30, cfg.Business.OrderTimeoutMinutes)
	require.Equal(t, "ewallet.notification", cfg.Kafka.Topic.Notification)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
auth:
  jwt_secret: from-file
`)
	t.Setenv("DATABASE_HOST", "db.override")
	t.Setenv("AUTH_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "db.override", cfg.Database.Host)
	require.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "x")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "mysql", cfg.Database.Driver)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	_, err := Load(path)
	require.Error(t, err)
}
