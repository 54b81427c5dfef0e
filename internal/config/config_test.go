package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "from-env", cfg.Auth.JWTSecret)
	require.Equal(t, 30*time.Second, cfg.Flags.CacheTTL.Std())
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  addr: ":9090"
auth:
  jwt_secret: "from-file"
  access_ttl: 5m
database:
  url: "postgres://file/db"
chain:
  rpc_url: "http://node:8545"
  chain_id: 11155111
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "from-file", cfg.Auth.JWTSecret)
	require.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL.Std())
	require.Equal(t, "postgres://env/db", cfg.Database.URL, "env should override file")
	require.Equal(t, int64(11155111), cfg.Chain.ChainID)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "auth:\n  jwt_secret: x\n  access_ttl: soon\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
