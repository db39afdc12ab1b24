package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9090

[database]
type = "sqlite"
dsn = "/tmp/x.db"

[upload]
allowed_extensions = [".JSON", "txt"]
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.GetAddr())
	assert.Equal(t, "/tmp/x.db", cfg.Database.DSN)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, []string{"json", "txt"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxTotalSize)
	assert.Equal(t, 20, cfg.Listing.DefaultLimit)
	assert.Equal(t, 100, cfg.Listing.MaxLimit)
	assert.Equal(t, 25, cfg.Listing.TestCasePageLimit)
	assert.Equal(t, "allure-reports-bucket", cfg.Storage.ReportsBucket)
	assert.Equal(t, "allure", cfg.Report.AllureBinary)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://testops@db:5432/testops")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("ALLURE_BINARY", "/opt/allure/bin/allure")

	cfg := Default()
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "postgres://testops@db:5432/testops", cfg.Database.DSN)
	assert.Equal(t, "minio:9000", cfg.Storage.Endpoint)
	assert.Equal(t, "/opt/allure/bin/allure", cfg.Report.AllureBinary)
}

func TestLoadConfigOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o644))

	_, err := LoadConfigOrDefault(path)
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TESTOPS_DOTENV_PROBE=from-file\nLOG_LEVEL=debug\n"), 0o644))
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() { os.Unsetenv("TESTOPS_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("TESTOPS_DOTENV_PROBE"))
	// variables already set win over the file
	assert.Equal(t, "error", Default().Log.Level)
}
