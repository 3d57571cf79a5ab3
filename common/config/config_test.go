package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFile writes a temporary config file.
func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

// chdir switches the working directory and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

const sampleYAML = `
api:
  base_url: "https://hotel.example.com/api"
  user_agent: "staybook-test"
  timeout: "3s"
  refresh_path: "/auth/refresh"
  login_route: "/dang-nhap"
  disable_single_flight: true
store:
  backend: "redis"
  redis_addr: "10.0.0.5:6379"
  redis_db: 2
  redis_prefix: "hb:"
log:
  level: "debug"
  format: "json"
`

const minimalYAML = `
store:
  backend: "memory"
`

const brokenYAML = `
api: [unclosed
`

func TestLoad_WithExplicitPath_OK(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", sampleYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "https://hotel.example.com/api", cfg.API.BaseURL)
	require.Equal(t, "staybook-test", cfg.API.UserAgent)
	require.Equal(t, 3*time.Second, cfg.API.Timeout)
	require.Equal(t, "/dang-nhap", cfg.API.LoginRoute)
	require.True(t, cfg.API.DisableSingleFlight)
	require.Equal(t, BackendRedis, cfg.Store.Backend)
	require.Equal(t, "10.0.0.5:6379", cfg.Store.RedisAddr)
	require.Equal(t, 2, cfg.Store.RedisDB)
	require.Equal(t, "hb:", cfg.Store.RedisPrefix)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MinimalFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", minimalYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8080/api/v1", cfg.API.BaseURL)
	require.Equal(t, 10*time.Second, cfg.API.Timeout)
	require.Equal(t, "/auth/refresh", cfg.API.RefreshPath)
	require.Equal(t, "/login", cfg.API.LoginRoute)
	require.False(t, cfg.API.DisableSingleFlight)
	require.Equal(t, BackendMemory, cfg.Store.Backend)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", sampleYAML)
	t.Setenv("API_BASE_URL", "https://override.example.com")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "https://override.example.com", cfg.API.BaseURL)
	require.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "custom.yaml", minimalYAML)
	t.Setenv("CONFIG_PATH", cfgPath)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestLoad_LocalYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "local.yaml", minimalYAML)
	chdir(t, dir)
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestLoad_EnvOnly(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_FILE_PATH", "/tmp/tokens.json")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendFile, cfg.Store.Backend)
	require.Equal(t, "/tmp/tokens.json", cfg.Store.FilePath)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorContains(t, err, "stat failed")

	broken := writeFile(t, dir, "broken.yaml", brokenYAML)
	_, err = Load(broken)
	require.ErrorContains(t, err, "failed to read config")

	badBackend := writeFile(t, dir, "bad.yaml", "store:\n  backend: \"etcd\"\n")
	_, err = Load(badBackend)
	require.ErrorContains(t, err, `unknown store.backend "etcd"`)
}

func TestMustLoad_Panics(t *testing.T) {
	require.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
}
