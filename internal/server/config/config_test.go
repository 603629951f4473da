package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(defaults(), cfg))
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "server.json", `{
		"endpoint_addr_grpc": ":6000",
		"secret_key": "from-json",
		"access_token_validity_duration": "2h",
		"s3_bucket": "exports"
	}`)

	cfg, err := Load([]string{"-c", path})
	require.NoError(t, err)

	want := defaults()
	want.EndpointAddrGRPC = ":6000"
	want.SecretKey = "from-json"
	want.AccessTokenValidityDuration = 2 * time.Hour
	want.S3Bucket = "exports"
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestLoad_YAMLFileThenFlags(t *testing.T) {
	path := writeFile(t, "server.yaml", `
endpoint_addr_grpc: ":7000"
database_dsn: "postgres://db/notes"
snapshot_url_validity: 5m
log_level: debug
`)

	cfg, err := Load([]string{"-config", path, "-a", ":8000", "-t", "10m", "-unknown", "x"})
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.EndpointAddrGRPC)
	assert.Equal(t, "postgres://db/notes", cfg.DatabaseDSN)
	assert.Equal(t, 5*time.Minute, cfg.SnapshotURLValidity)
	assert.Equal(t, 10*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]string{"-c", filepath.Join(t.TempDir(), "absent.json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	bad := writeFile(t, "bad.json", `{"access_token_validity_duration": "soon"}`)
	_, err = Load([]string{"-c", bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")

	_, err = Load([]string{"-t", "forever"})
	require.Error(t, err)
}

func TestSlogLevel_Unknown(t *testing.T) {
	c := &Config{LogLevel: "chatty"}
	assert.Equal(t, slog.LevelInfo, c.SlogLevel())
}
