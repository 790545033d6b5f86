package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"-token-secret", "s3cr3t"})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:80", cfg.Addr)
	assert.Equal(t, "http://localhost:80", cfg.Url())
	assert.Equal(t, "formsite.sqlite", cfg.DBUrl)
	assert.Equal(t, 2*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Actions.Timeout)
	assert.Equal(t, "dir", cfg.Storage.Driver)
	assert.Equal(t, 128, cfg.Forms.CacheSize)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoadMissingSecret(t *testing.T) {
	_, err := Load(nil)
	assert.ErrorContains(t, err, "TokenSecret")
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
port: 8080
token_secret: from-file
db_url: file.sqlite
allowed_redirect_hosts: [example.com]
smtp:
  host: smtp.example.com
  from: forms@example.com
storage:
  driver: s3
  s3:
    bucket: submissions
    endpoint: http://localhost:9000
`)
	t.Setenv("FORMSITE_DB_URL", "env.sqlite")
	t.Setenv("FORMSITE_SMTP__PORT", "2525")

	cfg, err := Load([]string{"-config", path, "-port", "9090", "-debug"})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "from-file", cfg.TokenSecret)
	assert.Equal(t, "env.sqlite", cfg.DBUrl)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"example.com"}, cfg.AllowedRedirectHosts)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "http://localhost:9000", cfg.Storage.S3.Endpoint)
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, `
token_secret: x
log_format: xml
smtp:
  host: smtp.example.com
storage:
  driver: s3
`)
	_, err := Load([]string{"-config", path})
	require.Error(t, err)
	assert.ErrorContains(t, err, "LogFormat")
	assert.ErrorContains(t, err, "smtp.from")
	assert.ErrorContains(t, err, "storage.s3.bucket")
}

func TestLoadUnknownFlag(t *testing.T) {
	_, err := Load([]string{"-nope"})
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load([]string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "-token-secret", "x"})
	assert.Error(t, err)
}
