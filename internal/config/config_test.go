package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite://board.db", cfg.DatabaseURL)
	assert.Equal(t, 64, cfg.StreamBuffer)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\ndatabase_url: file://db.json\nstream_buffer: 8\n"), 0o644))
	t.Setenv("PORT", "9100")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STREAM_BUFFER", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "file://db.json", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.StreamBuffer)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := defaults()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "STREAM_BUFFER" {
			return "lots", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "STREAM_BUFFER")
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	require.NoError(t, cfg.Validate())

	cfg.DatabaseURL = "mysql://x"
	assert.Error(t, cfg.Validate())

	cfg = defaults()
	cfg.StreamBuffer = 0
	assert.Error(t, cfg.Validate())
}
