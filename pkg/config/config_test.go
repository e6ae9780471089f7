package config

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "buildsys.toml")
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, "tasks.star", cfg.TaskFile)
	assert.Equal(t, ".buildsys.cache", cfg.CacheFile)
	assert.False(t, cfg.NoCache)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("BUILDSYS_TASK_FILE", "build.star")
	t.Setenv("BUILDSYS_NO_CACHE", "true")
	t.Setenv("BUILDSYS_LOG_LEVEL", "warn")

	cfg, err := Load(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, "build.star", cfg.TaskFile)
	assert.True(t, cfg.NoCache)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel())
}

func TestDebugForcesDebugLevel(t *testing.T) {
	t.Setenv("BUILDSYS_DEBUG", "true")
	t.Setenv("BUILDSYS_LOG_LEVEL", "error")

	cfg, err := Load(missingFile(t))
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
}

func TestValidate(t *testing.T) {
	cfg, _ := Loader(missingFile(t))
	cfg.TaskFile = "tasks.star"
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg.Log.Level = "debug"
	assert.NoError(t, cfg.Validate())

	cfg.TaskFile = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadRejectsUnknownLevel(t *testing.T) {
	t.Setenv("BUILDSYS_LOG_LEVEL", "verbose")

	_, err := Load(missingFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestUnknownVariablesAreIgnored(t *testing.T) {
	t.Setenv("BUILDSYS_NOCACHE", "true")
	t.Setenv("BUILDSYS_TEST_VALUE", "from-env")

	cfg, err := Load(missingFile(t))
	require.NoError(t, err)
	assert.False(t, cfg.NoCache)
}
