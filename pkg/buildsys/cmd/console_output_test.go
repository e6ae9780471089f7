package cmd

import (
	"bytes"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleWriterPlain(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewLogger(out, zerolog.InfoLevel, false, true, false)

	logger.Info().Str("task", "style").Bool("command", true).Msg("isort src tests")
	logger.Debug().Msg("hidden")
	logger.Warn().Msg("found inputs but no outputs")

	assert.Equal(t, "style: $ isort src tests\nfound inputs but no outputs\n", out.String())
}

func TestConsoleWriterKeepsBrackets(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewLogger(out, zerolog.InfoLevel, false, true, false)

	logger.Info().Msg("echo [green] [x]")
	assert.Equal(t, "echo [green] [x]\n", out.String())
}

func TestConsoleWriterErrors(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewLogger(out, zerolog.InfoLevel, false, true, false)

	logger.Error().Err(eris.New("exit status 2")).Msg("Failed all")
	assert.Contains(t, out.String(), "Error: Failed all\n")
	assert.Contains(t, out.String(), "exit status 2")
}

func TestConsoleWriterColors(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewLogger(out, zerolog.InfoLevel, false, false, false)

	logger.Error().Msg("boom")
	assert.Contains(t, out.String(), "\033[31m")
	assert.Contains(t, out.String(), "\033[0m")
}

func TestConsoleWriterRejectsGarbage(t *testing.T) {
	_, err := NewConsoleWriter(&bytes.Buffer{}, true, false).Write([]byte("not json"))
	require.Error(t, err)
}

func TestJSONLogger(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewLogger(out, zerolog.InfoLevel, true, true, false)

	logger.Info().Str("task", "build").Msg("python -m build")
	assert.Contains(t, out.String(), `"task":"build"`)
	assert.Contains(t, out.String(), `"time":`)
}
