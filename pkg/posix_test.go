package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o600))
}

func TestMoveIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	dist := filepath.Join(dir, "dist")
	require.NoError(t, os.Mkdir(dist, 0o700))
	touch(t, filepath.Join(dir, "a.whl"))
	touch(t, filepath.Join(dir, "b.tar.gz"))

	require.NoError(t, Move([]string{filepath.Join(dir, "a.whl"), filepath.Join(dir, "b.tar.gz")}, dist))
	assert.FileExists(t, filepath.Join(dist, "a.whl"))
	assert.FileExists(t, filepath.Join(dist, "b.tar.gz"))
	assert.NoFileExists(t, filepath.Join(dir, "a.whl"))
}

func TestMoveRenames(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "old.txt"))

	require.NoError(t, Move([]string{filepath.Join(dir, "old.txt")}, filepath.Join(dir, "new.txt")))
	content, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old.txt", string(content))
}

func TestMoveMultipleNeedsDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a"))
	touch(t, filepath.Join(dir, "b"))

	err := Move([]string{filepath.Join(dir, "a"), filepath.Join(dir, "b")}, filepath.Join(dir, "c"))
	assert.Error(t, err)
	assert.FileExists(t, filepath.Join(dir, "a"))
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	build := filepath.Join(dir, "build")
	require.NoError(t, os.MkdirAll(filepath.Join(build, "lib"), 0o700))
	touch(t, filepath.Join(dir, "file"))

	assert.Error(t, Remove([]string{build}, false, false), "directories need -r")
	assert.Error(t, Remove([]string{filepath.Join(dir, "missing")}, false, false))

	require.NoError(t, Remove([]string{build, filepath.Join(dir, "file"), filepath.Join(dir, "missing")}, true, true))
	assert.NoDirExists(t, build)
	assert.NoFileExists(t, filepath.Join(dir, "file"))
}

func TestMkdir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")

	assert.Error(t, Mkdir([]string{nested}, false))
	require.NoError(t, Mkdir([]string{nested}, true))
	assert.DirExists(t, nested)
}
