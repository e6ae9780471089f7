package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torguapi/torguapi/pkg/buildsys"
	"github.com/torguapi/torguapi/pkg/config"
)

func TestSplitArgs(t *testing.T) {
	tasks, options := splitArgs([]string{"style", "python=python3.11", "all", "EMPTY="})

	assert.Equal(t, []string{"style", "all"}, tasks)
	assert.Equal(t, map[string]string{"python": "python3.11", "EMPTY": ""}, options)
}

func TestPrintTaskList(t *testing.T) {
	out := &bytes.Buffer{}
	printTaskList(out, buildsys.TaskList{
		"test":       {Short: "test", Desc: "Run the test suite"},
		"all":        {Short: "all", Desc: "Run style, test and build"},
		"auto#Xa3f9": {Short: "auto#Xa3f9", Hidden: true},
	})

	assert.Equal(t, "Available tasks:\n"+
		" * all:    Run style, test and build\n"+
		" * test:   Run the test suite\n", out.String())
}

func TestHelperBinaryIsSetBeforeParsing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as helper binary")
	}

	dir := t.TempDir()
	helper := filepath.Join(dir, "helper")
	require.NoError(t, os.WriteFile(helper, []byte("#!/bin/sh\necho helper \"$@\"\n"), 0o700))

	prevExecutable, prevHelper := executable, buildsys.HelperBinary
	t.Cleanup(func() {
		executable = prevExecutable
		buildsys.HelperBinary = prevHelper
	})
	executable = func() (string, error) {
		return helper, nil
	}

	project := filepath.Join(dir, "project")
	nested := filepath.Join(project, "src", "torguapi")
	require.NoError(t, os.MkdirAll(nested, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(project, "tasks.star"), []byte(`
moved = execute("mv a b")

def configure():
    task("build", desc = moved, cmds = ["true"])
`), 0o600))

	cfg := &config.Config{TaskFile: "tasks.star", CacheFile: ".buildsys.cache"}
	taskPath, tasks, err := prepareTasks(context.Background(), cfg, nested, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(project, "tasks.star"), taskPath)
	assert.Equal(t, "helper mv a b\n", tasks["build"].Desc)
	assert.NoFileExists(t, filepath.Join(project, ".buildsys.cache"), "execute() output can't be cached")
}

func TestPrepareTasksWithoutTaskFile(t *testing.T) {
	cfg := &config.Config{TaskFile: "missing.star", NoCache: true}
	_, _, err := prepareTasks(context.Background(), cfg, t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No missing.star file found")
}
