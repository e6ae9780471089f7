package buildsys

import (
	"os"
	"time"
)

// EnvValue is the state of an environment variable at parse time
type EnvValue struct {
	Value string
	Set   bool
}

// FileState is what a task file saw of a path. ModTime and Size are only recorded for files
// whose content was read.
type FileState struct {
	Exists  bool
	IsDir   bool
	Content bool
	ModTime time.Time
	Size    int64
}

func (s FileState) equal(o FileState) bool {
	return s.Exists == o.Exists && s.IsDir == o.IsDir && s.Content == o.Content &&
		s.ModTime.Equal(o.ModTime) && s.Size == o.Size
}

// ScriptInputs records everything outside the task file and its options that influenced its
// evaluation. Volatile is set when execute() ran since command output can't be checked later.
type ScriptInputs struct {
	Env      map[string]EnvValue
	Files    map[string]FileState
	Volatile bool
}

func newScriptInputs() *ScriptInputs {
	return &ScriptInputs{
		Env:   make(map[string]EnvValue),
		Files: make(map[string]FileState),
	}
}

func lookupEnvValue(key string) EnvValue {
	value, ok := os.LookupEnv(key)
	return EnvValue{Value: value, Set: ok}
}

func statFile(path string, content bool) FileState {
	info, err := os.Stat(path)
	if err != nil {
		return FileState{Content: content}
	}

	state := FileState{Exists: true, IsDir: info.IsDir(), Content: content}
	if content {
		state.ModTime = info.ModTime()
		state.Size = info.Size()
	}
	return state
}

func (i *ScriptInputs) recordEnv(key string) {
	i.Env[envKey(key)] = lookupEnvValue(key)
}

func (i *ScriptInputs) recordFile(path string, content bool) {
	// a content read supersedes an earlier existence check of the same path
	if prev, ok := i.Files[path]; ok && prev.Content && !content {
		return
	}
	i.Files[path] = statFile(path, content)
}

// Changed reports whether evaluating the task file again could produce a different result
func (i *ScriptInputs) Changed() bool {
	if i.Volatile {
		return true
	}

	for key, value := range i.Env {
		if lookupEnvValue(key) != value {
			return true
		}
	}

	for path, state := range i.Files {
		if !statFile(path, state.Content).equal(state) {
			return true
		}
	}

	return false
}
