package buildsys

import (
	"encoding/gob"
	"os"
	"reflect"

	"github.com/rotisserie/eris"
)

func init() {
	gob.Register(TaskList{})
	gob.Register(Task{})
	gob.Register(TaskCmdScript{})
	gob.Register(TaskCmdTaskRef{})
}

// WriteCache stores the options and inputs used to parse the task file together with the resulting tasks
func WriteCache(file string, options map[string]string, inputs *ScriptInputs, list TaskList) error {
	if inputs == nil {
		inputs = newScriptInputs()
	}

	handle, err := os.Create(file)
	if err != nil {
		return eris.Wrapf(err, "failed to create cache %s", file)
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	if err = encoder.Encode(options); err != nil {
		return eris.Wrap(err, "failed to encode options")
	}

	if err = encoder.Encode(inputs); err != nil {
		return eris.Wrap(err, "failed to encode script inputs")
	}

	if err = encoder.Encode(list); err != nil {
		return eris.Wrap(err, "failed to encode tasks")
	}

	return nil
}

func ReadCache(file string) (map[string]string, *ScriptInputs, TaskList, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, nil, nil, err
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)

	var options map[string]string
	if err = decoder.Decode(&options); err != nil {
		return nil, nil, nil, eris.Wrapf(err, "failed to decode options from %s", file)
	}

	inputs := newScriptInputs()
	if err = decoder.Decode(inputs); err != nil {
		return options, nil, nil, eris.Wrapf(err, "failed to decode script inputs from %s", file)
	}

	var result TaskList
	if err = decoder.Decode(&result); err != nil {
		return options, inputs, nil, eris.Wrapf(err, "failed to decode tasks from %s", file)
	}

	return options, inputs, result, nil
}

func sameOptions(a, b map[string]string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// LoadCached returns the cached tasks if the cache is newer than the task file, was written with
// the same options and none of the environment variables or files the task file read have changed.
// A nil list without error means the task file has to be parsed again.
func LoadCached(cacheFile, taskFile string, options map[string]string) (TaskList, error) {
	cacheInfo, err := os.Stat(cacheFile)
	if eris.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to check %s", cacheFile)
	}

	taskInfo, err := os.Stat(taskFile)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to check %s", taskFile)
	}

	if !cacheInfo.ModTime().After(taskInfo.ModTime()) {
		return nil, nil
	}

	cachedOptions, inputs, tasks, err := ReadCache(cacheFile)
	if err != nil {
		// a broken cache is simply rebuilt
		return nil, nil
	}

	if !sameOptions(cachedOptions, options) || inputs.Changed() {
		return nil, nil
	}

	return tasks, nil
}
