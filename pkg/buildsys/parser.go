package buildsys

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"mvdan.cc/sh/v3/syntax"
)

type parserCtx struct {
	ctx          context.Context
	options      map[string]ScriptOption
	optionValues map[string]string
	envOverrides map[string]string
	yamlCache    map[string]interface{}
	inputs       *ScriptInputs
	filepath     string
	projectRoot  string
	tasks        []*Task
	initPhase    bool
}

// * Helpers

func getCtx(thread *starlark.Thread) *parserCtx {
	return thread.Local("parserCtx").(*parserCtx)
}

type starlarkIterable interface {
	Len() int
	Iterate() starlark.Iterator
}

func starlarkIterable2stringSlice(input starlarkIterable, field string) ([]string, error) {
	if value, ok := input.(*starlark.List); ok && value == nil {
		return []string{}, nil
	}

	result := make([]string, 0, input.Len())
	iter := input.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		value, ok := item.(starlark.String)
		if !ok {
			return nil, eris.Errorf("expected all items in %s to be strings but found %s", field, item.Type())
		}
		result = append(result, value.GoString())
	}
	return result, nil
}

func shellReadDir(path string) ([]os.FileInfo, error) {
	if path == "" {
		path = "."
	}

	return ioutil.ReadDir(path)
}

func quoteWord(value string) *syntax.Word {
	var part syntax.WordPart
	if value == "" || strings.ContainsAny(value, " \t\n$'\"`\\*?[]{}()<>|&;#~") {
		if strings.Contains(value, "'") {
			part = &syntax.DblQuoted{Parts: []syntax.WordPart{&syntax.Lit{Value: escapeDouble(value)}}}
		} else {
			part = &syntax.SglQuoted{Value: value}
		}
	} else {
		part = &syntax.Lit{Value: value}
	}

	return &syntax.Word{Parts: []syntax.WordPart{part}}
}

func escapeDouble(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return replacer.Replace(value)
}

// processCmdParts turns an argv-style tuple into a shell call. Leading "KEY=VALUE" strings
// become assignments for that call only.
func processCmdParts(parts starlark.Tuple, parser *syntax.Parser, base string) (*syntax.CallExpr, error) {
	envVars := make([]string, 0, len(parts))
	for _, part := range parts {
		value, ok := part.(starlark.String)
		if !ok || !strings.Contains(value.GoString(), "=") {
			break
		}
		envVars = append(envVars, value.GoString())
	}

	cmd := new(syntax.CallExpr)
	if len(envVars) > 0 {
		joinedEnvVars := strings.Join(envVars, " ")
		result, err := parser.Parse(strings.NewReader(joinedEnvVars), "env vars")
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse command vars %s", joinedEnvVars)
		}

		if len(result.Stmts) != 1 || result.Stmts[0].Cmd == nil {
			return nil, eris.Errorf("malformed env vars %s", joinedEnvVars)
		}

		var ok bool
		cmd, ok = result.Stmts[0].Cmd.(*syntax.CallExpr)
		if !ok || cmd.Assigns == nil {
			return nil, eris.Errorf("malformed env vars %s", joinedEnvVars)
		}
	}

	args := parts[len(envVars):]
	if len(args) == 0 {
		return nil, eris.New("command has no arguments")
	}

	cmd.Args = make([]*syntax.Word, len(args))
	for a, arg := range args {
		var encodedValue string

		switch value := arg.(type) {
		case starlark.String:
			encodedValue = value.GoString()
		case StarlarkPath:
			encodedValue = string(value)

			if filepath.IsAbs(encodedValue) {
				// absolute paths cause issues on Windows
				if relValue, err := filepath.Rel(base, encodedValue); err == nil {
					encodedValue = relValue
				}
			}

			encodedValue = filepath.ToSlash(encodedValue)
		default:
			return nil, eris.Errorf("found argument of type %s but only strings and paths are supported: %s", arg.Type(), arg.String())
		}

		cmd.Args[a] = quoteWord(encodedValue)
	}

	return cmd, nil
}

func logAt(thread *starlark.Thread) string {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	return fmt.Sprintf("%s:%d:%d", simplifyPath(ctx, ctx.filepath), pos.Line, pos.Col)
}

func info(thread *starlark.Thread, msg string, args ...interface{}) {
	log(getCtx(thread).ctx).Info().Msgf("%s: %s", logAt(thread), fmt.Sprintf(msg, args...))
}

func warn(thread *starlark.Thread, msg string, args ...interface{}) {
	log(getCtx(thread).ctx).Warn().Msgf("%s: %s", logAt(thread), fmt.Sprintf(msg, args...))
}

// * Builtin functions

func option(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultValue starlark.String
	var help string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue, "help?", &help)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	if !ctx.initPhase {
		return nil, eris.New("can only be called during the init phase (in the global scope)")
	}

	ctx.options[name] = ScriptOption{
		DefaultValue: defaultValue,
		Help:         help,
	}

	if value, ok := ctx.optionValues[name]; ok {
		return starlark.String(value), nil
	}

	return defaultValue, nil
}

func convertCmd(item starlark.Value, parser *syntax.Parser, printer *syntax.Printer, base string) (TaskCmd, error) {
	var parts starlark.Tuple

	switch value := item.(type) {
	case starlark.String:
		return TaskCmdScript{Content: value.GoString()}, nil
	case *Task:
		return TaskCmdTaskRef{Task: value}, nil
	case starlark.Tuple:
		parts = value
	case *starlark.List:
		parts = make(starlark.Tuple, 0, value.Len())
		iter := value.Iterate()
		var subItem starlark.Value
		for iter.Next(&subItem) {
			parts = append(parts, subItem)
		}
		iter.Done()
	default:
		return nil, eris.Errorf("unexpected type %s. Only strings, tuples, lists and tasks are valid", item.Type())
	}

	call, err := processCmdParts(parts, parser, base)
	if err != nil {
		return nil, err
	}

	buffer := strings.Builder{}
	if err = printer.Print(&buffer, call); err != nil {
		return nil, err
	}

	return TaskCmdScript{Content: buffer.String()}, nil
}

func stringDict(dict *starlark.Dict, field string) (map[string]string, error) {
	result := map[string]string{}
	if dict == nil {
		return result, nil
	}

	for _, item := range dict.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return nil, eris.Errorf("found key type %s in %s map but only strings are supported", item[0].Type(), field)
		}

		value, ok := item[1].(starlark.String)
		if !ok {
			return nil, eris.Errorf("found value of type %s for key %s but only strings are supported", item[1].Type(), key.GoString())
		}

		result[key.GoString()] = value.GoString()
	}

	return result, nil
}

func task(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var deps *starlark.List
	var skipIfExists *starlark.List
	var inputs *starlark.List
	var outputs *starlark.List
	var env *starlark.Dict
	var cmds *starlark.List

	ctx := getCtx(thread)
	if ctx.initPhase {
		return nil, eris.New("tasks can only be declared inside configure()")
	}

	task := new(Task)
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "short??", &task.Short, "hidden?", &task.Hidden,
		"desc?", &task.Desc, "deps?", &deps, "base?", &task.Base, "skip_if_exists?", &skipIfExists, "inputs?",
		&inputs, "outputs?", &outputs, "env?", &env, "cmds?", &cmds)
	if err != nil {
		return nil, err
	}

	if task.Short == "" {
		task.Hidden = true
		task.Short = "auto#" + nanoid.New()
	}

	if task.Short == "configure" {
		return nil, eris.New(`the task name "configure" is reserved, please use a different name`)
	}

	if task.Base == "" {
		task.Base = "."
	}
	task.Base = normalizePath(ctx, task.Base)

	if task.Deps, err = starlarkIterable2stringSlice(deps, "deps"); err != nil {
		return nil, err
	}
	if task.SkipIfExists, err = starlarkIterable2stringSlice(skipIfExists, "skip_if_exists"); err != nil {
		return nil, err
	}
	if task.Inputs, err = starlarkIterable2stringSlice(inputs, "inputs"); err != nil {
		return nil, err
	}
	if task.Outputs, err = starlarkIterable2stringSlice(outputs, "outputs"); err != nil {
		return nil, err
	}
	if task.Env, err = stringDict(env, "env"); err != nil {
		return nil, err
	}

	task.Cmds = make([]TaskCmd, 0)
	if cmds != nil {
		printer := syntax.NewPrinter(syntax.Minify(true))
		parser := syntax.NewParser()

		for idx := 0; idx < cmds.Len(); idx++ {
			cmd, err := convertCmd(cmds.Index(idx), parser, printer, task.Base)
			if err != nil {
				return nil, eris.Wrapf(err, "%s: failed to process command #%d of %s", fn.Name(), idx, task.Short)
			}

			if script, ok := cmd.(TaskCmdScript); ok {
				script.TaskName = task.Short
				script.Index = idx
				cmd = script
			}
			task.Cmds = append(task.Cmds, cmd)
		}
	}

	if len(task.Inputs) > 0 && len(task.Outputs) == 0 {
		warn(thread, "%s: found inputs but no outputs", task.Short)
	}

	if !task.Hidden {
		ctx.tasks = append(ctx.tasks, task)
	}
	return task, nil
}

func builtins() starlark.StringDict {
	return starlark.StringDict{
		"OS":           starlark.String(runtime.GOOS),
		"ARCH":         starlark.String(runtime.GOARCH),
		"info":         starlark.NewBuiltin("info", starInfo),
		"warn":         starlark.NewBuiltin("warn", starWarn),
		"error":        starlark.NewBuiltin("error", starError),
		"resolve_path": starlark.NewBuiltin("resolve_path", resolvePath),
		"option":       starlark.NewBuiltin("option", option),
		"getenv":       starlark.NewBuiltin("getenv", getenv),
		"setenv":       starlark.NewBuiltin("setenv", setenv),
		"prepend_path": starlark.NewBuiltin("prepend_path", prependPathDir),
		"read_yaml":    starlark.NewBuiltin("read_yaml", readYaml),
		"isdir":        starlark.NewBuiltin("isdir", starIsdir),
		"isfile":       starlark.NewBuiltin("isfile", starIsfile),
		"execute":      starlark.NewBuiltin("execute", starExec),
		"task":         starlark.NewBuiltin("task", task),
	}
}

func evalError(err error, fallback string) error {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return eris.Errorf("%s:\n%s", fallback, evalErr.Backtrace())
	}
	return eris.Wrap(err, fallback)
}

// RunScript executes a starlark script and returns the declared options. If doConfigure is true, the script's
// configure function is called and the declared tasks are collected and returned.
func RunScript(ctx context.Context, filename, projectRoot string, options map[string]string, doConfigure bool) (TaskList, map[string]ScriptOption, error) {
	tasks, scriptOptions, _, err := runScript(ctx, filename, projectRoot, options, doConfigure)
	return tasks, scriptOptions, err
}

func runScript(ctx context.Context, filename, projectRoot string, options map[string]string, doConfigure bool) (TaskList, map[string]ScriptOption, *ScriptInputs, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, nil, nil, err
	}

	filename, err = filepath.Abs(filename)
	if err != nil {
		return nil, nil, nil, err
	}

	if options == nil {
		options = map[string]string{}
	}

	thread := &starlark.Thread{
		Name: "main",
		Print: func(thread *starlark.Thread, msg string) {
			log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	threadCtx := parserCtx{
		ctx:          ctx,
		filepath:     filename,
		projectRoot:  projectRoot,
		options:      make(map[string]ScriptOption),
		optionValues: options,
		envOverrides: make(map[string]string),
		tasks:        make([]*Task, 0),
		yamlCache:    make(map[string]interface{}),
		inputs:       newScriptInputs(),
		initPhase:    true,
	}
	thread.SetLocal("parserCtx", &threadCtx)

	script, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, nil, nil, eris.Wrapf(err, "failed to read file %s", filename)
	}

	shortName := simplifyPath(&threadCtx, filename)
	globals, err := starlark.ExecFile(thread, shortName, script, builtins())
	if err != nil {
		return nil, nil, nil, evalError(err, fmt.Sprintf("failed to execute %s", shortName))
	}

	tasks := TaskList{}
	if !doConfigure {
		return tasks, threadCtx.options, threadCtx.inputs, nil
	}

	configure, ok := globals["configure"]
	if !ok {
		return nil, nil, nil, eris.Errorf("%s did not declare a configure function", shortName)
	}

	configureFunc, ok := configure.(starlark.Callable)
	if !ok {
		return nil, nil, nil, eris.Errorf("%s did declare a configure value but it's not a function", shortName)
	}

	threadCtx.initPhase = false
	_, err = starlark.Call(thread, configureFunc, nil, nil)
	if err != nil {
		return nil, nil, nil, evalError(err, fmt.Sprintf("failed configure call in %s", shortName))
	}

	for _, task := range threadCtx.tasks {
		if _, dup := tasks[task.Short]; dup {
			return nil, nil, nil, eris.Errorf("task %s was declared twice", task.Short)
		}
		tasks[task.Short] = task
	}

	// global overrides apply to every task including hidden ones reachable through cmds
	applied := map[*Task]bool{}
	var apply func(task *Task)
	apply = func(task *Task) {
		if applied[task] {
			return
		}
		applied[task] = true

		for name, value := range threadCtx.envOverrides {
			if _, present := task.Env[name]; !present {
				task.Env[name] = value
			}
		}

		for _, cmd := range task.Cmds {
			if ref, ok := cmd.(TaskCmdTaskRef); ok {
				apply(ref.Task)
			}
		}
	}
	for _, task := range threadCtx.tasks {
		apply(task)
	}

	return tasks, threadCtx.options, threadCtx.inputs, nil
}

// Parse loads the task file and validates the resulting dependency graph
func Parse(ctx context.Context, filename, projectRoot string, options map[string]string) (TaskList, error) {
	tasks, _, err := ParseTracked(ctx, filename, projectRoot, options)
	return tasks, err
}

// ParseTracked works like Parse and also returns the environment variables and files the task
// file looked at, so a cached result can be checked against them.
func ParseTracked(ctx context.Context, filename, projectRoot string, options map[string]string) (TaskList, *ScriptInputs, error) {
	tasks, _, inputs, err := runScript(ctx, filename, projectRoot, options, true)
	if err != nil {
		return nil, nil, err
	}

	if err = Validate(tasks); err != nil {
		return nil, nil, err
	}

	return tasks, inputs, nil
}
