package buildsys

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, `
mode = option("mode", default = "debug", help = "Build mode")
level = option("level")

def configure():
    task("show", desc = mode + "/" + level, cmds = ["true"])
`)

	tasks, options, err := RunScript(context.Background(), path, dir, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "debug/", tasks["show"].Desc)
	assert.Equal(t, "debug", options["mode"].Default())
	assert.Equal(t, "Build mode", options["mode"].Help)
	assert.Contains(t, options, "level")

	tasks, _, err = RunScript(context.Background(), path, dir, map[string]string{"mode": "release", "level": "3"}, true)
	require.NoError(t, err)
	assert.Equal(t, "release/3", tasks["show"].Desc)
}

func TestRunScriptWithoutConfigure(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, `option("mode", default = "debug")`)

	tasks, options, err := RunScript(context.Background(), path, dir, nil, false)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Contains(t, options, "mode")

	_, _, err = RunScript(context.Background(), path, dir, nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not declare a configure function")
}

func TestConfigureMustBeCallable(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, `configure = 3`)

	_, err := Parse(context.Background(), path, dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a function")
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		script string
		msg    string
	}{
		"reserved name": {
			script: "def configure():\n    task(\"configure\")\n",
			msg:    "reserved",
		},
		"option outside init": {
			script: "def configure():\n    option(\"late\")\n",
			msg:    "init phase",
		},
		"task outside configure": {
			script: "task(\"early\")\ndef configure():\n    pass\n",
			msg:    "inside configure",
		},
		"bad command type": {
			script: "def configure():\n    task(\"bad\", cmds = [3])\n",
			msg:    "unexpected type int",
		},
		"bad env value": {
			script: "def configure():\n    task(\"bad\", env = {\"A\": 1})\n",
			msg:    "only strings are supported",
		},
		"bad deps": {
			script: "def configure():\n    task(\"bad\", deps = [1])\n",
			msg:    "expected all items in deps to be strings",
		},
		"duplicate": {
			script: "def configure():\n    task(\"a\")\n    task(\"a\")\n",
			msg:    "declared twice",
		},
		"error builtin": {
			script: "error(\"python is missing\")\n",
			msg:    "python is missing",
		},
		"unknown dependency": {
			script: "def configure():\n    task(\"a\", deps = [\"b\"])\n",
			msg:    "unknown task b",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := Parse(context.Background(), writeTaskFile(t, dir, tc.script), dir, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestAnonymousTasksAreHidden(t *testing.T) {
	_, tasks := parseTemp(t, `
def configure():
    helper = task(cmds = ["helper"])
    task("main", cmds = [helper, "main"])
`)

	require.Len(t, tasks, 1)
	ref, ok := tasks["main"].Cmds[0].(TaskCmdTaskRef)
	require.True(t, ok)
	assert.True(t, ref.Task.Hidden)
	assert.True(t, strings.HasPrefix(ref.Task.Short, "auto#"))
}

func TestHiddenTasksGetGlobalEnv(t *testing.T) {
	_, tasks := parseTemp(t, `
setenv("PYTHONPATH", "src")

def configure():
    helper = task(cmds = ["helper"])
    task("main", cmds = [helper])
`)

	ref := tasks["main"].Cmds[0].(TaskCmdTaskRef)
	assert.Equal(t, "src", ref.Task.Env["PYTHONPATH"])
}

func TestArgvCommandsAreQuoted(t *testing.T) {
	_, tasks := parseTemp(t, `
def configure():
    task("q", cmds = [
        ("echo", "hello world"),
        ["CI=1", "pytest", "-k", "not slow"],
        ("echo", "it's"),
        ("echo", "$HOME"),
    ])
`)

	contents := make([]string, 0)
	for _, cmd := range tasks["q"].Cmds {
		contents = append(contents, cmd.(TaskCmdScript).Content)
	}

	assert.Equal(t, []string{
		"echo 'hello world'",
		"CI=1 pytest -k 'not slow'",
		`echo "it's"`,
		"echo '$HOME'",
	}, contents)
}

func TestArgvWithoutCommand(t *testing.T) {
	dir := t.TempDir()
	_, err := Parse(context.Background(), writeTaskFile(t, dir, `
def configure():
    task("q", cmds = [("A=1",)])
`), dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no arguments")
}

func TestResolvePathAndBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "pkg"), 0o700))

	tasks, err := Parse(context.Background(), writeTaskFile(t, dir, `
src = resolve_path("src")
rel = resolve_path("src", "pkg", base = "//")

def configure():
    task("paths", base = "src", desc = str(rel), cmds = [("ls", src)])
`), dir, nil)
	require.NoError(t, err)

	task := tasks["paths"]
	assert.Equal(t, filepath.Join(dir, "src"), task.Base)
	assert.Equal(t, `"`+filepath.Join("src", "pkg")+`"`, task.Desc)
	assert.Equal(t, "ls .", task.Cmds[0].(TaskCmdScript).Content)
}

func TestFilesystemBuiltins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.cfg"), nil, 0o600))

	tasks, err := Parse(context.Background(), writeTaskFile(t, dir, `
checks = [isdir("src"), isfile("src"), isfile("setup.cfg"), isdir("missing")]

def configure():
    task("fs", desc = str(checks))
`), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "[True, False, True, False]", tasks["fs"].Desc)
}

func TestEnvBuiltins(t *testing.T) {
	t.Setenv("BUILDSYS_TEST_VALUE", "from-env")

	dir := t.TempDir()
	tasks, err := Parse(context.Background(), writeTaskFile(t, dir, `
before = getenv("BUILDSYS_TEST_VALUE")
setenv("BUILDSYS_TEST_VALUE", "overridden")
after = getenv("BUILDSYS_TEST_VALUE")
missing = getenv("BUILDSYS_TEST_MISSING", "fallback")
prepend_path("bin")

def configure():
    task("env", desc = " ".join([before, after, missing]))
`), dir, nil)
	require.NoError(t, err)

	task := tasks["env"]
	assert.Equal(t, "from-env overridden fallback", task.Desc)
	assert.Equal(t, "overridden", task.Env["BUILDSYS_TEST_VALUE"])
	assert.True(t, strings.HasPrefix(task.Env["PATH"], filepath.Join(dir, "bin")+string(os.PathListSeparator)))
}

func TestReadYaml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.yml"), []byte(`
name: torguapi
python:
  versions: ["3.10", "3.11"]
  strict: true
  workers: 4
`), 0o600))

	tasks, err := Parse(context.Background(), writeTaskFile(t, dir, `
values = [
    read_yaml("project.yml", "name"),
    read_yaml("project.yml", "python.versions.1"),
    read_yaml("project.yml", "python.strict"),
    read_yaml("project.yml", "python.workers"),
    read_yaml("project.yml", "python.missing", "default"),
    read_yaml("project.yml", "python.versions.7", "none"),
]

def configure():
    task("yaml", desc = str(values))
`), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, `["torguapi", "3.11", True, 4, "default", "none"]`, tasks["yaml"].Desc)
}

func TestExecuteBuiltin(t *testing.T) {
	dir := t.TempDir()
	tasks, err := Parse(context.Background(), writeTaskFile(t, dir, `
text = execute("echo hello")
data = execute("echo '{\"version\": \"1.2\"}'", format = "json")
failed = execute("false")

def configure():
    task("exec", desc = str([text, data["version"], failed]))
`), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, `["hello\n", "1.2", False]`, tasks["exec"].Desc)
}

func TestInputsWithoutOutputsOnlyWarn(t *testing.T) {
	_, tasks := parseTemp(t, `
def configure():
    task("lint", inputs = ["src/*.py"], cmds = ["lint"])
`)

	assert.Equal(t, []string{"src/*.py"}, tasks["lint"].Inputs)
	assert.Empty(t, tasks["lint"].Outputs)
}
