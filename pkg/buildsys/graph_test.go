package buildsys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskList(tasks ...*Task) TaskList {
	list := TaskList{}
	for _, task := range tasks {
		list[task.Short] = task
	}
	return list
}

func TestValidateRejectsCycles(t *testing.T) {
	a := &Task{Short: "a", Deps: []string{"b"}}
	b := &Task{Short: "b", Deps: []string{"c"}}
	c := &Task{Short: "c", Deps: []string{"a"}}

	err := Validate(taskList(a, b, c))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leads back")
}

func TestValidateRejectsCyclesThroughCmds(t *testing.T) {
	a := &Task{Short: "a"}
	b := &Task{Short: "b", Cmds: []TaskCmd{TaskCmdTaskRef{Task: a}}}
	a.Deps = []string{"b"}

	assert.Error(t, Validate(taskList(a, b)))
}

func TestValidateAcceptsDiamonds(t *testing.T) {
	base := &Task{Short: "base"}
	left := &Task{Short: "left", Deps: []string{"base"}}
	right := &Task{Short: "right", Deps: []string{"base"}}
	top := &Task{Short: "top", Deps: []string{"left", "right"}, Cmds: []TaskCmd{TaskCmdTaskRef{Task: base}}}

	assert.NoError(t, Validate(taskList(base, left, right, top)))
}

func TestPlan(t *testing.T) {
	_, tasks := loadProjectTasks(t)

	plan, err := Plan(tasks, "all")
	require.NoError(t, err)
	assert.Equal(t, []string{"all", "style", "test", "build"}, plan)

	plan, err = Plan(tasks, "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"test"}, plan)

	_, err = Plan(tasks, "missing")
	assert.Error(t, err)
}

func TestPlanRunsDepsFirst(t *testing.T) {
	gen := &Task{Short: "gen"}
	lint := &Task{Short: "lint", Deps: []string{"gen"}}
	check := &Task{Short: "check", Deps: []string{"gen"}, Cmds: []TaskCmd{TaskCmdScript{Content: "true"}, TaskCmdTaskRef{Task: lint}}}

	plan, err := Plan(taskList(gen, lint, check), "check")
	require.NoError(t, err)
	assert.Equal(t, []string{"gen", "check", "lint"}, plan)
}

func TestWriteDOT(t *testing.T) {
	_, tasks := loadProjectTasks(t)

	out := &bytes.Buffer{}
	require.NoError(t, WriteDOT(tasks, out))

	dot := out.String()
	assert.Contains(t, dot, "digraph")
	for _, name := range []string{"style", "test", "build", "all"} {
		assert.Contains(t, dot, `"`+name+`"`)
	}
}
