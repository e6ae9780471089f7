package buildsys

import (
	"errors"
	"io"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/rotisserie/eris"
)

// edges returns every task that has to run before or as part of the given task, in execution order
func edges(task *Task, tasks TaskList) ([]*Task, error) {
	result := make([]*Task, 0, len(task.Deps)+len(task.Cmds))
	for _, dep := range task.Deps {
		depTask, ok := tasks[dep]
		if !ok {
			return nil, eris.Errorf("task %s depends on unknown task %s", task.Short, dep)
		}
		result = append(result, depTask)
	}

	for _, cmd := range task.Cmds {
		sub, err := cmd.ToTask()
		if err != nil {
			return nil, err
		}
		if sub != nil {
			result = append(result, sub)
		}
	}

	return result, nil
}

func sortedNames(tasks TaskList) []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildGraph returns a directed graph with an edge from each task to the tasks it runs first.
// Cycles are rejected while the graph is built.
func buildGraph(tasks TaskList) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	var visit func(task *Task) error
	visit = func(task *Task) error {
		err := g.AddVertex(task.Short)
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil
		}
		if err != nil {
			return err
		}

		next, err := edges(task, tasks)
		if err != nil {
			return err
		}

		for _, target := range next {
			if err = visit(target); err != nil {
				return err
			}

			err = g.AddEdge(task.Short, target.Short)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return eris.Errorf("task %s depends on %s which leads back to %s", task.Short, target.Short, task.Short)
			default:
				return eris.Wrapf(err, "failed to link %s to %s", task.Short, target.Short)
			}
		}

		return nil
	}

	for _, name := range sortedNames(tasks) {
		if err := visit(tasks[name]); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Validate makes sure every dependency exists and no task depends on itself, directly or indirectly
func Validate(tasks TaskList) error {
	_, err := buildGraph(tasks)
	return err
}

// WriteDOT renders the task graph in Graphviz format
func WriteDOT(tasks TaskList, w io.Writer) error {
	g, err := buildGraph(tasks)
	if err != nil {
		return err
	}

	return draw.DOT(g, w)
}

// Plan lists the tasks in the order RunTask would start them. Each task appears once.
func Plan(tasks TaskList, name string) ([]string, error) {
	root, ok := tasks[name]
	if !ok {
		return nil, eris.Errorf("Task %s not found", name)
	}

	if err := Validate(tasks); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	order := []string{}

	var walk func(task *Task) error
	walk = func(task *Task) error {
		if seen[task.Short] {
			return nil
		}
		seen[task.Short] = true

		for _, dep := range task.Deps {
			if err := walk(tasks[dep]); err != nil {
				return err
			}
		}

		order = append(order, task.Short)
		for _, cmd := range task.Cmds {
			sub, err := cmd.ToTask()
			if err != nil {
				return err
			}
			if sub != nil {
				if err = walk(sub); err != nil {
					return err
				}
			}
		}

		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return order, nil
}
