// Package cmd implements the task command for the buildsys package
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/torguapi/torguapi/pkg"
	"github.com/torguapi/torguapi/pkg/buildsys"
	"github.com/torguapi/torguapi/pkg/config"
)

// splitArgs separates KEY=VALUE options from task names
func splitArgs(args []string) ([]string, map[string]string) {
	taskArgs := make([]string, 0, len(args))
	options := make(map[string]string)

	for _, part := range args {
		if pos := strings.Index(part, "="); pos > -1 {
			options[part[:pos]] = part[pos+1:]
		} else {
			taskArgs = append(taskArgs, part)
		}
	}

	return taskArgs, options
}

func loadTasks(ctx context.Context, cfg *config.Config, taskPath string, options map[string]string) (buildsys.TaskList, error) {
	logger := zerolog.Ctx(ctx)
	projectRoot := filepath.Dir(taskPath)
	cachePath := filepath.Join(projectRoot, cfg.CacheFile)

	if !cfg.NoCache {
		tasks, err := buildsys.LoadCached(cachePath, taskPath, options)
		if err != nil {
			return nil, err
		}

		if tasks != nil {
			logger.Debug().Str("path", cachePath).Msg("using cached tasks")
			return tasks, nil
		}
	}

	tasks, inputs, err := buildsys.ParseTracked(ctx, taskPath, projectRoot, options)
	if err != nil {
		return nil, err
	}

	if inputs.Volatile {
		logger.Debug().Msg("task file uses execute(), not caching")
	} else if !cfg.NoCache {
		if err = buildsys.WriteCache(cachePath, options, inputs, tasks); err != nil {
			logger.Warn().Err(err).Msg("Failed to write task cache")
		}
	}

	return tasks, nil
}

var executable = os.Executable

// prepareTasks finds and loads the task file. mv, rm and mkdir are routed to this binary before
// the task file is evaluated since execute() may already call them.
func prepareTasks(ctx context.Context, cfg *config.Config, wd string, options map[string]string) (string, buildsys.TaskList, error) {
	if self, err := executable(); err == nil {
		buildsys.HelperBinary = self
	}

	taskPath, err := pkg.FindUp(wd, cfg.TaskFile)
	if err != nil {
		return "", nil, eris.Wrapf(err, "No %s file found", cfg.TaskFile)
	}

	taskList, err := loadTasks(ctx, cfg, taskPath, options)
	if err != nil {
		return "", nil, eris.Wrap(err, "Failed to parse tasks")
	}

	return taskPath, taskList, nil
}

func printTaskList(out io.Writer, taskList buildsys.TaskList) {
	fmt.Fprintln(out, "Available tasks:")
	maxNameLen := 0
	names := make([]string, 0, len(taskList))
	for name, task := range taskList {
		if task.Hidden {
			continue
		}

		if len(name) > maxNameLen {
			maxNameLen = len(name)
		}
		names = append(names, name)
	}

	sort.Strings(names)

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, name := range names {
		fmt.Fprintf(out, lineFmt, name+":", taskList[name].Desc)
	}
}

var RootCmd = &cobra.Command{
	Use:   "task [flags] [target...] [KEY=VALUE...]",
	Short: "Simple task runner",
	Long: `This command parses the first tasks.star file it finds in the current directory or
one of its parents and executes the given tasks in order. Arguments of the form KEY=VALUE
set the options declared by the task file.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		dryRun, err := flags.GetBool("dry")
		if err != nil {
			return err
		}

		force, err := flags.GetBool("force")
		if err != nil {
			return err
		}

		showGraph, err := flags.GetBool("graph")
		if err != nil {
			return err
		}

		showPlan, err := flags.GetBool("plan")
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := NewLogger(cmd.ErrOrStderr(), cfg.LogLevel(), cfg.Log.JSON, cfg.Log.NoColor, cfg.Debug)
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		ctx = logger.WithContext(ctx)
		ctx = buildsys.WithLogger(ctx, &logger)

		taskArgs, options := splitArgs(args)

		wd, err := os.Getwd()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to retrieve the current working directory")
		}

		taskPath, taskList, err := prepareTasks(ctx, cfg, wd, options)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load tasks")
		}

		out := cmd.OutOrStdout()
		switch {
		case showGraph:
			return buildsys.WriteDOT(taskList, out)
		case len(taskArgs) == 0:
			printTaskList(out, taskList)
			return nil
		case showPlan:
			for _, name := range taskArgs {
				plan, err := buildsys.Plan(taskList, name)
				if err != nil {
					logger.Fatal().Err(err).Msgf("Failed to plan task %s", name)
				}
				fmt.Fprintf(out, "%s: %s\n", name, strings.Join(plan, " -> "))
			}
			return nil
		}

		err = buildsys.RunTasks(ctx, filepath.Dir(taskPath), taskArgs, taskList, buildsys.RunOptions{
			DryRun: dryRun,
			Force:  force,
			Stdout: out,
			Stderr: cmd.ErrOrStderr(),
		})
		if err != nil {
			logger.Error().Err(err).Msgf("Failed %s", strings.Join(taskArgs, " "))
			os.Exit(buildsys.ExitCode(err))
		}

		return nil
	},
}

func init() {
	RootCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	RootCmd.Flags().BoolP("force", "f", false, "force build; always execute the passed steps even if they don't have to run")
	RootCmd.Flags().Bool("graph", false, "print the task graph in Graphviz DOT format")
	RootCmd.Flags().Bool("plan", false, "print the order in which the given tasks would run")
}
