package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/torguapi/torguapi/pkg"
	"github.com/torguapi/torguapi/pkg/buildsys/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "tool",
	Short: "Build tools for torguapi",
	Long: `This command bundles the tools used to develop torguapi: the task runner that
styles, tests and packages the Python sources, the installer for the Python tools and
portable versions of mv, rm and mkdir used by the task runner.`,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(cmd.RootCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pkg.PrintError(err.Error())
		os.Exit(1)
	}
}
