package cmd

import (
	"github.com/spf13/cobra"

	"github.com/torguapi/torguapi/pkg"
	"github.com/torguapi/torguapi/pkg/config"
)

var installToolsCmd = &cobra.Command{
	Use:   "install-tools",
	Short: "Installs the Python tools used by tasks.star",
	Long: `Installs the tools listed in requirements-dev.txt (isort, black, pytest, build)
with pip, one at a time. Activate your virtualenv first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		python, err := cmd.Flags().GetString("python")
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		return pkg.InstallTools(python, cfg.TaskFile)
	},
}

func init() {
	installToolsCmd.Flags().String("python", "python", "Python interpreter whose pip is used")
	rootCmd.AddCommand(installToolsCmd)
}
