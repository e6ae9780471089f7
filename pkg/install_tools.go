package pkg

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
)

// ReadRequirements returns the requirement lines of a pip requirements file without comments
// and blank lines
func ReadRequirements(r io.Reader) ([]string, error) {
	result := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if pos := strings.Index(line, "#"); pos > -1 {
			line = line[:pos]
		}

		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result, scanner.Err()
}

func getProgressBar(length int, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.NewOptions(length, progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(os.Stderr), progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			os.Stderr.WriteString("\n")
		}),
	)
}

type installFunc func(req string, out io.Writer) error

func pipInstall(python, projectRoot string) installFunc {
	return func(req string, out io.Writer) error {
		cmd := exec.Command(python, "-m", "pip", "install", req)
		cmd.Dir = projectRoot
		cmd.Stdout = out
		cmd.Stderr = out
		return cmd.Run()
	}
}

// installRequirements runs install for each requirement and stops at the first failure. The
// output of an install is only shown when it fails.
func installRequirements(reqs []string, install installFunc, errOut io.Writer) error {
	bar := getProgressBar(len(reqs), "Installing tools")
	for _, req := range reqs {
		bar.Describe(req)

		output := &bytes.Buffer{}
		if err := install(req, output); err != nil {
			_ = bar.Clear()
			PrintError(req)
			_, _ = errOut.Write(output.Bytes())
			return eris.Wrapf(err, "failed to install %s", req)
		}

		_ = bar.Add(1)
	}

	return bar.Finish()
}

// InstallTools installs every tool listed in the requirements-dev.txt next to the task file with
// pip. The first failing install stops the process.
func InstallTools(python, taskFile string) error {
	projectRoot, err := GetProjectRoot(taskFile)
	if err != nil {
		return err
	}

	reqFile := filepath.Join(projectRoot, "requirements-dev.txt")
	handle, err := os.Open(reqFile)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", reqFile)
	}
	defer handle.Close()

	reqs, err := ReadRequirements(handle)
	if err != nil {
		return eris.Wrapf(err, "failed to read %s", reqFile)
	}

	PrintTask("Installing tools")
	if err = installRequirements(reqs, pipInstall(python, projectRoot), os.Stderr); err != nil {
		return err
	}

	PrintSubtask("Done")
	return nil
}
