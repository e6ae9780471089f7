// Package buildsys implements a small task runner. Targets are declared in a Starlark file
// (tasks.star) and their commands are executed by mvdan.cc/sh, so the same task file works
// on every platform without a system shell.
//
// Targets run strictly one after another. The first command that exits with a non-zero
// status stops the whole invocation and its status is reported through ExitError.
package buildsys
