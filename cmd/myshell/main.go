package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"smallshell/internal/proc"
)

func main() {
	root := NewRootCmd()
	os.Exit(exitCode(root.Execute(), os.Stderr))
}

// exitCode maps the result of a session to the process exit status. A
// spawn failure has already been reported by the shell.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var spawnErr *proc.SpawnError
	if !errors.As(err, &spawnErr) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}
