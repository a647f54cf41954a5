//go:build !windows

package shell

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"smallshell/internal/command"
)

// executeBuiltin runs cmd if it names a builtin and reports whether it did.
func (s *Shell) executeBuiltin(cmd command.Command) bool {
	switch cmd.Name() {
	case "cd":
		s.changeDirectory(cmd.Argv[1:])
		return true
	default:
		return false
	}
}

// changeDirectory takes exactly one directory. A target that does not
// exist or is not a directory sends the user home instead.
func (s *Shell) changeDirectory(args []string) {
	if len(args) != 1 {
		s.reporter.InvalidCdArguments()
		return
	}
	dir := args[0]

	err := os.Chdir(dir)
	switch {
	case err == nil:
	case errors.Is(err, unix.ENOTDIR), errors.Is(err, unix.ENOENT):
		s.reporter.InvalidDirectory()
		if err := os.Chdir(s.config.HomeDir); err != nil {
			logger.Printf("cd %s: %v", s.config.HomeDir, err)
			s.reporter.CouldNotChangeDirectory(s.config.HomeDir)
		}
	default:
		logger.Printf("cd %s: %v", dir, err)
		s.reporter.CouldNotChangeDirectory(dir)
	}
}
