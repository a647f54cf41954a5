//go:build !windows

package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// SpawnError means the OS could not create a new process. It is fatal
// for the interpreter.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("couldn't fork %s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExecError means the program could not be executed. No child is left
// behind and the interpreter carries on.
type ExecError struct {
	Name string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("could not execute command: %s", e.Name)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Spawner starts programs as child processes that replace their image
// with the named program.
type Spawner struct {
	// Dir is the child's working directory; empty means the current one.
	Dir string

	// Env is the child's environment; nil means os.Environ().
	Env []string

	// Stdin, Stdout and Stderr default to the interpreter's own.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Spawn starts argv[0], resolved through PATH, with argv as its
// arguments. Signals the interpreter catches are reset to their default
// disposition in the child by exec.
func (s *Spawner) Spawn(argv []string, mode Mode) (*Process, error) {
	if len(argv) == 0 {
		return nil, &ExecError{Err: errors.New("empty command")}
	}
	name := argv[0]

	path, err := exec.LookPath(name)
	if err != nil && !errors.Is(err, exec.ErrDot) {
		return nil, &ExecError{Name: name, Err: err}
	}

	env := s.Env
	if env == nil {
		env = os.Environ()
	}

	attr := &syscall.ProcAttr{
		Dir: s.Dir,
		Env: env,
		Files: []uintptr{
			fileOr(s.Stdin, os.Stdin).Fd(),
			fileOr(s.Stdout, os.Stdout).Fd(),
			fileOr(s.Stderr, os.Stderr).Fd(),
		},
	}

	pid, err := syscall.ForkExec(path, argv, attr)
	if err != nil {
		if forkFailed(err) {
			logger.Printf("fork %s: %v", name, err)
			return nil, &SpawnError{Name: name, Err: err}
		}
		logger.Printf("exec %s: %v", path, err)
		return nil, &ExecError{Name: name, Err: err}
	}

	p := newProcess(pid, mode, argv)
	logger.Printf("spawned %s process %s (pid %d): %q", mode, p.ID, pid, argv)
	return p, nil
}

// forkFailed reports whether err came from process creation rather than
// from loading the program.
func forkFailed(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOMEM)
}

func fileOr(f, def *os.File) *os.File {
	if f != nil {
		return f
	}
	return def
}
