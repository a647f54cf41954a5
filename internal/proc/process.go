//go:build !windows

// Package proc spawns child processes and supervises them until their
// termination is collected.
package proc

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

var logger = log.New(io.Discard, "", log.LstdFlags)

// SetLogger replaces the diagnostic logger. A nil logger discards output.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", log.LstdFlags)
	}
	logger = l
}

// Mode tells whether the interpreter waits for a process.
type Mode int

const (
	Foreground Mode = iota
	Background
)

func (m Mode) String() string {
	switch m {
	case Foreground:
		return "foreground"
	case Background:
		return "background"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// State is the lifecycle state of a Process.
type State int

const (
	Running State = iota
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Exit is the collected termination status of a child.
type Exit struct {
	PID    int
	Status unix.WaitStatus
}

// Code returns the exit code, or -1 if the child was killed by a signal.
func (e Exit) Code() int {
	return e.Status.ExitStatus()
}

func (e Exit) String() string {
	switch {
	case e.Status.Exited():
		return fmt.Sprintf("exit status %d", e.Status.ExitStatus())
	case e.Status.Signaled():
		return fmt.Sprintf("signal: %v", e.Status.Signal())
	default:
		return fmt.Sprintf("status %#x", uint32(e.Status))
	}
}

// Process is the record of one spawned child.
type Process struct {
	ID        string
	PID       int
	Mode      Mode
	Argv      []string
	SpawnTime time.Time

	mu    sync.Mutex
	state State
	exit  Exit
}

func newProcess(pid int, mode Mode, argv []string) *Process {
	return &Process{
		ID:        uuid.NewString(),
		PID:       pid,
		Mode:      mode,
		Argv:      append([]string(nil), argv...),
		SpawnTime: time.Now(),
		state:     Running,
	}
}

// State returns the current state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Exit returns the collected status once the process has terminated.
func (p *Process) Exit() (Exit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit, p.state == Terminated
}

// Terminate moves p to Terminated. Only the first call succeeds; the
// caller that gets true owns reporting the termination.
func (p *Process) Terminate(e Exit) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Terminated {
		return false
	}
	p.state = Terminated
	p.exit = e
	logger.Printf("process %s (pid %d) %s", p.ID, p.PID, e)
	return true
}
