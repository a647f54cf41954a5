package shell

import (
	"fmt"
	"io"
	"sync"
	"time"

	"smallshell/internal/command"
	"smallshell/internal/proc"
)

// Reporter writes the messages the user sees. It is called from the main
// loop and from the background reaper, so every write holds mu.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func NewReporter(out, errOut io.Writer) *Reporter {
	return &Reporter{out: out, errOut: errOut}
}

func (r *Reporter) printf(w io.Writer, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(w, "==> "+format+"\n", args...)
}

func (r *Reporter) errorf(format string, args ...any) {
	r.printf(r.errOut, "ERROR: "+format, args...)
}

func (r *Reporter) Spawned(p *proc.Process) {
	r.printf(r.out, "%d - spawned %s process", p.PID, p.Mode)
}

func (r *Reporter) Terminated(p *proc.Process, e proc.Exit) {
	r.printf(r.out, "%d - process terminated (%s)", e.PID, e)
}

func (r *Reporter) Elapsed(p *proc.Process, d time.Duration) {
	r.printf(r.out, "execution time: %f seconds", d.Seconds())
}

func (r *Reporter) TooManyArguments(cmd command.Command) {
	r.errorf("Too many arguments! %d dropped, running: %s", cmd.Dropped, cmd)
}

func (r *Reporter) LineTooLong(max int) {
	r.errorf("Command too long, truncated to %d characters", max)
}

func (r *Reporter) Error(err error) {
	r.errorf("%v", err)
}

func (r *Reporter) CouldNotExecute(name string) {
	r.errorf("Could not execute command: %s", name)
}

func (r *Reporter) CouldNotFork(name string) {
	r.errorf("Couldn't fork %s!", name)
}

func (r *Reporter) InvalidCdArguments() {
	r.errorf("Invalid argument count to cd!")
}

func (r *Reporter) InvalidDirectory() {
	r.errorf("Invalid directory, sending you home...")
}

func (r *Reporter) CouldNotChangeDirectory(dir string) {
	r.errorf("Couldn't change directory to %s", dir)
}
