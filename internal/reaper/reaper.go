// Package reaper detects terminated background children and collects
// them so that none is left as a zombie.
//
// Two strategies exist. The signal strategy listens for SIGCHLD and
// collects tracked children as soon as they die. The poll strategy does
// nothing asynchronously; the interpreter calls AfterSpawn after every
// spawn and the poller drains every child that has terminated so far.
// Foreground children are collected by their own blocking wait and are
// never tracked here.
package reaper

import (
	"fmt"
	"io"
	"log"
	"sync"

	"smallshell/internal/proc"
)

var logger = log.New(io.Discard, "", log.LstdFlags)

// SetLogger replaces the diagnostic logger. A nil logger discards output.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", log.LstdFlags)
	}
	logger = l
}

type Strategy string

const (
	Signal Strategy = "signal"
	Poll   Strategy = "poll"
)

// ReportFunc receives every collected child exactly once. p is nil when
// the child was never tracked.
type ReportFunc func(p *proc.Process, e proc.Exit)

// Detector collects terminated background children.
type Detector interface {
	// Start prepares the detector. It must be called before the first spawn.
	Start() error

	// Track hands a freshly spawned background child to the detector.
	Track(p *proc.Process)

	// AfterSpawn is called by the interpreter after each spawn completes.
	AfterSpawn()

	// Close stops detection and collects whatever has already terminated.
	Close() error
}

// New returns the detector for strategy s.
func New(s Strategy, report ReportFunc) (Detector, error) {
	switch s {
	case Signal:
		return NewSignalReaper(report), nil
	case Poll:
		return NewPoller(report), nil
	default:
		return nil, fmt.Errorf("unknown termination detection strategy %q", s)
	}
}

// registry holds background children not yet collected.
type registry struct {
	mu    sync.Mutex
	procs map[int]*proc.Process
}

func newRegistry() *registry {
	return &registry{procs: make(map[int]*proc.Process)}
}

func (r *registry) add(p *proc.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[p.PID] = p
}

func (r *registry) take(pid int) *proc.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.procs[pid]
	delete(r.procs, pid)
	return p
}

// takeIf removes the entry for p's PID only while it still holds p. A
// newer child reusing the PID keeps its entry.
func (r *registry) takeIf(p *proc.Process) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.procs[p.PID] != p {
		return false
	}
	delete(r.procs, p.PID)
	return true
}

func (r *registry) snapshot() []*proc.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*proc.Process, 0, len(r.procs))
	for _, p := range r.procs {
		out = append(out, p)
	}
	return out
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// deliver marks p terminated and reports it unless it already was.
func deliver(report ReportFunc, p *proc.Process, e proc.Exit) {
	if p != nil && !p.Terminate(e) {
		return
	}
	report(p, e)
}
