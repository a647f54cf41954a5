//go:build !windows

package reaper

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"

	"smallshell/internal/proc"
)

// SignalReaper collects tracked background children when SIGCHLD
// arrives. SIGCHLD notifications coalesce and do not carry the sender,
// so every notification sweeps all tracked children with a non-blocking
// collect of each specific PID. A child that another path already
// collected yields ECHILD and is dropped without a report.
type SignalReaper struct {
	report ReportFunc
	reg    *registry

	sigs chan os.Signal
	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
}

func NewSignalReaper(report ReportFunc) *SignalReaper {
	return &SignalReaper{
		report: report,
		reg:    newRegistry(),
		sigs:   make(chan os.Signal, 1),
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (r *SignalReaper) Start() error {
	signal.Notify(r.sigs, unix.SIGCHLD)
	r.wg.Add(1)
	go r.loop()
	return nil
}

// Track registers pr and sweeps once, since pr may have died before it
// was registered and its SIGCHLD already been consumed.
func (r *SignalReaper) Track(pr *proc.Process) {
	r.reg.add(pr)
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *SignalReaper) AfterSpawn() {}

func (r *SignalReaper) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.sigs:
			r.sweep()
		case <-r.kick:
			r.sweep()
		case <-r.done:
			return
		}
	}
}

func (r *SignalReaper) sweep() {
	for _, p := range r.reg.snapshot() {
		r.tryCollect(p)
	}
}

// tryCollect collects p if it has terminated and reports it only when the
// collected PID is p's own.
func (r *SignalReaper) tryCollect(p *proc.Process) {
	e, ok, err := proc.TryCollect(p.PID)
	if err != nil {
		logger.Printf("signal: pid %d: %v", p.PID, err)
		r.reg.takeIf(p)
		return
	}
	if !ok || e.PID != p.PID {
		return
	}
	r.reg.takeIf(p)
	deliver(r.report, p, e)
}

func (r *SignalReaper) Close() error {
	r.closeOnce.Do(func() {
		signal.Stop(r.sigs)
		close(r.done)
		r.wg.Wait()
		r.sweep()
		logger.Printf("signal: %d children still running at shutdown", r.reg.size())
	})
	return nil
}
