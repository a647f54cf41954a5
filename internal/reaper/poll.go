//go:build !windows

package reaper

import (
	"errors"

	"golang.org/x/sys/unix"

	"smallshell/internal/proc"
)

// Poller collects terminated children only when asked to. A background
// child is reported at the first drain after it dies, which is after the
// next command has been entered.
type Poller struct {
	report ReportFunc
	reg    *registry
}

func NewPoller(report ReportFunc) *Poller {
	return &Poller{report: report, reg: newRegistry()}
}

func (p *Poller) Start() error { return nil }

func (p *Poller) Track(pr *proc.Process) {
	p.reg.add(pr)
}

func (p *Poller) AfterSpawn() {
	p.Drain()
}

// Drain collects every child that has terminated, stopping at the first
// attempt that finds nothing or fails.
func (p *Poller) Drain() int {
	n := 0
	for {
		e, ok, err := proc.CollectAny()
		if err != nil {
			if !errors.Is(err, unix.ECHILD) {
				logger.Printf("poll: %v", err)
			}
			return n
		}
		if !ok {
			return n
		}
		n++
		deliver(p.report, p.reg.take(e.PID), e)
	}
}

func (p *Poller) Close() error {
	n := p.Drain()
	logger.Printf("poll: collected %d children at shutdown, %d still running", n, p.reg.size())
	return nil
}
