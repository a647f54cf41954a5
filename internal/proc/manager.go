//go:build !windows

package proc

import (
	"fmt"
	"time"
)

// Observer is told about lifecycle events as they happen.
type Observer interface {
	Spawned(p *Process)
	Terminated(p *Process, e Exit)
	Elapsed(p *Process, d time.Duration)
}

// Starter creates child processes. It is implemented by *Spawner.
type Starter interface {
	Spawn(argv []string, mode Mode) (*Process, error)
}

// Manager runs commands in the foreground or the background.
type Manager struct {
	Spawner  Starter
	Observer Observer
}

// RunForeground spawns argv and blocks until that child has been
// collected. The termination and the wall time between spawn and
// collection are reported before it returns.
func (m *Manager) RunForeground(argv []string) (*Process, error) {
	p, err := m.Spawner.Spawn(argv, Foreground)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	m.Observer.Spawned(p)

	e, err := Wait(p.PID)
	end := time.Now()
	if err != nil {
		return p, fmt.Errorf("waiting for pid %d: %w", p.PID, err)
	}

	if p.Terminate(e) {
		m.Observer.Terminated(p, e)
	}
	m.Observer.Elapsed(p, end.Sub(start).Truncate(time.Microsecond))
	return p, nil
}

// StartBackground spawns argv and returns without waiting. Collecting
// the child is left to a termination detector.
func (m *Manager) StartBackground(argv []string) (*Process, error) {
	p, err := m.Spawner.Spawn(argv, Background)
	if err != nil {
		return nil, err
	}
	m.Observer.Spawned(p)
	return p, nil
}
