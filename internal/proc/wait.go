//go:build !windows

package proc

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Wait blocks until pid terminates and collects it. A wait interrupted
// by a signal is resumed for the same child.
func Wait(pid int) (Exit, error) {
	var status unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &status, 0, nil)
		if errors.Is(err, unix.EINTR) {
			logger.Printf("wait for pid %d interrupted, resuming", pid)
			continue
		}
		if err != nil {
			return Exit{}, err
		}
		if wpid == pid {
			return Exit{PID: pid, Status: status}, nil
		}
	}
}

// TryCollect collects pid if it has terminated, without blocking.
// ok is false when pid is still running. An error such as ECHILD means
// there is nothing left to collect for pid.
func TryCollect(pid int) (e Exit, ok bool, err error) {
	return collect(pid)
}

// CollectAny collects one terminated child, without blocking. ok is
// false when no child has terminated. ECHILD is returned once the
// interpreter has no children left.
func CollectAny() (e Exit, ok bool, err error) {
	return collect(-1)
}

func collect(pid int) (Exit, bool, error) {
	var status unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return Exit{}, false, err
		}
		if wpid <= 0 {
			return Exit{}, false, nil
		}
		return Exit{PID: wpid, Status: status}, true, nil
	}
}
