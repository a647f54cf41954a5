package shell

import (
	"os"
	"os/signal"
)

// setupSignalHandling keeps the interpreter alive across user interrupts
// for the whole session. SIGINT is caught and dropped rather than set to
// SIG_IGN: a caught signal reverts to its default action in an exec'd
// child, an ignored one stays ignored.
func (s *Shell) setupSignalHandling() (stop func()) {
	signal.Notify(s.signalChan, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-s.signalChan:
				logger.Printf("ignoring %v", sig)
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(s.signalChan)
		close(done)
	}
}
