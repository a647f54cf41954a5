package shell

import (
	"fmt"
	"io"

	"github.com/chzyer/readline"

	"smallshell/internal/history"
)

// terminal reads lines from an interactive terminal. Output written
// through Stdout is drawn above the prompt, so background reports never
// corrupt a line being typed.
type terminal struct {
	reader *readline.Instance
}

func newTerminal(prompt string, hist *history.History) (*terminal, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 prompt,
		HistoryLimit:           history.DefaultMaxItems,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing readline: %w", err)
	}
	if err := hist.Replay(rl.SaveHistory); err != nil {
		rl.Close()
		return nil, fmt.Errorf("error loading history into readline: %w", err)
	}
	return &terminal{reader: rl}, nil
}

// ReadLine ignores interrupts typed at the prompt.
func (t *terminal) ReadLine() (string, error) {
	for {
		line, err := t.reader.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == nil && line != "" {
			_ = t.reader.SaveHistory(line)
		}
		return line, err
	}
}

func (t *terminal) Stdout() io.Writer { return t.reader.Stdout() }

func (t *terminal) Stderr() io.Writer { return t.reader.Stderr() }

func (t *terminal) Close() error { return t.reader.Close() }
