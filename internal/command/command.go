// Package command turns raw input lines into commands ready for dispatch.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// ErrBlank is returned by Parse for lines that carry no command.
var ErrBlank = errors.New("blank line")

// SyntaxError reports a line that could not be split into words.
type SyntaxError struct {
	Line string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("could not parse %q: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Command is one parsed input line.
type Command struct {
	// Raw is the input line without its terminator.
	Raw string

	// Argv holds the program name followed by its arguments.
	Argv []string

	// Background is set when the line ended in '&'.
	Background bool

	// Dropped counts the words cut off because the line had more than
	// the allowed number of words. The command still runs with Argv.
	Dropped int

	// Exit is set for the literal line "exit".
	Exit bool
}

// Name returns the program name.
func (c Command) Name() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// Overflow reports whether words were dropped from the line.
func (c Command) Overflow() bool {
	return c.Dropped > 0
}

func (c Command) String() string {
	return strings.Join(c.Argv, " ")
}

// Parse builds a Command from raw. A trailing '&' directly before the
// line terminator selects background mode and is removed. At most
// maxArgs words, program name included, are kept.
func Parse(raw string, maxArgs int) (Command, error) {
	line := strings.TrimSuffix(raw, "\n")
	if line == "" {
		return Command{}, ErrBlank
	}

	cmd := Command{Raw: line}
	if strings.HasSuffix(line, "&") {
		cmd.Background = true
		line = line[:len(line)-1]
	}

	if !cmd.Background && line == "exit" {
		cmd.Exit = true
		cmd.Argv = []string{"exit"}
		return cmd, nil
	}

	words, err := shellquote.Split(line)
	if err != nil {
		return Command{}, &SyntaxError{Line: cmd.Raw, Err: err}
	}
	if len(words) == 0 {
		return Command{}, ErrBlank
	}

	if maxArgs > 0 && len(words) > maxArgs {
		cmd.Dropped = len(words) - maxArgs
		words = words[:maxArgs]
	}
	cmd.Argv = words
	return cmd, nil
}
