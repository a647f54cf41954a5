package shell

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/chzyer/readline"

	"smallshell/internal/command"
	"smallshell/internal/config"
	"smallshell/internal/history"
	"smallshell/internal/proc"
	"smallshell/internal/reaper"
)

var logger = log.New(io.Discard, "", log.LstdFlags)

type Shell struct {
	config     *config.Config
	history    *history.History
	reader     command.LineReader
	reporter   *Reporter
	manager    *proc.Manager
	detector   reaper.Detector
	signalChan chan os.Signal
	closers    []io.Closer
}

// Option customizes a Shell built by New.
type Option func(*options)

type options struct {
	reader  command.LineReader
	out     io.Writer
	errOut  io.Writer
	spawner proc.Starter
}

// WithInput reads command lines from r instead of the process's stdin.
func WithInput(r command.LineReader) Option {
	return func(o *options) { o.reader = r }
}

// WithOutput sends reports to out and error reports to errOut.
func WithOutput(out, errOut io.Writer) Option {
	return func(o *options) { o.out, o.errOut = out, errOut }
}

// WithSpawner starts children through sp.
func WithSpawner(sp proc.Starter) Option {
	return func(o *options) { o.spawner = sp }
}

func New(cfg *config.Config, opts ...Option) (*Shell, error) {
	if cfg.Debug {
		l := log.New(os.Stderr, "myshell: ", log.LstdFlags|log.Lmicroseconds)
		logger = l
		proc.SetLogger(l)
		reaper.SetLogger(l)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	hist, err := history.New(cfg.HistoryFile, history.DefaultMaxItems)
	if err != nil {
		return nil, fmt.Errorf("error initializing history: %w", err)
	}

	s := &Shell{
		config:     cfg,
		history:    hist,
		signalChan: make(chan os.Signal, 1),
	}

	if o.reader == nil {
		if readline.IsTerminal(int(os.Stdin.Fd())) {
			term, err := newTerminal(cfg.Prompt, hist)
			if err != nil {
				return nil, err
			}
			o.reader = term
			s.closers = append(s.closers, term)
			if o.out == nil {
				o.out, o.errOut = term.Stdout(), term.Stderr()
			}
		} else {
			o.reader = command.NewStreamReader(os.Stdin, cfg.MaxLineLength)
		}
	}
	if o.out == nil {
		o.out, o.errOut = os.Stdout, os.Stderr
	}
	if o.errOut == nil {
		o.errOut = o.out
	}
	if o.spawner == nil {
		o.spawner = &proc.Spawner{}
	}

	s.reporter = NewReporter(o.out, o.errOut)
	s.reader = &command.BoundedReader{
		R:   o.reader,
		Max: cfg.MaxLineLength,
		Clipped: func(string) {
			s.reporter.LineTooLong(cfg.MaxLineLength)
		},
	}
	s.manager = &proc.Manager{Spawner: o.spawner, Observer: s.reporter}

	s.detector, err = reaper.New(reaper.Strategy(cfg.Strategy), s.reporter.Terminated)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Run reads and executes lines until exit or end of input. It returns a
// non-nil error only when a child process could not be created.
func (s *Shell) Run() error {
	stop := s.setupSignalHandling()
	defer stop()
	defer s.close()

	if err := s.detector.Start(); err != nil {
		return fmt.Errorf("error starting termination detection: %w", err)
	}
	logger.Printf("session started, %s termination detection", s.config.Strategy)

	for {
		line, err := s.reader.ReadLine()
		if err == io.EOF {
			return s.detector.Close()
		}
		if err != nil {
			s.detector.Close()
			return fmt.Errorf("error reading input: %w", err)
		}

		exit, err := s.Execute(line)
		if err != nil {
			s.detector.Close()
			return err
		}
		if exit {
			return s.detector.Close()
		}
	}
}

// Execute runs one input line. exit is true for the exit command; err is
// non-nil only for a fatal spawn failure.
func (s *Shell) Execute(line string) (exit bool, err error) {
	cmd, err := command.Parse(line, s.config.MaxArgs)
	if errors.Is(err, command.ErrBlank) {
		return false, nil
	}
	if err != nil {
		s.reporter.Error(err)
		return false, nil
	}

	if err := s.history.Add(cmd.Raw); err != nil {
		logger.Printf("history: %v", err)
	}

	if cmd.Exit {
		return true, nil
	}
	if s.executeBuiltin(cmd) {
		return false, nil
	}

	if cmd.Overflow() {
		s.reporter.TooManyArguments(cmd)
	}
	return false, s.runExternal(cmd)
}

func (s *Shell) runExternal(cmd command.Command) error {
	var err error
	if cmd.Background {
		var p *proc.Process
		p, err = s.manager.StartBackground(cmd.Argv)
		if err == nil {
			s.detector.Track(p)
		}
	} else {
		_, err = s.manager.RunForeground(cmd.Argv)
	}
	defer s.detector.AfterSpawn()

	var spawnErr *proc.SpawnError
	var execErr *proc.ExecError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &spawnErr):
		s.reporter.CouldNotFork(spawnErr.Name)
		return err
	case errors.As(err, &execErr):
		s.reporter.CouldNotExecute(execErr.Name)
		return nil
	default:
		logger.Printf("%s: %v", cmd.Name(), err)
		s.reporter.Error(err)
		return nil
	}
}

func (s *Shell) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			logger.Printf("close: %v", err)
		}
	}
}
