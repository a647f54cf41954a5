package shell

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"smallshell/internal/command"
	"smallshell/internal/config"
	"smallshell/internal/proc"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// lineFeed hands lines to the shell one at a time; closing it ends input.
type lineFeed chan string

func (f lineFeed) ReadLine() (string, error) {
	line, ok := <-f
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

var (
	spawnedRe    = regexp.MustCompile(`==> (\d+) - spawned (foreground|background) process`)
	terminatedRe = regexp.MustCompile(`==> (\d+) - process terminated \(([^)]*)\)`)
	elapsedRe    = regexp.MustCompile(`==> execution time: ([0-9.]+) seconds`)
)

func pids(re *regexp.Regexp, out string) []int {
	var res []int
	for _, m := range re.FindAllStringSubmatch(out, -1) {
		pid, _ := strconv.Atoi(m[1])
		res = append(res, pid)
	}
	return res
}

func testConfig(t *testing.T, strategy string) *config.Config {
	t.Helper()
	home := t.TempDir()
	return &config.Config{
		HistoryFile:   filepath.Join(home, ".myshell_history"),
		HomeDir:       home,
		Strategy:      strategy,
		MaxLineLength: config.DefaultMaxLineLength,
		MaxArgs:       config.DefaultMaxArgs,
	}
}

func childOutput(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "child-stdout"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func readFile(t *testing.T, f *os.File) string {
	t.Helper()
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func keepWorkingDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}

type session struct {
	out   *syncBuffer
	child *os.File
	feed  lineFeed
	done  chan error
}

func startSession(t *testing.T, cfg *config.Config) *session {
	t.Helper()
	s := &session{
		out:   &syncBuffer{},
		child: childOutput(t),
		feed:  make(lineFeed),
		done:  make(chan error, 1),
	}
	sh, err := New(cfg,
		WithInput(s.feed),
		WithOutput(s.out, s.out),
		WithSpawner(&proc.Spawner{Stdout: s.child, Stderr: s.child}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go func() { s.done <- sh.Run() }()
	return s
}

func (s *session) send(t *testing.T, line string) {
	t.Helper()
	select {
	case s.feed <- line:
	case <-time.After(5 * time.Second):
		t.Fatalf("shell did not read %q", line)
	}
}

func (s *session) waitOutput(t *testing.T, cond func(out string) bool) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if out := s.out.String(); cond(out) {
			return out
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output never matched:\n%s", s.out.String())
	return ""
}

func (s *session) exit(t *testing.T) {
	t.Helper()
	s.send(t, "exit")
	select {
	case err := <-s.done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}
}

func runLines(t *testing.T, cfg *config.Config, input string) (out, child string) {
	t.Helper()
	buf := &bytes.Buffer{}
	f := childOutput(t)
	sh, err := New(cfg,
		WithInput(command.NewStreamReader(strings.NewReader(input), cfg.MaxLineLength)),
		WithOutput(buf, buf),
		WithSpawner(&proc.Spawner{Stdout: f, Stderr: f}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sh.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return buf.String(), readFile(t, f)
}

func TestRun_Foreground(t *testing.T) {
	for _, strategy := range []string{config.StrategySignal, config.StrategyPoll} {
		t.Run(strategy, func(t *testing.T) {
			out, child := runLines(t, testConfig(t, strategy), "echo hi\nexit\n")

			if child != "hi\n" {
				t.Errorf("child output = %q, want %q", child, "hi\n")
			}
			spawned := pids(spawnedRe, out)
			terminated := pids(terminatedRe, out)
			if len(spawned) != 1 || len(terminated) != 1 || spawned[0] != terminated[0] {
				t.Fatalf("spawned %v, terminated %v:\n%s", spawned, terminated, out)
			}
			if !strings.Contains(out, "spawned foreground process") {
				t.Errorf("missing foreground announcement:\n%s", out)
			}
			if !strings.Contains(out, "process terminated (exit status 0)") {
				t.Errorf("missing exit status:\n%s", out)
			}

			m := elapsedRe.FindStringSubmatch(out)
			if m == nil {
				t.Fatalf("missing execution time:\n%s", out)
			}
			secs, err := strconv.ParseFloat(m[1], 64)
			if err != nil || secs <= 0 {
				t.Errorf("execution time = %q", m[1])
			}
			if strings.Index(out, "process terminated") > strings.Index(out, "execution time") {
				t.Errorf("execution time reported before termination:\n%s", out)
			}
		})
	}
}

func TestRun_ExitWithoutSpawn(t *testing.T) {
	out, child := runLines(t, testConfig(t, config.StrategySignal), "exit\necho never\n")
	if out != "" || child != "" {
		t.Fatalf("out = %q, child = %q", out, child)
	}
}

func TestRun_EndOfInput(t *testing.T) {
	out, child := runLines(t, testConfig(t, config.StrategyPoll), "echo a\n")
	if child != "a\n" {
		t.Errorf("child output = %q", child)
	}
	if len(pids(terminatedRe, out)) != 1 {
		t.Errorf("output:\n%s", out)
	}
}

func TestRun_BlankLines(t *testing.T) {
	out, _ := runLines(t, testConfig(t, config.StrategySignal), "\n   \n&\nexit\n")
	if out != "" {
		t.Fatalf("out = %q", out)
	}
}

func TestRun_BackgroundSignal(t *testing.T) {
	s := startSession(t, testConfig(t, config.StrategySignal))

	start := time.Now()
	s.send(t, "sleep 0.3 &")
	out := s.waitOutput(t, func(out string) bool { return spawnedRe.MatchString(out) })
	if !strings.Contains(out, "spawned background process") {
		t.Fatalf("missing background announcement:\n%s", out)
	}
	if time.Since(start) > 250*time.Millisecond {
		t.Fatal("background spawn blocked the loop")
	}
	if terminatedRe.MatchString(out) {
		t.Fatalf("terminated too early:\n%s", out)
	}

	// No further command is entered; the report must arrive on its own.
	out = s.waitOutput(t, func(out string) bool { return terminatedRe.MatchString(out) })
	if time.Since(start) < 250*time.Millisecond {
		t.Fatalf("terminated after %v", time.Since(start))
	}
	if sp, tp := pids(spawnedRe, out), pids(terminatedRe, out); len(tp) != 1 || sp[0] != tp[0] {
		t.Fatalf("spawned %v, terminated %v", sp, tp)
	}
	if strings.Contains(out, "execution time") {
		t.Errorf("background job timed:\n%s", out)
	}
	s.exit(t)
}

func TestRun_BackgroundPoll(t *testing.T) {
	s := startSession(t, testConfig(t, config.StrategyPoll))

	s.send(t, "sleep 0.1 &")
	s.waitOutput(t, func(out string) bool { return spawnedRe.MatchString(out) })
	bg := pids(spawnedRe, s.out.String())[0]

	time.Sleep(300 * time.Millisecond)
	if terminatedRe.MatchString(s.out.String()) {
		t.Fatalf("reported before the next command:\n%s", s.out.String())
	}

	s.send(t, "true")
	out := s.waitOutput(t, func(out string) bool { return len(pids(terminatedRe, out)) == 2 })
	tp := pids(terminatedRe, out)
	if tp[0] != bg && tp[1] != bg {
		t.Fatalf("background pid %d not reported:\n%s", bg, out)
	}
	s.exit(t)
}

func TestRun_ExactlyOnce(t *testing.T) {
	for _, strategy := range []string{config.StrategySignal, config.StrategyPoll} {
		t.Run(strategy, func(t *testing.T) {
			var input strings.Builder
			for i := 0; i < 3; i++ {
				input.WriteString("sleep 0.1 &\n")
				input.WriteString("true\n")
			}
			input.WriteString("sleep 0.1&\n")
			input.WriteString("sleep 0.4\n")
			input.WriteString("exit\n")

			out, _ := runLines(t, testConfig(t, strategy), input.String())

			spawned := pids(spawnedRe, out)
			if len(spawned) != 8 {
				t.Fatalf("spawned %d children:\n%s", len(spawned), out)
			}
			counts := make(map[int]int)
			for _, pid := range pids(terminatedRe, out) {
				counts[pid]++
			}
			for _, pid := range spawned {
				if counts[pid] != 1 {
					t.Errorf("pid %d reported %d times", pid, counts[pid])
				}
			}
			if len(counts) != len(spawned) {
				t.Errorf("reports for %d pids, spawned %d", len(counts), len(spawned))
			}
		})
	}
}

func TestRun_ChildGetsDefaultInterrupt(t *testing.T) {
	s := startSession(t, testConfig(t, config.StrategySignal))

	s.send(t, "true")
	s.waitOutput(t, func(out string) bool { return terminatedRe.MatchString(out) })

	// The interpreter itself survives an interrupt.
	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatal(err)
	}

	s.send(t, "sh -c 'kill -INT $$; sleep 5'")
	out := s.waitOutput(t, func(out string) bool { return len(pids(terminatedRe, out)) == 2 })
	if !strings.Contains(out, "signal: interrupt") {
		t.Fatalf("child did not die of the interrupt:\n%s", out)
	}
	s.exit(t)
}

func TestExecute_TooManyArguments(t *testing.T) {
	out, child := runLines(t, testConfig(t, config.StrategyPoll), "echo 1 2 3 4 5 6 7\n")
	if !strings.Contains(out, "Too many arguments!") {
		t.Errorf("missing warning:\n%s", out)
	}
	if child != "1 2 3 4 5\n" {
		t.Errorf("child output = %q, want the truncated command to run", child)
	}
}

func TestExecute_CouldNotExecute(t *testing.T) {
	out, _ := runLines(t, testConfig(t, config.StrategySignal), "no-such-program-abc\necho after\n")
	if !strings.Contains(out, "Could not execute command: no-such-program-abc") {
		t.Errorf("missing exec failure:\n%s", out)
	}
	if len(pids(terminatedRe, out)) != 1 {
		t.Errorf("loop did not continue:\n%s", out)
	}
}

func TestExecute_SyntaxError(t *testing.T) {
	out, child := runLines(t, testConfig(t, config.StrategySignal), "echo 'open\necho ok\n")
	if !strings.Contains(out, "ERROR: could not parse") {
		t.Errorf("missing parse error:\n%s", out)
	}
	if child != "ok\n" {
		t.Errorf("child output = %q", child)
	}
}

func TestRun_LineTooLong(t *testing.T) {
	cfg := testConfig(t, config.StrategyPoll)
	cfg.MaxLineLength = 10
	out, child := runLines(t, cfg, "echo 0123456789abc\n")
	if !strings.Contains(out, "Command too long, truncated to 10 characters") {
		t.Errorf("missing warning:\n%s", out)
	}
	if child != "01234\n" {
		t.Errorf("child output = %q", child)
	}
}

func TestRun_LineLongerThanReadBuffer(t *testing.T) {
	cfg := testConfig(t, config.StrategyPoll)
	input := "echo " + strings.Repeat("a", 70000) + "\necho after\nexit\n"
	out, child := runLines(t, cfg, input)

	if !strings.Contains(out, "Command too long, truncated to 70 characters") {
		t.Errorf("missing warning:\n%s", out)
	}
	want := strings.Repeat("a", cfg.MaxLineLength-len("echo ")) + "\nafter\n"
	if child != want {
		t.Errorf("child output = %.80q, want %.80q", child, want)
	}
}

// failingSpawner fails every spawn as if the OS were out of processes.
type failingSpawner struct{}

func (failingSpawner) Spawn(argv []string, mode proc.Mode) (*proc.Process, error) {
	return nil, &proc.SpawnError{Name: argv[0], Err: syscall.EAGAIN}
}

// scriptReader hands out lines and counts how many were read.
type scriptReader struct {
	lines []string
	reads int
}

func (r *scriptReader) ReadLine() (string, error) {
	if r.reads == len(r.lines) {
		return "", io.EOF
	}
	r.reads++
	return r.lines[r.reads-1], nil
}

func TestRun_SpawnFailureIsFatal(t *testing.T) {
	for _, line := range []string{"sleep 1", "sleep 1 &"} {
		t.Run(line, func(t *testing.T) {
			buf := &bytes.Buffer{}
			in := &scriptReader{lines: []string{line, "echo never", "exit"}}
			sh, err := New(testConfig(t, config.StrategySignal),
				WithInput(in),
				WithOutput(buf, buf),
				WithSpawner(failingSpawner{}),
			)
			if err != nil {
				t.Fatal(err)
			}

			err = sh.Run()
			var spawnErr *proc.SpawnError
			if !errors.As(err, &spawnErr) {
				t.Fatalf("Run = %v, want *proc.SpawnError", err)
			}
			if !errors.Is(err, syscall.EAGAIN) {
				t.Errorf("Run = %v, want EAGAIN", err)
			}
			if !strings.Contains(buf.String(), "==> ERROR: Couldn't fork sleep!") {
				t.Errorf("missing fork failure:\n%s", buf.String())
			}
			if spawnedRe.MatchString(buf.String()) {
				t.Errorf("announced a spawn that failed:\n%s", buf.String())
			}
			if in.reads != 1 {
				t.Errorf("read %d lines after the failure, want none", in.reads-1)
			}
		})
	}
}

func TestRun_History(t *testing.T) {
	cfg := testConfig(t, config.StrategyPoll)
	runLines(t, cfg, "true\n\ntrue &\nexit\n")

	data, err := os.ReadFile(cfg.HistoryFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "true\ntrue &\nexit\n" {
		t.Fatalf("history = %q", got)
	}
}

func TestChangeDirectory(t *testing.T) {
	keepWorkingDir(t)
	cfg := testConfig(t, config.StrategySignal)
	target := t.TempDir()
	file := filepath.Join(target, "plain-file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cwd := func() string {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		resolved, err := filepath.EvalSymlinks(wd)
		if err != nil {
			t.Fatal(err)
		}
		return resolved
	}
	resolve := func(p string) string {
		r, err := filepath.EvalSymlinks(p)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	tests := []struct {
		name    string
		line    string
		wantDir string
		wantMsg string
	}{
		{"valid", "cd " + target, target, ""},
		{"no argument", "cd", target, "Invalid argument count to cd!"},
		{"two arguments", "cd " + target + " /", target, "Invalid argument count to cd!"},
		{"nonexistent", "cd /nonexistent-dir-xyz", cfg.HomeDir, "Invalid directory, sending you home..."},
		{"back to target", "cd " + target, target, ""},
		{"not a directory", "cd " + file, cfg.HomeDir, "Invalid directory, sending you home..."},
	}

	buf := &bytes.Buffer{}
	sh, err := New(cfg, WithInput(lineFeed(nil)), WithOutput(buf, buf))
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		buf.Reset()
		exit, err := sh.Execute(tt.line)
		if exit || err != nil {
			t.Fatalf("%s: Execute = %v, %v", tt.name, exit, err)
		}
		if got := cwd(); got != resolve(tt.wantDir) {
			t.Errorf("%s: cwd = %q, want %q", tt.name, got, tt.wantDir)
		}
		if tt.wantMsg == "" && buf.Len() != 0 {
			t.Errorf("%s: unexpected output %q", tt.name, buf.String())
		}
		if tt.wantMsg != "" && !strings.Contains(buf.String(), tt.wantMsg) {
			t.Errorf("%s: output %q does not contain %q", tt.name, buf.String(), tt.wantMsg)
		}
		if spawnedRe.MatchString(buf.String()) {
			t.Errorf("%s: cd spawned a process", tt.name)
		}
	}
}

func TestChangeDirectory_ChildrenFollow(t *testing.T) {
	keepWorkingDir(t)
	dir := t.TempDir()
	_, child := runLines(t, testConfig(t, config.StrategyPoll), fmt.Sprintf("cd %s\npwd\n", dir))

	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := filepath.EvalSymlinks(strings.TrimSpace(child))
	if err != nil {
		t.Fatalf("pwd printed %q: %v", child, err)
	}
	if got != want {
		t.Fatalf("pwd = %q, want %q", got, want)
	}
}

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	sh, err := New(testConfig(t, config.StrategySignal), WithInput(lineFeed(nil)), WithOutput(buf, nil))
	if err != nil {
		t.Fatalf("Failed to initialize shell: %v", err)
	}
	if sh == nil {
		t.Fatal("Shell is nil after initialization")
	}
	if sh.reporter.errOut != buf {
		t.Error("error reports must fall back to the output writer")
	}

	_, err = New(testConfig(t, "busy"), WithInput(lineFeed(nil)), WithOutput(buf, buf))
	if err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
}
