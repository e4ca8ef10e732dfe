package isolation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
	timeboxerrors "github.com/amp-labs/amp-timebox/errors"
	"github.com/amp-labs/amp-timebox/latch"
	"github.com/google/uuid"
)

// session is the state of one isolated attempt. It is created for a single
// attempt and torn down at its end.
type session struct {
	id     string
	index  int
	marker string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	output *os.File

	ready   *latch.Signal
	exited  *latch.Signal
	drained chan struct{}

	// waitErr is written before exited is set and read only after it.
	waitErr error
	log     *attempt.Log
}

func newSession(index int) *session {
	id := uuid.NewString()

	return &session{
		id:      id,
		index:   index,
		marker:  MarkerPrefix + id,
		ready:   latch.New("ready"),
		exited:  latch.New("exited"),
		drained: make(chan struct{}),
		log:     attempt.NewLog(),
	}
}

// start launches cmd with stdout and stderr sharing one pipe, so lines keep
// the order the child wrote them in.
func (s *session) start(cmd *exec.Cmd) error {
	s.cmd = cmd

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating output pipe: %w", err)
	}

	cmd.Stdout = w
	cmd.Stderr = w

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = r.Close()
		_ = w.Close()

		return fmt.Errorf("creating input pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()

		return err
	}

	// The child holds its own copy of the write end.
	_ = w.Close()

	s.stdin = stdin
	s.output = r

	go s.scan()
	go s.wait()

	return nil
}

func (s *session) pid() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}

	return s.cmd.Process.Pid
}

func (s *session) scan() {
	defer close(s.drained)

	scanner := bufio.NewScanner(s.output)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize) //nolint:mnd

	for scanner.Scan() {
		line := scanner.Text()

		if !s.ready.IsSet() && strings.Contains(line, s.marker) {
			s.ready.Set()

			if rest := strings.TrimSpace(strings.Replace(line, s.marker, "", 1)); rest != "" {
				s.log.Append(rest)
			}

			continue
		}

		s.log.Append(line)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.log.Append(fmt.Sprintf("<output lost: %v>", err))
	}
}

func (s *session) wait() {
	s.waitErr = s.cmd.Wait()
	s.exited.Set()
}

// release lets the child past the handshake.
func (s *session) release() error {
	if _, err := io.WriteString(s.stdin, "\n"); err != nil {
		return fmt.Errorf("%w: releasing child: %w", ErrHandshake, err)
	}

	return nil
}

// outcome classifies the exit of the child. It must only be called once
// exited is set. An exit with unrunnableExit (when positive) means the child
// could not launch its target.
func (s *session) outcome(unrunnableExit int) (attempt.Outcome, error) {
	code, ok := exitCode(s.waitErr)

	switch {
	case !ok:
		return attempt.ProcessTimedOut, fmt.Errorf("%w: no exit status: %w", attempt.ErrProcessTimeout, s.waitErr)
	case code == 0:
		return attempt.Passed, nil
	case unrunnableExit > 0 && code == unrunnableExit:
		return attempt.Inconclusive, fmt.Errorf("%w: child could not launch its target (exit status %d)",
			attempt.ErrUnrunnable, code)
	default:
		return attempt.Failed, &attempt.ExitError{Code: code}
	}
}

// kill kills the child's process group and waits up to timeout for the
// child to be reaped. It reports whether the child is confirmed gone.
func (s *session) kill(timeout time.Duration) (bool, error) {
	err := killProcessGroup(s.cmd)

	return s.exited.Wait(timeout), err
}

// teardown kills whatever is left of the child, waits for its output to be
// drained and releases the pipes.
func (s *session) teardown(killTimeout time.Duration) error {
	if s.pid() == 0 {
		return nil
	}

	var errs timeboxerrors.Collection

	gone, err := s.kill(killTimeout)
	errs.Addf(err, "killing process group %d", s.pid())

	if !gone {
		errs.Add(fmt.Errorf("%w: pid %d", ErrKillUnconfirmed, s.pid()))
	}

	errs.Addf(ignoreClosed(s.stdin.Close()), "closing stdin")

	select {
	case <-s.drained:
	case <-time.After(drainTimeout):
		// Something outside the process group still holds the write end.
		s.log.Append("<output truncated: pipe still open after exit>")
	}

	errs.Addf(ignoreClosed(s.output.Close()), "closing output")

	select {
	case <-s.drained:
	case <-time.After(drainTimeout):
		errs.Add(errReaderStuck)
	}

	if !errs.HasError() {
		return nil
	}

	return fmt.Errorf("tearing down pid %d: %w", s.pid(), errs.GetError())
}

func ignoreClosed(err error) error {
	if errors.Is(err, os.ErrClosed) {
		return nil
	}

	return err
}
