package sshdoor

import (
	stderrors "errors"
	"io"
	"time"

	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/session"
	"golang.org/x/crypto/ssh"
)

// MaxOutput is the most output kept from a command.
const MaxOutput = 1000

type readResult struct {
	data []byte
	err  error
}

// run starts cmd on sess and collects its result. Output is the first
// stdout read within timeout; the exit status is waited for within what is
// left of it. A command still running when the time is up succeeds with
// whatever it printed.
func run(s *session.Session, sess *ssh.Session, cmd string, timeout time.Duration) (string, error) {
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return "", door.Local("%v", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return "", door.Local("%v", err)
	}
	if err := sess.Start(cmd); err != nil {
		return "", door.Local("%v", err)
	}
	if err := s.Advance(session.ReadingResult); err != nil {
		return "", err
	}

	go func() { _, _ = io.Copy(io.Discard, stderr) }()

	first := make(chan readResult, 1)
	go func() {
		buf := make([]byte, MaxOutput)
		n, err := stdout.Read(buf)
		first <- readResult{data: buf[:n], err: err}
		if err == nil {
			_, _ = io.Copy(io.Discard, stdout)
		}
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var output []byte
	select {
	case r := <-first:
		if len(r.data) == 0 {
			if r.err == nil || stderrors.Is(r.err, io.EOF) {
				return "", door.Local("Remote end closed connection")
			}
			return "", door.Local("%v", r.err)
		}
		output = r.data
	case <-deadline.C:
		s.Logger().Debug("ssh: no output within %s", timeout)
		return "", nil
	}

	exited := make(chan error, 1)
	go func() { exited <- sess.Wait() }()

	select {
	case err := <-exited:
		return exitOutcome(output, err)
	case <-deadline.C:
		s.Logger().Debug("ssh: exit status not received within %s", timeout)
		return string(output), nil
	}
}

// exitOutcome classifies the result of Session.Wait. A missing exit status
// counts as success.
func exitOutcome(output []byte, err error) (string, error) {
	if err == nil {
		return string(output), nil
	}
	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		if exitErr.ExitStatus() == 0 {
			return string(output), nil
		}
		return "", &door.Failure{Code: door.RemoteError, Message: string(output), Cause: err}
	}
	var missing *ssh.ExitMissingError
	if stderrors.As(err, &missing) {
		return string(output), nil
	}
	return "", &door.Failure{Code: door.LocalError, Message: err.Error(), Cause: err}
}
