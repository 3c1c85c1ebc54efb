// Package session implements the transport-independent connection session:
// the state machine every door request runs through, exactly-once outcome
// delivery, and the guaranteed release of the transport lock and handles.
//
// A Binding supplies the transport specific part. Start validates the
// request, takes the transport lock and runs the binding on its own
// goroutine. Whatever path the binding takes (success, classified failure,
// plain error, panic, or returning without a result) the session delivers
// one outcome to the ResultSink and releases everything it owns.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/lock"
	"github.com/rileyhilliard/doorctl/internal/logger"
	"github.com/rileyhilliard/doorctl/internal/metrics"
)

// ErrClosed is returned by Advance once the session has delivered its outcome.
var ErrClosed = errors.New("session closed")

// Binding implements one transport.
type Binding interface {
	// Kind names the transport; it selects the transport lock.
	Kind() string
	// Validate checks request preconditions. It must not touch the transport.
	Validate(req door.Request) error
	// Run drives the transport until it has reported an outcome through the
	// session, or returns an error to be reported. It must not outlive its
	// own timeouts.
	Run(ctx context.Context, s *Session) error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.rec = r
		}
	}
}

// Session is one request's run through a transport. Sessions are not reused.
type Session struct {
	req     door.Request
	sink    door.ResultSink
	kind    string
	log     logger.Logger
	rec     metrics.Recorder
	started time.Time

	mu      sync.Mutex
	state   State
	lock    *lock.Lock
	handles []io.Closer
	outcome *door.Outcome
	done    chan struct{}
}

const closedEarlyMessage = "Session closed before a result was received."

var kindLabels = map[string]string{
	door.KindSSH:       "SSH",
	door.KindBluetooth: "Bluetooth",
}

func newSession(kind string, req door.Request, sink door.ResultSink, opts ...Option) *Session {
	if sink == nil {
		sink = door.SinkFunc(func(int, door.ReplyCode, string) {})
	}
	s := &Session{
		req:     req,
		sink:    sink,
		kind:    kind,
		log:     logger.Noop(),
		rec:     metrics.Noop(),
		started: time.Now(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a session for req on binding b. Precondition failures and a
// busy transport are reported through sink before Start returns, without
// acquiring any transport resource. Otherwise the binding runs on a new
// goroutine.
func Start(ctx context.Context, b Binding, req door.Request, sink door.ResultSink, opts ...Option) *Session {
	s := newSession(b.Kind(), req, sink, opts...)

	if req.SetupID < 0 {
		s.Fail(door.Local("Internal Error"))
		return s
	}
	if err := b.Validate(req); err != nil {
		s.Fail(err)
		return s
	}

	l, err := lock.Acquire(s.kind, lock.NewLockInfo(req.SetupID, req.Action.String()))
	if err != nil {
		s.log.Warn("%s busy, held by %s", s.kind, lock.Holder(s.kind))
		s.Fail(door.Local("%s is already in use.", kindLabel(s.kind)))
		return s
	}
	s.rec.Acquired(s.kind)

	s.mu.Lock()
	s.lock = l
	s.state = Connecting
	s.mu.Unlock()

	s.log.Debug("session for setup %d (%s) started", req.SetupID, req.Action)
	go s.run(ctx, b)
	return s
}

func (s *Session) run(ctx context.Context, b Binding) {
	defer s.Close()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("binding %s panicked: %v", s.kind, r)
			s.Fail(door.Local("Internal error: %v", r))
		}
	}()

	if err := b.Run(ctx, s); err != nil {
		s.Fail(err)
	}
}

func kindLabel(kind string) string {
	if label, ok := kindLabels[kind]; ok {
		return label
	}
	return kind
}

// Request returns the request this session serves.
func (s *Session) Request() door.Request {
	return s.req
}

// Logger returns the session logger.
func (s *Session) Logger() logger.Logger {
	return s.log
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Advance moves the session forward to next. Moving backwards, staying in
// place, or moving after the outcome was delivered is refused.
// Closed is only reached through an outcome.
func (s *Session) Advance(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Closed {
		return ErrClosed
	}
	if next <= s.state || next >= Closed {
		return &TransitionError{From: s.state, To: next}
	}
	s.log.Debug("%s -> %s", s.state, next)
	s.state = next
	return nil
}

// Own hands a transport handle to the session; it is closed when the
// session terminates, in reverse order of registration. A handle passed
// after termination is closed immediately.
func (s *Session) Own(c io.Closer) {
	if c == nil {
		return
	}
	s.mu.Lock()
	if s.outcome != nil {
		s.mu.Unlock()
		s.closeHandle(c)
		return
	}
	s.handles = append(s.handles, c)
	s.mu.Unlock()
}

// Succeed delivers a Success outcome.
func (s *Session) Succeed(message string) bool {
	return s.Finish(door.Success, message)
}

// Fail delivers the outcome classified from err.
func (s *Session) Fail(err error) bool {
	code, msg := door.Classify(err)
	return s.Finish(code, msg)
}

// Finish delivers the outcome. Only the first call has an effect and returns
// true. The transport lock and all owned handles are released before the
// sink sees the outcome.
func (s *Session) Finish(code door.ReplyCode, message string) bool {
	s.mu.Lock()
	if s.outcome != nil {
		prev := s.outcome.Code
		s.mu.Unlock()
		s.log.Debug("dropping %s (%q), outcome %s already delivered", code, message, prev)
		return false
	}
	o := door.Outcome{SetupID: s.req.SetupID, Code: code, Message: message}
	s.outcome = &o
	s.state = Closed
	l := s.lock
	handles := s.handles
	s.lock = nil
	s.handles = nil
	s.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		s.closeHandle(handles[i])
	}
	if l != nil {
		l.Release()
		s.rec.Released(s.kind)
	}

	s.log.Debug("outcome for setup %d: %s %q", o.SetupID, o.Code, o.Message)
	s.rec.Outcome(s.kind, s.req.Action.String(), o.Code.String(), time.Since(s.started))
	s.sink.OnTaskResult(o.SetupID, o.Code, o.Message)
	close(s.done)
	return true
}

func (s *Session) closeHandle(c io.Closer) {
	if err := c.Close(); err != nil {
		s.log.Debug("closing handle: %v", err)
	}
}

// Close terminates the session. It is idempotent. When no outcome was
// delivered yet a LocalError outcome is delivered, so a request never ends
// without one.
func (s *Session) Close() {
	s.mu.Lock()
	delivered := s.outcome != nil
	s.mu.Unlock()
	if delivered {
		return
	}
	s.Finish(door.LocalError, closedEarlyMessage)
}

// Done is closed after the outcome has been delivered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the delivered outcome, if any.
func (s *Session) Outcome() (door.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return door.Outcome{}, false
	}
	return *s.outcome, true
}

// Wait blocks until the outcome is delivered or ctx is done.
func (s *Session) Wait(ctx context.Context) (door.Outcome, error) {
	select {
	case <-s.done:
		o, _ := s.Outcome()
		return o, nil
	case <-ctx.Done():
		return door.Outcome{}, ctx.Err()
	}
}
