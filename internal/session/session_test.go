package session

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/lock"
	"github.com/rileyhilliard/doorctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKind = "test-transport"

type fakeBinding struct {
	kind        string
	validateErr error
	run         func(ctx context.Context, s *Session) error
	runCalls    int
	mu          sync.Mutex
}

func (b *fakeBinding) Kind() string {
	if b.kind == "" {
		return testKind
	}
	return b.kind
}

func (b *fakeBinding) Validate(door.Request) error { return b.validateErr }

func (b *fakeBinding) Run(ctx context.Context, s *Session) error {
	b.mu.Lock()
	b.runCalls++
	b.mu.Unlock()
	if b.run == nil {
		return nil
	}
	return b.run(ctx, s)
}

func (b *fakeBinding) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runCalls
}

// recordingSink collects every outcome it receives.
type recordingSink struct {
	mu       sync.Mutex
	outcomes []door.Outcome
	// lockHeld records whether the transport lock was held during delivery.
	lockHeld []bool
	kind     string
}

func newRecordingSink(kind string) *recordingSink {
	return &recordingSink{kind: kind}
}

func (r *recordingSink) OnTaskResult(setupID int, code door.ReplyCode, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, door.Outcome{SetupID: setupID, Code: code, Message: message})
	r.lockHeld = append(r.lockHeld, lock.Held(r.kind))
}

func (r *recordingSink) all() []door.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]door.Outcome(nil), r.outcomes...)
}

type fakeHandle struct {
	name   string
	closed int
	order  *[]string
	mu     sync.Mutex
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	if h.order != nil {
		*h.order = append(*h.order, h.name)
	}
	return nil
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func request(id int) door.Request {
	return door.Request{SetupID: id, Action: door.Open}
}

func waitDone(t *testing.T, s *Session) door.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o, err := s.Wait(ctx)
	require.NoError(t, err, "session did not finish")
	return o
}

func TestStart_Success(t *testing.T) {
	sink := newRecordingSink(testKind)
	var states []State
	var heldWhileRunning bool
	b := &fakeBinding{run: func(ctx context.Context, s *Session) error {
		heldWhileRunning = lock.Held(testKind)
		for _, st := range []State{Negotiating, Executing, ReadingResult} {
			if err := s.Advance(st); err != nil {
				return err
			}
			states = append(states, s.State())
		}
		s.Succeed("hi\n")
		return nil
	}}

	assert.False(t, lock.Held(testKind))
	s := Start(context.Background(), b, request(7), sink)
	o := waitDone(t, s)

	want := door.Outcome{SetupID: 7, Code: door.Success, Message: "hi\n"}
	if diff := cmp.Diff(want, o); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, heldWhileRunning, "lock should be held while running")
	assert.Equal(t, []State{Negotiating, Executing, ReadingResult}, states)
	assert.Equal(t, Closed, s.State())
	assert.False(t, lock.Held(testKind))
	assert.Equal(t, []door.Outcome{want}, sink.all())
	assert.Equal(t, []bool{false}, sink.lockHeld, "lock must be released before delivery")
}

func TestStart_NegativeSetupID(t *testing.T) {
	sink := newRecordingSink(testKind)
	b := &fakeBinding{}

	s := Start(context.Background(), b, request(-1), sink)

	o, ok := s.Outcome()
	require.True(t, ok, "outcome should be delivered synchronously")
	assert.Equal(t, door.LocalError, o.Code)
	assert.Equal(t, "Internal Error", o.Message)
	assert.Equal(t, 0, b.calls())
	assert.False(t, lock.Held(testKind))
}

func TestStart_ValidationFailure(t *testing.T) {
	sink := newRecordingSink(testKind)
	b := &fakeBinding{validateErr: door.Local("Server address is empty.")}

	s := Start(context.Background(), b, request(1), sink)

	o := waitDone(t, s)
	assert.Equal(t, door.LocalError, o.Code)
	assert.Equal(t, "Server address is empty.", o.Message)
	assert.Equal(t, 0, b.calls(), "binding must not run when validation fails")
	assert.Len(t, sink.all(), 1)
}

func TestStart_TransportBusy(t *testing.T) {
	held, err := lock.Acquire(door.KindSSH, lock.NewLockInfo(99, "open"))
	require.NoError(t, err)
	defer held.Release()

	b := &fakeBinding{kind: door.KindSSH}
	s := Start(context.Background(), b, request(1), nil)

	o := waitDone(t, s)
	assert.Equal(t, door.LocalError, o.Code)
	assert.Equal(t, "SSH is already in use.", o.Message)
	assert.Equal(t, 0, b.calls())
	assert.True(t, lock.Held(door.KindSSH), "busy session must not release someone else's lock")
}

func TestStart_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode door.ReplyCode
		wantMsg  string
	}{
		{"plain error", stderrors.New("broken pipe"), door.LocalError, "broken pipe"},
		{"remote failure", door.Remote("Key was not accepted."), door.RemoteError, "Key was not accepted."},
		{"local failure", door.Local("Failed to decode key pair."), door.LocalError, "Failed to decode key pair."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBinding{run: func(context.Context, *Session) error { return tt.err }}
			o := waitDone(t, Start(context.Background(), b, request(2), nil))

			assert.Equal(t, tt.wantCode, o.Code)
			assert.Equal(t, tt.wantMsg, o.Message)
			assert.False(t, lock.Held(testKind))
		})
	}
}

func TestStart_PanicIsReported(t *testing.T) {
	log := logger.NewBufferLogger()
	b := &fakeBinding{run: func(context.Context, *Session) error { panic("boom") }}

	o := waitDone(t, Start(context.Background(), b, request(3), nil, WithLogger(log)))

	assert.Equal(t, door.LocalError, o.Code)
	assert.Equal(t, "Internal error: boom", o.Message)
	assert.False(t, lock.Held(testKind))
	assert.True(t, log.HasLevel("error"))
}

func TestStart_NoOutcomeFromBinding(t *testing.T) {
	b := &fakeBinding{run: func(context.Context, *Session) error { return nil }}

	o := waitDone(t, Start(context.Background(), b, request(4), nil))

	assert.Equal(t, door.LocalError, o.Code)
	assert.Equal(t, closedEarlyMessage, o.Message)
}

func TestFinish_ExactlyOnce(t *testing.T) {
	sink := newRecordingSink(testKind)
	b := &fakeBinding{run: func(ctx context.Context, s *Session) error {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				switch i % 3 {
				case 0:
					s.Succeed("ok")
				case 1:
					s.Fail(door.Remote("late disconnect"))
				default:
					s.Close()
				}
			}(i)
		}
		wg.Wait()
		return stderrors.New("returned after outcome")
	}}

	s := Start(context.Background(), b, request(5), sink)
	waitDone(t, s)
	s.Close()
	s.Close()

	assert.Len(t, sink.all(), 1)
	assert.False(t, s.Finish(door.Success, "again"))
	assert.Len(t, sink.all(), 1)
}

func TestOwn_ClosesHandlesInReverseOrder(t *testing.T) {
	var order []string
	conn := &fakeHandle{name: "conn", order: &order}
	channel := &fakeHandle{name: "channel", order: &order}
	late := &fakeHandle{name: "late"}

	var sess *Session
	b := &fakeBinding{run: func(ctx context.Context, s *Session) error {
		sess = s
		s.Own(conn)
		s.Own(channel)
		return door.Remote("exit status 2")
	}}

	waitDone(t, Start(context.Background(), b, request(6), nil))
	sess.Own(late)
	sess.Close()

	assert.Equal(t, []string{"channel", "conn"}, order)
	assert.Equal(t, 1, conn.closeCount())
	assert.Equal(t, 1, channel.closeCount())
	assert.Equal(t, 1, late.closeCount(), "handle owned after termination is closed at once")
}

func TestAdvance(t *testing.T) {
	s := newSession(testKind, request(1), nil)
	s.state = Connecting

	require.NoError(t, s.Advance(Negotiating))
	require.NoError(t, s.Advance(ReadingResult), "skipping forward is allowed")

	err := s.Advance(Executing)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ReadingResult, te.From)
	assert.Equal(t, Executing, te.To)

	assert.Error(t, s.Advance(ReadingResult), "staying in place is refused")
	assert.Error(t, s.Advance(Closed), "closed is reached through an outcome only")

	s.Succeed("")
	assert.ErrorIs(t, s.Advance(Executing), ErrClosed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "READING_RESULT", ReadingResult.String())
	assert.Equal(t, "NEGOTIATING", Authenticating.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestWait_ContextDone(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBinding{run: func(ctx context.Context, s *Session) error {
		<-release
		s.Succeed("")
		return nil
	}}
	s := Start(context.Background(), b, request(8), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	waitDone(t, s)
}
