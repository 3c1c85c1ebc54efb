package door

import (
	"errors"
	"fmt"
)

// ReplyCode classifies a terminal outcome.
type ReplyCode int

const (
	Success ReplyCode = iota
	LocalError
	RemoteError
)

func (c ReplyCode) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case LocalError:
		return "LOCAL_ERROR"
	case RemoteError:
		return "REMOTE_ERROR"
	}
	return fmt.Sprintf("ReplyCode(%d)", int(c))
}

// Outcome is the single terminal result of a door request.
type Outcome struct {
	SetupID int
	Code    ReplyCode
	Message string
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Code == Success
}

// ResultSink receives the terminal outcome of a request. A session calls
// OnTaskResult exactly once.
type ResultSink interface {
	OnTaskResult(setupID int, code ReplyCode, message string)
}

// SinkFunc adapts a function to the ResultSink interface.
type SinkFunc func(setupID int, code ReplyCode, message string)

// OnTaskResult calls f.
func (f SinkFunc) OnTaskResult(setupID int, code ReplyCode, message string) {
	f(setupID, code, message)
}

// ChanSink forwards outcomes to a channel. The channel should be buffered;
// a session never delivers more than one outcome to it.
type ChanSink chan Outcome

// OnTaskResult sends the outcome on the channel.
func (c ChanSink) OnTaskResult(setupID int, code ReplyCode, message string) {
	c <- Outcome{SetupID: setupID, Code: code, Message: message}
}

// Failure is an error carrying its outcome classification. Negotiation steps
// return a Failure at the point of detection; any other error reaching the
// session boundary is classified as LocalError.
type Failure struct {
	Code    ReplyCode
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	if f.Cause != nil && f.Message == "" {
		return f.Cause.Error()
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Local creates a LocalError failure.
func Local(format string, args ...interface{}) *Failure {
	return &Failure{Code: LocalError, Message: fmt.Sprintf(format, args...)}
}

// Remote creates a RemoteError failure.
func Remote(format string, args ...interface{}) *Failure {
	return &Failure{Code: RemoteError, Message: fmt.Sprintf(format, args...)}
}

// Classify maps err to a reply code and message.
func Classify(err error) (ReplyCode, string) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code, f.Error()
	}
	return LocalError, err.Error()
}
