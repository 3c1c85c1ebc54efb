package session

import (
	"context"

	"github.com/rileyhilliard/doorctl/internal/door"
)

// Dispatcher selects the binding for a request by its transport kind.
type Dispatcher struct {
	bindings map[string]Binding
	opts     []Option
}

// NewDispatcher creates a dispatcher whose sessions use opts.
func NewDispatcher(opts ...Option) *Dispatcher {
	return &Dispatcher{
		bindings: make(map[string]Binding),
		opts:     opts,
	}
}

// Register adds b, replacing any binding of the same kind.
func (d *Dispatcher) Register(b Binding) {
	d.bindings[b.Kind()] = b
}

// Start begins a session for req with the binding registered for its transport.
func (d *Dispatcher) Start(ctx context.Context, req door.Request, sink door.ResultSink) *Session {
	kind := ""
	if req.Transport != nil {
		kind = req.Transport.Kind()
	}
	b, ok := d.bindings[kind]
	if !ok {
		b = unsupported{kind: kind}
	}
	return Start(ctx, b, req, sink, d.opts...)
}

// Do runs req to completion and returns its outcome. If ctx ends first the
// session keeps running to its own timeout and a LocalError is returned.
func (d *Dispatcher) Do(ctx context.Context, req door.Request) door.Outcome {
	s := d.Start(ctx, req, nil)
	o, err := s.Wait(ctx)
	if err != nil {
		return door.Outcome{SetupID: req.SetupID, Code: door.LocalError, Message: err.Error()}
	}
	return o
}

// unsupported rejects requests for transports nobody registered.
type unsupported struct {
	kind string
}

func (u unsupported) Kind() string { return u.kind }

func (u unsupported) Validate(door.Request) error {
	if u.kind == "" {
		return door.Local("No transport configured.")
	}
	return door.Local("Transport %q is not supported.", u.kind)
}

func (u unsupported) Run(context.Context, *Session) error {
	return u.Validate(door.Request{})
}
