package gatt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/logger"
	"github.com/rileyhilliard/doorctl/internal/session"
)

// DefaultTimeout bounds a whole exchange when the target sets none.
const DefaultTimeout = 10 * time.Second

// Target selects what the negotiator subscribes to.
type Target struct {
	Service        uuid.UUID
	Characteristic uuid.UUID
	Timeout        time.Duration
}

// Flow is the device protocol run once indications are enabled.
// Both methods run on the session goroutine. A returned error ends the
// session with its classification.
type Flow interface {
	Connected(x *Exchange) error
	Indication(x *Exchange, value []byte) error
}

// Negotiator implements Callback for one session.
type Negotiator struct {
	s      *session.Session
	target Target
	flow   Flow
	log    logger.Logger
	x      *Exchange

	qmu   sync.Mutex
	queue []func()
	wake  chan struct{}

	// Owned by the Run goroutine.
	handle    Handle
	char      Characteristic
	connected bool
	ready     bool
}

// NewNegotiator creates a negotiator reporting to s.
func NewNegotiator(s *session.Session, target Target, flow Flow) *Negotiator {
	if target.Timeout <= 0 {
		target.Timeout = DefaultTimeout
	}
	n := &Negotiator{
		s:      s,
		target: target,
		flow:   flow,
		log:    s.Logger(),
		wake:   make(chan struct{}, 1),
	}
	n.x = &Exchange{n: n}
	return n
}

// Run connects to address and processes events until the session has an
// outcome or the timeout expires.
func (n *Negotiator) Run(ctx context.Context, adapter Adapter, address string) error {
	ctx, cancel := context.WithTimeout(ctx, n.target.Timeout)
	defer cancel()

	h, err := adapter.Connect(ctx, address, n)
	if err != nil {
		return err
	}
	n.handle = h
	n.s.Own(handleCloser{h})

	for {
		if n.finished() {
			return nil
		}
		if ev, ok := n.next(); ok {
			ev()
			continue
		}
		select {
		case <-n.wake:
		case <-n.s.Done():
			return nil
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return door.Local("Timeout waiting for device response.")
			}
			return door.Local("%v", ctx.Err())
		}
	}
}

func (n *Negotiator) finished() bool {
	select {
	case <-n.s.Done():
		return true
	default:
		return false
	}
}

func (n *Negotiator) enqueue(ev func()) {
	if n.finished() {
		return
	}
	n.qmu.Lock()
	n.queue = append(n.queue, ev)
	n.qmu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *Negotiator) next() (func(), bool) {
	n.qmu.Lock()
	defer n.qmu.Unlock()
	if len(n.queue) == 0 {
		return nil, false
	}
	ev := n.queue[0]
	n.queue[0] = nil
	n.queue = n.queue[1:]
	return ev, true
}

func (n *Negotiator) fail(err error) {
	n.s.Fail(err)
}

// OnConnectionStateChange implements Callback.
func (n *Negotiator) OnConnectionStateChange(status Status, state ConnState) {
	n.enqueue(func() { n.connectionStateChanged(status, state) })
}

// OnServicesDiscovered implements Callback.
func (n *Negotiator) OnServicesDiscovered(status Status) {
	n.enqueue(func() { n.servicesDiscovered(status) })
}

// OnDescriptorWrite implements Callback.
func (n *Negotiator) OnDescriptorWrite(d Descriptor, status Status) {
	n.enqueue(func() { n.descriptorWritten(d, status) })
}

// OnCharacteristicWrite implements Callback.
func (n *Negotiator) OnCharacteristicWrite(c Characteristic, status Status) {
	n.enqueue(func() { n.characteristicWritten(c, status) })
}

// OnCharacteristicChanged implements Callback.
func (n *Negotiator) OnCharacteristicChanged(c Characteristic, value []byte) {
	buf := append([]byte(nil), value...)
	n.enqueue(func() { n.characteristicChanged(c, buf) })
}

func (n *Negotiator) connectionStateChanged(status Status, state ConnState) {
	n.log.Debug("connection state change, status: %s, state: %s", status, state)
	if !status.OK() {
		n.fail(door.Remote("Connection error: %s", status))
		return
	}

	switch state {
	case StateConnected:
		if n.connected {
			return
		}
		n.connected = true
		_ = n.s.Advance(session.Negotiating)
		if !n.handle.DiscoverServices() {
			n.fail(door.Local("Service discovery could not be started."))
		}
	case StateConnecting:
	default:
		n.fail(door.Remote("Connection error: %s", state))
	}
}

func (n *Negotiator) servicesDiscovered(status Status) {
	n.log.Debug("services discovered, status: %s", status)
	if !status.OK() {
		n.fail(door.Local("Client not found: %s", status))
		return
	}
	if n.char != nil {
		return
	}

	svc := n.handle.Service(n.target.Service)
	if svc == nil {
		n.fail(door.Remote("Service not found: %s", n.target.Service))
		return
	}
	c := svc.Characteristic(n.target.Characteristic)
	if c == nil {
		n.fail(door.Remote("Characteristic not found: %s", n.target.Characteristic))
		return
	}
	if !n.handle.SetCharacteristicNotification(c, true) {
		n.log.Warn("enabling notifications on %s failed", c.UUID())
	}
	d := c.Descriptor(ClientCharacteristicConfig)
	if d == nil {
		n.fail(door.Remote("Descriptor not found: %s", ClientCharacteristicConfig))
		return
	}

	n.char = c
	if !n.handle.WriteDescriptor(d, EnableIndicationValue) {
		n.fail(door.Local("Descriptor write failed."))
	}
}

func (n *Negotiator) descriptorWritten(d Descriptor, status Status) {
	n.log.Debug("descriptor write %s, status: %s", d.UUID(), status)
	if !status.OK() {
		n.fail(door.Remote("Failed to write to client: %s", status))
		return
	}
	if n.ready || n.char == nil || d.UUID() != ClientCharacteristicConfig {
		return
	}
	if c := d.Characteristic(); c != nil {
		n.char = c
	}
	n.ready = true
	_ = n.s.Advance(session.Executing)

	if err := n.flow.Connected(n.x); err != nil {
		n.fail(err)
	}
}

func (n *Negotiator) characteristicWritten(c Characteristic, status Status) {
	if !status.OK() {
		n.fail(door.Remote("Characteristic write failed: %s", status))
	}
}

func (n *Negotiator) characteristicChanged(c Characteristic, value []byte) {
	if !n.ready || c.UUID() != n.char.UUID() {
		n.log.Debug("ignoring change of %s", c.UUID())
		return
	}
	_ = n.s.Advance(session.ReadingResult)

	if err := n.flow.Indication(n.x, value); err != nil {
		n.fail(err)
	}
}

// Exchange is the flow's view of the negotiated connection.
type Exchange struct {
	n *Negotiator
}

// Request returns the request being served.
func (x *Exchange) Request() door.Request {
	return x.n.s.Request()
}

// Logger returns the session logger.
func (x *Exchange) Logger() logger.Logger {
	return x.n.log
}

// Write sends value to the subscribed characteristic.
func (x *Exchange) Write(value []byte) error {
	if !x.n.handle.WriteCharacteristic(x.n.char, value) {
		return door.Local("Characteristic write failed.")
	}
	return nil
}

// Succeed ends the session with a Success outcome.
func (x *Exchange) Succeed(message string) {
	x.n.s.Succeed(message)
}

type handleCloser struct {
	h Handle
}

func (c handleCloser) Close() error {
	c.h.Close()
	return nil
}
