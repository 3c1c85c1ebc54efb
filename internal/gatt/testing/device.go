// Package testing provides an in-memory GATT peripheral for tests.
// A Device answers the negotiator's operations with callbacks the way a
// platform stack would, and lets a test play the peripheral side by
// reacting to characteristic writes and pushing indications.
package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rileyhilliard/doorctl/internal/gatt"
)

// Device simulates one peripheral. Configure it before connecting.
type Device struct {
	// ConnectStatus and ConnectState are reported after Connect.
	ConnectStatus gatt.Status
	ConnectState  gatt.ConnState
	// SkipConnectEvent suppresses the connection state change after Connect.
	SkipConnectEvent bool
	// DiscoverStatus is reported by service discovery.
	DiscoverStatus gatt.Status
	// DescriptorStatus is reported for descriptor writes.
	DescriptorStatus gatt.Status
	// WriteStatus is reported for characteristic writes.
	WriteStatus gatt.Status
	// RefuseDiscover and RefuseDescriptorWrite make the operation fail to start.
	RefuseDiscover        bool
	RefuseDescriptorWrite bool
	// Async delivers every callback from its own goroutine.
	Async bool
	// OnWrite is called with every characteristic write, after the write
	// callback was delivered. It plays the peripheral.
	OnWrite func(d *Device, char uuid.UUID, value []byte)

	mu       sync.Mutex
	services map[uuid.UUID]*service
	cb       gatt.Callback
	closed   int
	notify   map[uuid.UUID]bool
	writes   []Write
	wg       sync.WaitGroup
}

// Write records one characteristic write.
type Write struct {
	Characteristic uuid.UUID
	Value          []byte
}

// NewDevice creates a device with no services.
func NewDevice() *Device {
	return &Device{
		ConnectState: gatt.StateConnected,
		services:     make(map[uuid.UUID]*service),
		notify:       make(map[uuid.UUID]bool),
	}
}

// AddCharacteristic adds char to the service svc, creating the service when
// needed. withCCC adds the client characteristic configuration descriptor.
func (d *Device) AddCharacteristic(svc, char uuid.UUID, withCCC bool) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.services[svc]
	if !ok {
		s = &service{id: svc, chars: make(map[uuid.UUID]*characteristic)}
		d.services[svc] = s
	}
	c := &characteristic{id: char, descs: make(map[uuid.UUID]*descriptor)}
	if withCCC {
		c.descs[gatt.ClientCharacteristicConfig] = &descriptor{id: gatt.ClientCharacteristicConfig, char: c}
	}
	s.chars[char] = c
	return d
}

// Emit delivers an arbitrary event to the connected callback, even after
// the handle was closed.
func (d *Device) Emit(ev func(cb gatt.Callback)) {
	d.mu.Lock()
	cb := d.cb
	async := d.Async
	d.mu.Unlock()
	if cb == nil {
		return
	}
	if async {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ev(cb)
		}()
		return
	}
	ev(cb)
}

// Notify pushes an indication of value on char.
func (d *Device) Notify(char uuid.UUID, value []byte) {
	c := d.lookup(char)
	if c == nil {
		panic(fmt.Sprintf("gatt testing: unknown characteristic %s", char))
	}
	buf := append([]byte(nil), value...)
	d.Emit(func(cb gatt.Callback) { cb.OnCharacteristicChanged(c, buf) })
}

// Wait blocks until asynchronous callbacks have been delivered.
func (d *Device) Wait() {
	d.wg.Wait()
}

// Closed returns how often the handle was closed.
func (d *Device) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Writes returns the characteristic writes seen so far.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Write(nil), d.writes...)
}

// Notifying reports whether notifications were enabled for char.
func (d *Device) Notifying(char uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.notify[char]
}

func (d *Device) lookup(char uuid.UUID) *characteristic {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.services {
		if c, ok := s.chars[char]; ok {
			return c
		}
	}
	return nil
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed > 0
}

// DiscoverServices implements gatt.Handle.
func (d *Device) DiscoverServices() bool {
	if d.RefuseDiscover || d.isClosed() {
		return false
	}
	status := d.DiscoverStatus
	d.Emit(func(cb gatt.Callback) { cb.OnServicesDiscovered(status) })
	return true
}

// Service implements gatt.Handle.
func (d *Device) Service(id uuid.UUID) gatt.Service {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.services[id]; ok {
		return s
	}
	return nil
}

// SetCharacteristicNotification implements gatt.Handle.
func (d *Device) SetCharacteristicNotification(c gatt.Characteristic, enable bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notify[c.UUID()] = enable
	return true
}

// WriteDescriptor implements gatt.Handle.
func (d *Device) WriteDescriptor(desc gatt.Descriptor, value []byte) bool {
	if d.RefuseDescriptorWrite || d.isClosed() {
		return false
	}
	status := d.DescriptorStatus
	d.Emit(func(cb gatt.Callback) { cb.OnDescriptorWrite(desc, status) })
	return true
}

// WriteCharacteristic implements gatt.Handle.
func (d *Device) WriteCharacteristic(c gatt.Characteristic, value []byte) bool {
	if d.isClosed() {
		return false
	}
	buf := append([]byte(nil), value...)
	d.mu.Lock()
	d.writes = append(d.writes, Write{Characteristic: c.UUID(), Value: buf})
	status := d.WriteStatus
	d.mu.Unlock()

	d.Emit(func(cb gatt.Callback) { cb.OnCharacteristicWrite(c, status) })
	if d.OnWrite != nil {
		d.OnWrite(d, c.UUID(), buf)
	}
	return true
}

// Close implements gatt.Handle.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
}

// Adapter connects to Devices by address.
type Adapter struct {
	mu      sync.Mutex
	devices map[string]*Device
	dialed  []string
	// Err is returned by Connect when set.
	Err error
}

// NewAdapter creates an adapter with no devices.
func NewAdapter() *Adapter {
	return &Adapter{devices: make(map[string]*Device)}
}

// Add registers d under address.
func (a *Adapter) Add(address string, d *Device) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.devices[address] = d
	return a
}

// Dialed returns the addresses Connect was called with.
func (a *Adapter) Dialed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.dialed...)
}

// Connect implements gatt.Adapter.
func (a *Adapter) Connect(ctx context.Context, address string, cb gatt.Callback) (gatt.Handle, error) {
	a.mu.Lock()
	a.dialed = append(a.dialed, address)
	d, ok := a.devices[address]
	err := a.Err
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no device at %s", address)
	}

	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()

	if !d.SkipConnectEvent {
		status, state := d.ConnectStatus, d.ConnectState
		d.Emit(func(cb gatt.Callback) { cb.OnConnectionStateChange(status, state) })
	}
	return d, nil
}

type service struct {
	id    uuid.UUID
	chars map[uuid.UUID]*characteristic
}

func (s *service) UUID() uuid.UUID { return s.id }

func (s *service) Characteristic(id uuid.UUID) gatt.Characteristic {
	if c, ok := s.chars[id]; ok {
		return c
	}
	return nil
}

type characteristic struct {
	id    uuid.UUID
	descs map[uuid.UUID]*descriptor
}

func (c *characteristic) UUID() uuid.UUID { return c.id }

func (c *characteristic) Descriptor(id uuid.UUID) gatt.Descriptor {
	if d, ok := c.descs[id]; ok {
		return d
	}
	return nil
}

type descriptor struct {
	id   uuid.UUID
	char *characteristic
}

func (d *descriptor) UUID() uuid.UUID { return d.id }

func (d *descriptor) Characteristic() gatt.Characteristic { return d.char }
