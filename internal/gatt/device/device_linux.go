//go:build linux

package device

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/gatt"
	"github.com/rileyhilliard/doorctl/internal/logger"
	"tinygo.org/x/bluetooth"
)

// Adapter implements gatt.Adapter on the default BlueZ adapter.
type Adapter struct {
	log     logger.Logger
	once    sync.Once
	enabled error
}

// NewAdapter creates an adapter. The host adapter is enabled on first use.
func NewAdapter(log logger.Logger) *Adapter {
	if log == nil {
		log = logger.Noop()
	}
	return &Adapter{log: log}
}

func (a *Adapter) enable() error {
	a.once.Do(func() {
		a.enabled = bluetooth.DefaultAdapter.Enable()
	})
	return a.enabled
}

// Connect implements gatt.Adapter. The connection is established in the
// background; its result arrives as a connection state change.
func (a *Adapter) Connect(ctx context.Context, address string, cb gatt.Callback) (gatt.Handle, error) {
	if err := a.enable(); err != nil {
		return nil, door.Local("Bluetooth adapter unavailable: %v", err)
	}
	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, door.Local("Invalid device address %q.", address)
	}

	h := &handle{log: a.log, cb: cb}
	go h.connect(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}})
	return h, nil
}

// handle is one BlueZ connection. The platform device value is only
// reached through the closures captured at connect time.
type handle struct {
	log logger.Logger
	cb  gatt.Callback

	mu         sync.Mutex
	closed     bool
	disconnect func() error
	discover   func() ([]bluetooth.DeviceService, error)
	services   map[uuid.UUID]*service
}

func (h *handle) connect(addr bluetooth.Address) {
	dev, err := bluetooth.DefaultAdapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		h.log.Debug("connect %s: %v", addr, err)
		h.cb.OnConnectionStateChange(gatt.StatusConnFailEstablish, gatt.StateDisconnected)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = dev.Disconnect()
		return
	}
	h.disconnect = dev.Disconnect
	h.discover = func() ([]bluetooth.DeviceService, error) { return dev.DiscoverServices(nil) }
	h.mu.Unlock()

	h.cb.OnConnectionStateChange(gatt.StatusSuccess, gatt.StateConnected)
}

func (h *handle) DiscoverServices() bool {
	h.mu.Lock()
	discover := h.discover
	closed := h.closed
	h.mu.Unlock()
	if discover == nil || closed {
		return false
	}

	go func() {
		svcs, err := discover()
		if err != nil {
			h.log.Debug("service discovery: %v", err)
			h.cb.OnServicesDiscovered(gatt.StatusFailure)
			return
		}
		found := make(map[uuid.UUID]*service, len(svcs))
		for _, s := range svcs {
			svc, err := newService(s)
			if err != nil {
				h.log.Debug("skipping service %s: %v", s.UUID(), err)
				continue
			}
			found[svc.id] = svc
		}
		h.mu.Lock()
		h.services = found
		h.mu.Unlock()
		h.cb.OnServicesDiscovered(gatt.StatusSuccess)
	}()
	return true
}

func (h *handle) Service(id uuid.UUID) gatt.Service {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.services[id]; ok {
		return s
	}
	return nil
}

// SetCharacteristicNotification only marks the characteristic; BlueZ
// subscribes when the CCC descriptor is written.
func (h *handle) SetCharacteristicNotification(c gatt.Characteristic, enable bool) bool {
	ch, ok := c.(*characteristic)
	if !ok {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ch.notify = enable
	return true
}

func (h *handle) WriteDescriptor(d gatt.Descriptor, value []byte) bool {
	desc, ok := d.(*descriptor)
	if !ok || desc.id != gatt.ClientCharacteristicConfig {
		return false
	}
	ch := desc.char
	h.mu.Lock()
	notify := ch.notify
	h.mu.Unlock()
	if !notify || !bytes.Equal(value, gatt.EnableIndicationValue) {
		return false
	}

	go func() {
		err := ch.dc.EnableNotifications(func(buf []byte) {
			h.cb.OnCharacteristicChanged(ch, buf)
		})
		status := gatt.StatusSuccess
		if err != nil {
			h.log.Debug("enable notifications on %s: %v", ch.id, err)
			status = gatt.StatusError
		}
		h.cb.OnDescriptorWrite(desc, status)
	}()
	return true
}

func (h *handle) WriteCharacteristic(c gatt.Characteristic, value []byte) bool {
	ch, ok := c.(*characteristic)
	if !ok {
		return false
	}
	buf := append([]byte(nil), value...)
	go func() {
		status := gatt.StatusSuccess
		if _, err := ch.dc.WriteWithoutResponse(buf); err != nil {
			h.log.Debug("write %s: %v", ch.id, err)
			status = gatt.StatusFailure
		}
		h.cb.OnCharacteristicWrite(ch, status)
	}()
	return true
}

func (h *handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	disconnect := h.disconnect
	h.mu.Unlock()

	if disconnect != nil {
		if err := disconnect(); err != nil {
			h.log.Debug("disconnect: %v", err)
		}
	}
}

type service struct {
	id    uuid.UUID
	chars map[uuid.UUID]*characteristic
}

func newService(s bluetooth.DeviceService) (*service, error) {
	id, err := fromUUID(s.UUID())
	if err != nil {
		return nil, err
	}
	chars, err := s.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("discovering characteristics: %w", err)
	}
	svc := &service{id: id, chars: make(map[uuid.UUID]*characteristic, len(chars))}
	for _, dc := range chars {
		cid, err := fromUUID(dc.UUID())
		if err != nil {
			continue
		}
		ch := &characteristic{id: cid, dc: dc}
		ch.ccc = &descriptor{id: gatt.ClientCharacteristicConfig, char: ch}
		svc.chars[cid] = ch
	}
	return svc, nil
}

func (s *service) UUID() uuid.UUID { return s.id }

func (s *service) Characteristic(id uuid.UUID) gatt.Characteristic {
	if c, ok := s.chars[id]; ok {
		return c
	}
	return nil
}

type characteristic struct {
	id     uuid.UUID
	dc     bluetooth.DeviceCharacteristic
	ccc    *descriptor
	notify bool
}

func (c *characteristic) UUID() uuid.UUID { return c.id }

// Descriptor only knows the CCC descriptor, which BlueZ manages itself.
func (c *characteristic) Descriptor(id uuid.UUID) gatt.Descriptor {
	if id == gatt.ClientCharacteristicConfig {
		return c.ccc
	}
	return nil
}

type descriptor struct {
	id   uuid.UUID
	char *characteristic
}

func (d *descriptor) UUID() uuid.UUID { return d.id }

func (d *descriptor) Characteristic() gatt.Characteristic { return d.char }

func fromUUID(u bluetooth.UUID) (uuid.UUID, error) {
	return uuid.Parse(u.String())
}
