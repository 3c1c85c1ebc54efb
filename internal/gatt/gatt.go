// Package gatt drives the GATT negotiation of a door session: connect,
// discover services, resolve the target characteristic and its CCC
// descriptor, enable indications, then hand over to a Flow that speaks the
// device protocol.
//
// The platform stack is reached through Adapter and Handle. Its callbacks
// arrive on arbitrary goroutines; the Negotiator queues them and applies them
// one at a time on the session goroutine.
package gatt

import (
	"context"

	"github.com/google/uuid"
)

// Descriptor is a GATT characteristic descriptor.
type Descriptor interface {
	UUID() uuid.UUID
	// Characteristic returns the characteristic the descriptor belongs to.
	Characteristic() Characteristic
}

// Characteristic is a GATT characteristic.
type Characteristic interface {
	UUID() uuid.UUID
	// Descriptor returns the descriptor with the given UUID, or nil.
	Descriptor(id uuid.UUID) Descriptor
}

// Service is a discovered GATT service.
type Service interface {
	UUID() uuid.UUID
	// Characteristic returns the characteristic with the given UUID, or nil.
	Characteristic(id uuid.UUID) Characteristic
}

// Handle is a connection to one peripheral. Methods returning bool report
// whether the operation could be started; completion is reported through
// the Callback.
type Handle interface {
	DiscoverServices() bool
	// Service returns the discovered service with the given UUID, or nil.
	Service(id uuid.UUID) Service
	SetCharacteristicNotification(c Characteristic, enable bool) bool
	WriteDescriptor(d Descriptor, value []byte) bool
	WriteCharacteristic(c Characteristic, value []byte) bool
	// Close disconnects and releases the handle. It must be idempotent.
	Close()
}

// Callback receives the platform events of one connection.
type Callback interface {
	OnConnectionStateChange(status Status, state ConnState)
	OnServicesDiscovered(status Status)
	OnDescriptorWrite(d Descriptor, status Status)
	OnCharacteristicWrite(c Characteristic, status Status)
	OnCharacteristicChanged(c Characteristic, value []byte)
}

// Adapter opens connections to peripherals.
type Adapter interface {
	// Connect starts connecting to address. Events for the connection are
	// delivered to cb, possibly before Connect returns.
	Connect(ctx context.Context, address string, cb Callback) (Handle, error)
}
