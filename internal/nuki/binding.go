// Package nuki implements the Bluetooth door binding for Nuki-style smart
// locks: frame encoding, the pairing flow that obtains a shared key, and the
// keyturner flow that runs lock actions with it.
package nuki

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/gatt"
	"github.com/rileyhilliard/doorctl/internal/session"
)

// Binding implements session.Binding for door.KindBluetooth.
type Binding struct {
	adapter gatt.Adapter
	// OnPaired receives the credentials of a completed pairing.
	OnPaired func(setupID int, p door.Pairing)
	// Rand is the entropy source for keys and nonces; crypto/rand when nil.
	Rand io.Reader
}

// NewBinding creates a binding connecting through adapter.
func NewBinding(adapter gatt.Adapter) *Binding {
	return &Binding{adapter: adapter}
}

// Kind implements session.Binding.
func (b *Binding) Kind() string {
	return door.KindBluetooth
}

// Validate implements session.Binding.
func (b *Binding) Validate(req door.Request) error {
	cfg, ok := req.Transport.(*door.BLEConfig)
	if !ok {
		return door.Local("Internal Error")
	}
	if cfg.Address == "" {
		return door.Local("Device address is empty.")
	}
	if cfg.Pairing.Paired() && len(cfg.Pairing.SharedKey) != keySize {
		return door.Local("Shared key must be %d bytes.", keySize)
	}
	if b.adapter == nil {
		return door.Local("Bluetooth is not available.")
	}
	return nil
}

// Run implements session.Binding. Without a shared key the lock is paired,
// whatever the action; otherwise the action runs on the keyturner service.
func (b *Binding) Run(ctx context.Context, s *session.Session) error {
	cfg := s.Request().Transport.(*door.BLEConfig)
	target, flow, err := b.plan(s.Request().SetupID, cfg)
	if err != nil {
		return err
	}
	s.Logger().Debug("bluetooth: %T on service %s", flow, target.Service)
	return gatt.NewNegotiator(s, target, flow).Run(ctx, b.adapter, cfg.Address)
}

func (b *Binding) plan(setupID int, cfg *door.BLEConfig) (gatt.Target, gatt.Flow, error) {
	target := gatt.Target{Timeout: cfg.Timeout}
	var flow gatt.Flow

	if cfg.Pairing.Paired() {
		codec, err := NewCodec(cfg.Pairing.AuthID, cfg.Pairing.SharedKey, b.Rand)
		if err != nil {
			return target, nil, door.Local("%v", err)
		}
		target.Service, target.Characteristic = gatt.KeyturnerService, gatt.KeyturnerUSDIO
		flow = NewKeyturnerFlow(codec, cfg.Pairing.AppID)
	} else {
		target.Service, target.Characteristic = gatt.PairingService, gatt.PairingGDIO
		flow = NewPairingFlow(cfg.Pairing.AppID, cfg.Pairing.Name, b.Rand, func(p door.Pairing) {
			if b.OnPaired != nil {
				b.OnPaired(setupID, p)
			}
		})
	}

	if cfg.ServiceUUID != uuid.Nil {
		target.Service = cfg.ServiceUUID
	}
	if cfg.CharacteristicUUID != uuid.Nil {
		target.Characteristic = cfg.CharacteristicUUID
	}
	return target, flow, nil
}
