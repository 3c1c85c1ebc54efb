//go:build !linux

package device

import (
	"context"

	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/gatt"
	"github.com/rileyhilliard/doorctl/internal/logger"
)

// Adapter reports that no Bluetooth stack is available.
type Adapter struct{}

// NewAdapter creates an adapter.
func NewAdapter(logger.Logger) *Adapter {
	return &Adapter{}
}

// Connect implements gatt.Adapter.
func (a *Adapter) Connect(context.Context, string, gatt.Callback) (gatt.Handle, error) {
	return nil, door.Local("Bluetooth is not supported on this platform.")
}
