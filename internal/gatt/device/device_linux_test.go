//go:build linux

package device

import (
	"testing"

	"github.com/rileyhilliard/doorctl/internal/gatt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

func TestFromUUID(t *testing.T) {
	u, err := bluetooth.ParseUUID("a92ee202-5501-11e4-916c-0800200c9a66")
	require.NoError(t, err)

	got, err := fromUUID(u)
	require.NoError(t, err)
	assert.Equal(t, gatt.KeyturnerUSDIO, got)
}

func TestCharacteristic_OnlyKnowsCCC(t *testing.T) {
	ch := &characteristic{id: gatt.KeyturnerUSDIO}
	ch.ccc = &descriptor{id: gatt.ClientCharacteristicConfig, char: ch}

	d := ch.Descriptor(gatt.ClientCharacteristicConfig)
	require.NotNil(t, d)
	assert.Equal(t, gatt.KeyturnerUSDIO, d.Characteristic().UUID())
	assert.Nil(t, ch.Descriptor(gatt.KeyturnerGDIO))
}

func TestHandle_WriteDescriptorRequiresNotification(t *testing.T) {
	h := &handle{}
	ch := &characteristic{id: gatt.KeyturnerUSDIO}
	ch.ccc = &descriptor{id: gatt.ClientCharacteristicConfig, char: ch}

	assert.False(t, h.WriteDescriptor(ch.ccc, gatt.EnableIndicationValue))
	assert.False(t, h.DiscoverServices(), "not connected yet")
	assert.Nil(t, h.Service(gatt.KeyturnerService))
	h.Close()
	h.Close()
}
