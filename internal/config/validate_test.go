package config

import (
	"strings"
	"testing"

	"github.com/rileyhilliard/doorctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	validKey := strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name: "valid ssh and bluetooth doors",
			cfg: &Config{
				Version: 1,
				Default: "front",
				Doors: map[string]Door{
					"front":  {SSH: &SSHDoor{Host: "h", Port: 2222}},
					"garage": {Bluetooth: &BluetoothDoor{Address: "54:d2:72:00:11:22", SharedKey: validKey, ServiceUUID: "a92ee200-5501-11e4-916c-0800200c9a66"}},
				},
			},
		},
		{
			name:    "future version",
			cfg:     &Config{Version: CurrentConfigVersion + 1},
			wantErr: "from the future",
		},
		{
			name:    "unknown default",
			cfg:     &Config{Version: 1, Default: "back", Doors: map[string]Door{"front": {SSH: &SSHDoor{}}}},
			wantErr: "Default door 'back' isn't defined",
		},
		{
			name:    "no transport",
			cfg:     &Config{Version: 1, Doors: map[string]Door{"front": {}}},
			wantErr: "needs either an 'ssh' or a 'bluetooth' section",
		},
		{
			name:    "both transports",
			cfg:     &Config{Version: 1, Doors: map[string]Door{"front": {SSH: &SSHDoor{}, Bluetooth: &BluetoothDoor{}}}},
			wantErr: "has both 'ssh' and 'bluetooth'",
		},
		{
			name:    "port out of range",
			cfg:     &Config{Version: 1, Doors: map[string]Door{"front": {SSH: &SSHDoor{Port: 70000}}}},
			wantErr: "out of range",
		},
		{
			name:    "key file and generated key",
			cfg:     &Config{Version: 1, Doors: map[string]Door{"front": {SSH: &SSHDoor{KeyFile: "k", Key: &GeneratedKey{}}}}},
			wantErr: "both key_file and a generated key",
		},
		{
			name:    "bad mac",
			cfg:     &Config{Version: 1, Doors: map[string]Door{"g": {Bluetooth: &BluetoothDoor{Address: "garage"}}}},
			wantErr: "isn't a MAC address",
		},
		{
			name:    "bad uuid",
			cfg:     &Config{Version: 1, Doors: map[string]Door{"g": {Bluetooth: &BluetoothDoor{CharacteristicUUID: "nope"}}}},
			wantErr: "characteristic_uuid 'nope' isn't a UUID",
		},
		{
			name:    "short shared key",
			cfg:     &Config{Version: 1, Doors: map[string]Door{"g": {Bluetooth: &BluetoothDoor{SharedKey: "abcd"}}}},
			wantErr: "shared_key must be 32 hex encoded bytes",
		},
		{
			name:    "bad color",
			cfg:     &Config{Version: 1, Output: OutputConfig{Color: "rainbow"}},
			wantErr: "output.color 'rainbow' isn't valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
			}
		})
	}
}
