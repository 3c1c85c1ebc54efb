package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rileyhilliard/doorctl/internal/errors"
)

// sharedKeySize is the length of a lock's shared key in bytes.
const sharedKeySize = 32

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but doorctl only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade doorctl to a newer release.")
	}

	if cfg.Default != "" {
		if _, ok := lookupDoor(cfg.Doors, cfg.Default); !ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Default door '%s' isn't defined", cfg.Default),
				fmt.Sprintf("Pick one of: %s", strings.Join(doorNames(cfg.Doors), ", ")))
		}
	}

	for _, name := range doorNames(cfg.Doors) {
		if err := validateDoor(name, cfg.Doors[name]); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
				fmt.Sprintf("Check doors.%s in your %s.", name, ConfigFileName))
		}
	}

	if err := validateOutput(cfg.Output); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
			"Check the 'output' section in your "+ConfigFileName+".")
	}

	return nil
}

func validateDoor(name string, d Door) error {
	switch {
	case d.SSH == nil && d.Bluetooth == nil:
		return fmt.Errorf("door '%s' needs either an 'ssh' or a 'bluetooth' section", name)
	case d.SSH != nil && d.Bluetooth != nil:
		return fmt.Errorf("door '%s' has both 'ssh' and 'bluetooth' - pick one", name)
	case d.SSH != nil:
		return validateSSH(name, d.SSH)
	}
	return validateBluetooth(name, d.Bluetooth)
}

func validateSSH(name string, s *SSHDoor) error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("door '%s': port %d is out of range", name, s.Port)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("door '%s': timeout can't be negative", name)
	}
	if s.KeyFile != "" && s.Key != nil {
		return fmt.Errorf("door '%s' has both key_file and a generated key - keep one", name)
	}
	return nil
}

func validateBluetooth(name string, b *BluetoothDoor) error {
	if b.Address != "" {
		if _, err := net.ParseMAC(b.Address); err != nil {
			return fmt.Errorf("door '%s': address '%s' isn't a MAC address", name, b.Address)
		}
	}
	for field, value := range map[string]string{
		"service_uuid":        b.ServiceUUID,
		"characteristic_uuid": b.CharacteristicUUID,
	} {
		if value == "" {
			continue
		}
		if _, err := uuid.Parse(value); err != nil {
			return fmt.Errorf("door '%s': %s '%s' isn't a UUID", name, field, value)
		}
	}
	if b.SharedKey != "" {
		key, err := hex.DecodeString(b.SharedKey)
		if err != nil || len(key) != sharedKeySize {
			return fmt.Errorf("door '%s': shared_key must be %d hex encoded bytes", name, sharedKeySize)
		}
	}
	if b.Timeout < 0 {
		return fmt.Errorf("door '%s': timeout can't be negative", name)
	}
	return nil
}

// validateOutput checks output configuration.
func validateOutput(out OutputConfig) error {
	validColors := map[string]bool{"auto": true, "always": true, "never": true, "": true}
	if !validColors[out.Color] {
		return fmt.Errorf("output.color '%s' isn't valid - use 'auto', 'always', or 'never'", out.Color)
	}
	return nil
}

// doorNames returns the door keys in sorted order.
func doorNames(doors map[string]Door) []string {
	names := make([]string, 0, len(doors))
	for name := range doors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupDoor finds a door by key, ignoring case since viper lowercases keys.
func lookupDoor(doors map[string]Door, name string) (Door, bool) {
	if d, ok := doors[name]; ok {
		return d, true
	}
	d, ok := doors[strings.ToLower(name)]
	return d, ok
}
