package config

import (
	"encoding/base64"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/errors"
	"golang.org/x/crypto/ssh"
)

// DoorNames returns the door keys in setup id order.
func (c *Config) DoorNames() []string {
	return doorNames(c.Doors)
}

// SetupID returns the setup id of the door called name, or -1.
func (c *Config) SetupID(name string) int {
	for i, n := range c.DoorNames() {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// Resolve picks the door to act on: name when given, else the default door,
// else the only door there is. It returns the door key.
func (c *Config) Resolve(name string) (string, Door, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		names := c.DoorNames()
		switch len(names) {
		case 0:
			return "", Door{}, errors.New(errors.ErrConfig,
				"No doors configured",
				"Add a door under 'doors' in "+ConfigFileName+".")
		case 1:
			name = names[0]
		default:
			return "", Door{}, errors.New(errors.ErrConfig,
				"Several doors are configured and none is the default",
				fmt.Sprintf("Name one (%s) or set 'default' in %s.", strings.Join(names, ", "), ConfigFileName))
		}
	}

	d, ok := lookupDoor(c.Doors, name)
	if !ok {
		return "", Door{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Door '%s' isn't defined", name),
			"Run 'doorctl doors' to list the configured doors.")
	}
	return strings.ToLower(name), d, nil
}

// Request converts the named door into a request for action. pass is the
// passphrase cell handed to the session for encrypted keys; it may be nil.
func (c *Config) Request(name string, action door.Action, pass *door.Passphrase) (door.Request, error) {
	key, d, err := c.Resolve(name)
	if err != nil {
		return door.Request{}, err
	}
	transport, err := d.Transport(pass)
	if err != nil {
		return door.Request{}, err
	}
	return door.Request{SetupID: c.SetupID(key), Action: action, Transport: transport}, nil
}

// Transport converts the door into its transport setup.
func (d Door) Transport(pass *door.Passphrase) (door.Transport, error) {
	if d.SSH != nil {
		return d.SSH.transport(pass)
	}
	if d.Bluetooth != nil {
		return d.Bluetooth.transport()
	}
	return nil, errors.New(errors.ErrConfig, "Door has no transport", "Add an 'ssh' or 'bluetooth' section.")
}

// KeyPair returns the configured key pair, or nil when the door has none.
func (s *SSHDoor) KeyPair() (*door.KeyPair, error) {
	switch {
	case s.KeyFile != "":
		data, err := os.ReadFile(s.KeyFile)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrKey,
				"Cannot read key file "+s.KeyFile,
				"Check the key_file path and its permissions.")
		}
		return &door.KeyPair{Type: door.KeyTypeImported, PrivateKey: data, Encrypted: isEncryptedPEM(data)}, nil
	case s.Key != nil:
		private, err := base64.StdEncoding.DecodeString(s.Key.Private)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrKey, "Generated private key isn't valid base64", "Run 'doorctl keygen' again.")
		}
		public, err := base64.StdEncoding.DecodeString(s.Key.Public)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrKey, "Generated public key isn't valid base64", "Run 'doorctl keygen' again.")
		}
		return &door.KeyPair{Type: s.Key.Type, PrivateKey: private, PublicKey: public, Encrypted: s.Key.Encrypted}, nil
	}
	return nil, nil
}

// isEncryptedPEM reports whether an imported key file is passphrase protected.
func isEncryptedPEM(data []byte) bool {
	_, err := ssh.ParseRawPrivateKey(data)
	var missing *ssh.PassphraseMissingError
	return stderrors.As(err, &missing)
}

func (s *SSHDoor) transport(pass *door.Passphrase) (*door.SSHConfig, error) {
	kp, err := s.KeyPair()
	if err != nil {
		return nil, err
	}
	return &door.SSHConfig{
		Host:       s.Host,
		Port:       s.Port,
		User:       s.User,
		Password:   s.Password,
		KeyPair:    kp,
		Passphrase: pass,
		Commands: door.Commands{
			Open:  s.Commands.Open,
			Close: s.Commands.Close,
			Ring:  s.Commands.Ring,
			State: s.Commands.State,
		},
		Timeout:        s.Timeout,
		KnownHostsFile: s.KnownHosts,
	}, nil
}

func (b *BluetoothDoor) transport() (*door.BLEConfig, error) {
	cfg := &door.BLEConfig{
		Address: b.Address,
		Timeout: b.Timeout,
		Pairing: door.Pairing{AuthID: b.AuthID, AppID: b.AppID, Name: b.Name},
	}
	var err error
	if b.ServiceUUID != "" {
		if cfg.ServiceUUID, err = uuid.Parse(b.ServiceUUID); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig, "Invalid service_uuid", "Use the xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx form.")
		}
	}
	if b.CharacteristicUUID != "" {
		if cfg.CharacteristicUUID, err = uuid.Parse(b.CharacteristicUUID); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig, "Invalid characteristic_uuid", "Use the xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx form.")
		}
	}
	if b.SharedKey != "" {
		if cfg.Pairing.SharedKey, err = hex.DecodeString(b.SharedKey); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrBLE, "Invalid shared_key", "Run 'doorctl pair' again.")
		}
	}
	return cfg, nil
}
