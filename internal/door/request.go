package door

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transport kinds. Each kind has its own transport lock.
const (
	KindSSH       = "ssh"
	KindBluetooth = "bluetooth"
)

// Request asks for one action on one door. It is not modified after dispatch.
type Request struct {
	SetupID   int
	Action    Action
	Transport Transport
}

// Transport is the per-binding door setup. The set of variants is closed:
// SSHConfig and BLEConfig.
type Transport interface {
	Kind() string
	isTransport()
}

// KeyPair types. Any other value names the algorithm of a key generated by
// doorctl itself.
const (
	KeyTypeImported = "imported"
)

// KeyPair is private/public key material for SSH public key authentication.
type KeyPair struct {
	Type       string
	PrivateKey []byte
	PublicKey  []byte
	Encrypted  bool
}

// Imported reports whether the key was imported from a PEM/OpenSSH container.
func (k *KeyPair) Imported() bool {
	return k.Type == KeyTypeImported
}

// Passphrase is a temporary passphrase cell shared between the caller and a
// session. A session clears it when an encrypted key fails to decode.
type Passphrase struct {
	mu    sync.Mutex
	value string
}

// NewPassphrase creates a cell holding p.
func NewPassphrase(p string) *Passphrase {
	return &Passphrase{value: p}
}

// Get returns the current value. A nil cell holds the empty passphrase.
func (p *Passphrase) Get() string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set replaces the value.
func (p *Passphrase) Set(v string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
}

// Clear resets the value to empty.
func (p *Passphrase) Clear() {
	p.Set("")
}

// Commands holds the shell command for each action.
type Commands struct {
	Open  string
	Close string
	Ring  string
	State string
}

// For returns the command configured for a.
func (c Commands) For(a Action) string {
	switch a {
	case Open:
		return c.Open
	case Close:
		return c.Close
	case Ring:
		return c.Ring
	case FetchState:
		return c.State
	}
	return ""
}

// DefaultSSHUser is used when a setup leaves the user empty.
const DefaultSSHUser = "root"

// SSHConfig is the setup of a door controlled by running commands over SSH.
type SSHConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	KeyPair    *KeyPair
	Passphrase *Passphrase
	Commands   Commands
	// Timeout bounds the wait for command output.
	Timeout time.Duration
	// KnownHostsFile enables host key verification when set.
	KnownHostsFile string
}

// Kind implements Transport.
func (*SSHConfig) Kind() string { return KindSSH }
func (*SSHConfig) isTransport() {}

// Username returns the configured user or DefaultSSHUser.
func (c *SSHConfig) Username() string {
	if c.User == "" {
		return DefaultSSHUser
	}
	return c.User
}

// Pairing holds the credentials obtained by pairing with a smart lock.
type Pairing struct {
	AuthID    uint32
	SharedKey []byte
	// AppID identifies this client towards the lock.
	AppID uint32
	// Name is announced to the lock while pairing.
	Name string
}

// Paired reports whether the setup holds a shared key.
func (p Pairing) Paired() bool {
	return len(p.SharedKey) > 0
}

// BLEConfig is the setup of a door controlled over Bluetooth LE.
type BLEConfig struct {
	Address string
	// ServiceUUID and CharacteristicUUID override the well-known identifiers
	// selected from the pairing state.
	ServiceUUID        uuid.UUID
	CharacteristicUUID uuid.UUID
	Pairing            Pairing
	// Timeout bounds the whole exchange with the device.
	Timeout time.Duration
}

// Kind implements Transport.
func (*BLEConfig) Kind() string { return KindBluetooth }
func (*BLEConfig) isTransport() {}
