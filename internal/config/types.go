package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .doorctl.yaml configuration file.
type Config struct {
	Version int             `yaml:"version" mapstructure:"version"`
	Doors   map[string]Door `yaml:"doors" mapstructure:"doors"`
	Default string          `yaml:"default" mapstructure:"default"`
	Output  OutputConfig    `yaml:"output" mapstructure:"output"`
}

// Door is one door setup. Exactly one of SSH and Bluetooth is set.
type Door struct {
	// Name is shown instead of the door key when set.
	Name string `yaml:"name" mapstructure:"name"`

	SSH       *SSHDoor       `yaml:"ssh,omitempty" mapstructure:"ssh"`
	Bluetooth *BluetoothDoor `yaml:"bluetooth,omitempty" mapstructure:"bluetooth"`
}

// DisplayName returns Name, or key when Name is empty.
func (d Door) DisplayName(key string) string {
	if d.Name != "" {
		return d.Name
	}
	return key
}

// SSHDoor controls a door by running commands on a host.
type SSHDoor struct {
	// Host is a hostname, an address or an ~/.ssh/config alias.
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`

	// KeyFile is an imported PEM or OpenSSH private key.
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`
	// Key is a key pair generated by 'doorctl keygen'.
	Key *GeneratedKey `yaml:"key,omitempty" mapstructure:"key"`

	// KnownHosts enables host key verification.
	KnownHosts string `yaml:"known_hosts" mapstructure:"known_hosts"`

	// Timeout bounds the wait for command output.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	Commands Commands `yaml:"commands" mapstructure:"commands"`
}

// GeneratedKey is key material in the generated format, base64 encoded.
type GeneratedKey struct {
	Type      string `yaml:"type" mapstructure:"type"`
	Private   string `yaml:"private" mapstructure:"private"`
	Public    string `yaml:"public" mapstructure:"public"`
	Encrypted bool   `yaml:"encrypted" mapstructure:"encrypted"`
}

// Commands are the shell commands run for each action.
type Commands struct {
	Open  string `yaml:"open" mapstructure:"open"`
	Close string `yaml:"close" mapstructure:"close"`
	Ring  string `yaml:"ring" mapstructure:"ring"`
	State string `yaml:"state" mapstructure:"state"`
}

// BluetoothDoor controls a smart lock over Bluetooth LE.
type BluetoothDoor struct {
	// Address is the device MAC address.
	Address string `yaml:"address" mapstructure:"address"`

	// ServiceUUID and CharacteristicUUID override the lock's well-known
	// identifiers.
	ServiceUUID        string `yaml:"service_uuid" mapstructure:"service_uuid"`
	CharacteristicUUID string `yaml:"characteristic_uuid" mapstructure:"characteristic_uuid"`

	// Timeout bounds the whole exchange with the lock.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// AppID identifies doorctl towards the lock; Name is announced while
	// pairing.
	AppID uint32 `yaml:"app_id" mapstructure:"app_id"`
	Name  string `yaml:"name" mapstructure:"name"`

	// AuthID and SharedKey (hex) are written by 'doorctl pair'.
	AuthID    uint32 `yaml:"auth_id" mapstructure:"auth_id"`
	SharedKey string `yaml:"shared_key" mapstructure:"shared_key"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`

	// Spinner shows an animated wait indicator on terminals.
	Spinner bool `yaml:"spinner" mapstructure:"spinner"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Doors:   make(map[string]Door),
		Output: OutputConfig{
			Color:   "auto",
			Spinner: true,
		},
	}
}
