package sshdoor

import (
	stderrors "errors"
	"strings"
	"sync/atomic"

	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/pkg/sshutil"
	"golang.org/x/crypto/ssh"
)

// AuthStrategy is the one authentication method a session offers, and the
// interpretation of its rejection.
type AuthStrategy interface {
	Name() string
	Methods() []ssh.AuthMethod
	// Rejected converts an authentication failure into an outcome.
	Rejected() error
}

// SelectAuth picks the strategy for cfg: key pair, then password, then none.
// A key pair that cannot be decoded fails here, before any connection is
// made; for an encrypted key the passphrase cell is cleared.
func SelectAuth(cfg *door.SSHConfig) (AuthStrategy, error) {
	if cfg.KeyPair != nil {
		signer, err := decodeKey(cfg.KeyPair, cfg.Passphrase.Get())
		if err != nil {
			var encErr *sshutil.EncryptedKeyError
			if cfg.KeyPair.Encrypted || stderrors.As(err, &encErr) {
				cfg.Passphrase.Clear()
				return nil, &door.Failure{Code: door.LocalError, Message: "Key pair passphrase was not accepted.", Cause: err}
			}
			return nil, &door.Failure{Code: door.LocalError, Message: "Failed to decode key pair.", Cause: err}
		}
		return &keyAuth{signer: signer}, nil
	}
	if cfg.Password != "" {
		return &passwordAuth{password: cfg.Password}, nil
	}
	return noneAuth{}, nil
}

// TestPassphrase reports whether passphrase decodes kp.
func TestPassphrase(kp *door.KeyPair, passphrase string) bool {
	if kp == nil {
		return false
	}
	_, err := decodeKey(kp, passphrase)
	return err == nil
}

func decodeKey(kp *door.KeyPair, passphrase string) (ssh.Signer, error) {
	if kp.Imported() {
		return sshutil.ParseImportedKey(kp.PrivateKey, passphrase)
	}
	return sshutil.ParseGeneratedKey(kp.PrivateKey, kp.PublicKey, kp.Encrypted, passphrase)
}

type keyAuth struct {
	signer ssh.Signer
	tried  atomic.Bool
}

func (a *keyAuth) Name() string { return "publickey" }

func (a *keyAuth) Methods() []ssh.AuthMethod {
	return []ssh.AuthMethod{ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
		a.tried.Store(true)
		return []ssh.Signer{a.signer}, nil
	})}
}

func (a *keyAuth) Rejected() error {
	if a.tried.Load() {
		return door.Remote("Key was not accepted.")
	}
	return door.Remote("Authentication failed.")
}

type passwordAuth struct {
	password string
	tried    atomic.Bool
}

func (a *passwordAuth) Name() string { return "password" }

func (a *passwordAuth) Methods() []ssh.AuthMethod {
	return []ssh.AuthMethod{ssh.PasswordCallback(func() (string, error) {
		a.tried.Store(true)
		return a.password, nil
	})}
}

func (a *passwordAuth) Rejected() error {
	if a.tried.Load() {
		return door.Remote("Password was not accepted.")
	}
	return door.Remote("Host does not support password authentication.")
}

type noneAuth struct{}

func (noneAuth) Name() string { return "none" }

// Methods is empty: the client always starts with the "none" method.
func (noneAuth) Methods() []ssh.AuthMethod { return nil }

func (noneAuth) Rejected() error {
	return door.Remote("Login without any credentials failed.")
}

// isAuthFailure reports whether a handshake error is an authentication
// rejection rather than a transport problem.
func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain")
}
