package sshutil

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	stderrors "errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/ssh"
)

// GeneratedKeyType is the algorithm of keys made by GenerateKey.
const GeneratedKeyType = "ed25519"

// scrypt parameters for sealing generated keys.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
	saltLen = 16
)

// ErrPublicKeyMismatch is returned when a private key does not belong to
// the stored public key.
var ErrPublicKeyMismatch = stderrors.New("private key does not match public key")

// ParseImportedKey decodes a PEM or OpenSSH private key container.
// It returns an *EncryptedKeyError when the key is protected and the
// passphrase is missing or wrong.
func ParseImportedKey(data []byte, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !stderrors.As(err, &missing) {
		return nil, err
	}
	if passphrase == "" {
		return nil, &EncryptedKeyError{Cause: err}
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, &EncryptedKeyError{Cause: err}
	}
	return signer, nil
}

// ParseGeneratedKey decodes a key made by GenerateKey: PKCS#8 DER, sealed
// with the passphrase when encrypted is set. When public is not empty the
// key must match it; public may be SSH wire format or an authorized_keys line.
func ParseGeneratedKey(private, public []byte, encrypted bool, passphrase string) (ssh.Signer, error) {
	der := private
	if encrypted {
		var err error
		if der, err = openSealed(private, passphrase); err != nil {
			return nil, &EncryptedKeyError{Cause: err}
		}
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, err
	}

	if len(public) > 0 {
		pub, err := parsePublicKey(public)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(pub.Marshal(), signer.PublicKey().Marshal()) {
			return nil, ErrPublicKeyMismatch
		}
	}
	return signer, nil
}

func parsePublicKey(data []byte) (ssh.PublicKey, error) {
	if pub, err := ssh.ParsePublicKey(data); err == nil {
		return pub, nil
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return pub, nil
}

// GeneratedKey is private/public key material in the generated format.
type GeneratedKey struct {
	Private   []byte
	Public    []byte
	Encrypted bool
}

// AuthorizedKey returns the public key as an authorized_keys line.
func (k *GeneratedKey) AuthorizedKey() (string, error) {
	pub, err := ssh.ParsePublicKey(k.Public)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(ssh.MarshalAuthorizedKey(pub))), nil
}

// GenerateKey creates an ed25519 key. A non-empty passphrase seals the
// private key. A nil rnd uses crypto/rand.
func GenerateKey(passphrase string, rnd io.Reader) (*GeneratedKey, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(rnd)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, err
	}

	k := &GeneratedKey{Private: der, Public: sshPub.Marshal()}
	if passphrase != "" {
		if k.Private, err = seal(der, passphrase, rnd); err != nil {
			return nil, err
		}
		k.Encrypted = true
	}
	return k, nil
}

// seal returns salt | nonce | secretbox(data).
func seal(data []byte, passphrase string, rnd io.Reader) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rnd, salt); err != nil {
		return nil, err
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rnd, nonce[:]); err != nil {
		return nil, err
	}
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	out := append(salt, nonce[:]...)
	return secretbox.Seal(out, data, &nonce, key), nil
}

func openSealed(data []byte, passphrase string) ([]byte, error) {
	if len(data) < saltLen+24+secretbox.Overhead {
		return nil, stderrors.New("sealed key too short")
	}
	salt := data[:saltLen]
	var nonce [24]byte
	copy(nonce[:], data[saltLen:])
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plain, ok := secretbox.Open(nil, data[saltLen+24:], &nonce, key)
	if !ok {
		return nil, stderrors.New("wrong passphrase")
	}
	return plain, nil
}

func deriveKey(passphrase string, salt []byte) (*[32]byte, error) {
	k, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, err
	}
	var key [32]byte
	copy(key[:], k)
	return &key, nil
}
