package nuki

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/gatt"
	"golang.org/x/crypto/nacl/box"
)

// DefaultName is announced to the lock when the setup names no client.
const DefaultName = "doorctl"

// idTypeApp identifies the client as an app in AUTHORIZATION_DATA.
const idTypeApp = 0x00

const (
	challengeSize = 32
	nameSize      = 32
)

type pairingStep int

const (
	awaitPublicKey pairingStep = iota
	awaitFirstChallenge
	awaitSecondChallenge
	awaitAuthorizationID
	awaitComplete
)

// PairingFlow authorizes doorctl with a lock in pairing mode and produces
// the credentials later used by KeyturnerFlow.
type PairingFlow struct {
	appID    uint32
	name     string
	rand     io.Reader
	onPaired func(door.Pairing)

	step    pairingStep
	public  *[keySize]byte
	private *[keySize]byte
	lockKey [keySize]byte
	shared  [keySize]byte
	authID  uint32
}

// NewPairingFlow creates a pairing flow. onPaired receives the credentials
// before the Success outcome is delivered. A nil rnd uses crypto/rand.
func NewPairingFlow(appID uint32, name string, rnd io.Reader, onPaired func(door.Pairing)) *PairingFlow {
	if rnd == nil {
		rnd = rand.Reader
	}
	if name == "" {
		name = DefaultName
	}
	return &PairingFlow{appID: appID, name: name, rand: rnd, onPaired: onPaired}
}

// Connected implements gatt.Flow.
func (f *PairingFlow) Connected(x *gatt.Exchange) error {
	pub, priv, err := box.GenerateKey(f.rand)
	if err != nil {
		return door.Local("Failed to generate key pair: %v", err)
	}
	f.public, f.private = pub, priv
	f.step = awaitPublicKey
	x.Logger().Debug("pairing: requesting public key")
	return x.Write(Encode(CmdRequestData, requestData(CmdPublicKey)))
}

// Indication implements gatt.Flow.
func (f *PairingFlow) Indication(x *gatt.Exchange, value []byte) error {
	msg, err := Decode(value)
	if err != nil {
		return door.Local("Invalid message from device: %v", err)
	}
	x.Logger().Debug("pairing: received %s", msg.Command)
	if msg.Command == CmdErrorReport {
		return reportedError(msg.Payload)
	}

	switch f.step {
	case awaitPublicKey:
		if err := expect(msg, CmdPublicKey, keySize); err != nil {
			return err
		}
		copy(f.lockKey[:], msg.Payload)
		box.Precompute(&f.shared, &f.lockKey, f.private)
		f.step = awaitFirstChallenge
		return x.Write(Encode(CmdPublicKey, f.public[:]))

	case awaitFirstChallenge:
		if err := expect(msg, CmdChallenge, challengeSize); err != nil {
			return err
		}
		auth := f.mac(f.public[:], f.lockKey[:], msg.Payload)
		f.step = awaitSecondChallenge
		return x.Write(Encode(CmdAuthorizationAuthenticator, auth))

	case awaitSecondChallenge:
		if err := expect(msg, CmdChallenge, challengeSize); err != nil {
			return err
		}
		data, err := f.authorizationData()
		if err != nil {
			return err
		}
		auth := f.mac(data, msg.Payload)
		f.step = awaitAuthorizationID
		return x.Write(Encode(CmdAuthorizationData, append(auth, data...)))

	case awaitAuthorizationID:
		if err := expect(msg, CmdAuthorizationID, sha256.Size+4+16+challengeSize); err != nil {
			return err
		}
		p := msg.Payload
		auth, rest := p[:sha256.Size], p[sha256.Size:]
		if !hmac.Equal(auth, f.mac(rest)) {
			return door.Remote("Authorization id authenticator mismatch.")
		}
		authID, nonce := rest[:4], rest[4+16:]
		f.authID = binary.LittleEndian.Uint32(authID)
		confirm := append(f.mac(authID, nonce), authID...)
		f.step = awaitComplete
		return x.Write(Encode(CmdAuthorizationIDConfirmation, confirm))

	case awaitComplete:
		if err := expect(msg, CmdStatus, 1); err != nil {
			return err
		}
		if msg.Payload[0] != StatusComplete {
			return door.Remote("Pairing not completed (status 0x%02x).", msg.Payload[0])
		}
		if f.onPaired != nil {
			f.onPaired(door.Pairing{
				AuthID:    f.authID,
				SharedKey: append([]byte(nil), f.shared[:]...),
				AppID:     f.appID,
				Name:      f.name,
			})
		}
		x.Succeed(fmt.Sprintf("Paired (authorization id %d).", f.authID))
	}
	return nil
}

// authorizationData is id type, app id, name and a fresh client nonce.
func (f *PairingFlow) authorizationData() ([]byte, error) {
	data := []byte{idTypeApp}
	data = binary.LittleEndian.AppendUint32(data, f.appID)
	name := make([]byte, nameSize)
	copy(name, f.name)
	data = append(data, name...)
	nonce := make([]byte, challengeSize)
	if _, err := io.ReadFull(f.rand, nonce); err != nil {
		return nil, door.Local("Failed to generate nonce: %v", err)
	}
	return append(data, nonce...), nil
}

func (f *PairingFlow) mac(parts ...[]byte) []byte {
	return authenticator(f.shared[:], parts...)
}

// authenticator is HMAC-SHA256 over the concatenated parts.
func authenticator(key []byte, parts ...[]byte) []byte {
	h := hmac.New(sha256.New, key)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func expect(msg Message, cmd Command, size int) error {
	if msg.Command != cmd {
		return door.Remote("Unexpected %s from device, want %s.", msg.Command, cmd)
	}
	if len(msg.Payload) < size {
		return door.Remote("Short %s from device.", cmd)
	}
	return nil
}

func reportedError(payload []byte) error {
	code, cmd := errorReport(payload)
	if cmd != 0 {
		return door.Remote("Device reported %s for %s.", code, cmd)
	}
	return door.Remote("Device reported %s.", code)
}
