package nuki

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rileyhilliard/doorctl/internal/gatt"
	gatttesting "github.com/rileyhilliard/doorctl/internal/gatt/testing"
	"golang.org/x/crypto/nacl/box"
)

// simLock plays the lock side of the protocol on a gatttesting.Device.
type simLock struct {
	t *testing.T

	mu        sync.Mutex
	public    *[keySize]byte
	private   *[keySize]byte
	client    [keySize]byte
	shared    [keySize]byte
	authID    uint32
	nonce     []byte
	gotName   string
	gotAppID  uint32
	state     LockState
	actions   []LockAction
	keyturner *Codec

	// failAction makes LOCK_ACTION answer with an ERROR_REPORT.
	failAction ErrorCode
	// replyKey seals keyturner replies with another key.
	replyKey []byte
}

func newSimLock(t *testing.T) *simLock {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return &simLock{t: t, public: pub, private: priv, authID: 7, state: 0x01}
}

// pairWith presets the credentials of an earlier pairing.
func (l *simLock) pairWith(key []byte) {
	copy(l.shared[:], key)
	codec, err := NewCodec(l.authID, key, nil)
	if err != nil {
		l.t.Fatal(err)
	}
	l.keyturner = codec
}

func (l *simLock) device() *gatttesting.Device {
	d := gatttesting.NewDevice().
		AddCharacteristic(gatt.PairingService, gatt.PairingGDIO, true).
		AddCharacteristic(gatt.KeyturnerService, gatt.KeyturnerUSDIO, true)
	d.OnWrite = l.onWrite
	return d
}

func (l *simLock) challenge() []byte {
	l.nonce = make([]byte, challengeSize)
	if _, err := rand.Read(l.nonce); err != nil {
		l.t.Fatal(err)
	}
	return l.nonce
}

func (l *simLock) onWrite(d *gatttesting.Device, char uuid.UUID, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch char {
	case gatt.PairingGDIO:
		l.pairing(d, value)
	case gatt.KeyturnerUSDIO:
		l.keyturnerWrite(d, value)
	default:
		l.t.Errorf("write to unexpected characteristic %s", char)
	}
}

func (l *simLock) pairing(d *gatttesting.Device, value []byte) {
	msg, err := Decode(value)
	if err != nil {
		l.t.Errorf("lock: decode: %v", err)
		return
	}
	reply := func(cmd Command, payload []byte) {
		d.Notify(gatt.PairingGDIO, Encode(cmd, payload))
	}

	switch msg.Command {
	case CmdRequestData:
		reply(CmdPublicKey, l.public[:])
	case CmdPublicKey:
		copy(l.client[:], msg.Payload)
		box.Precompute(&l.shared, &l.client, l.private)
		reply(CmdChallenge, l.challenge())
	case CmdAuthorizationAuthenticator:
		want := authenticator(l.shared[:], l.client[:], l.public[:], l.nonce)
		if !hmac.Equal(want, msg.Payload) {
			reply(CmdErrorReport, []byte{0x11, 0x05, 0x00})
			return
		}
		reply(CmdChallenge, l.challenge())
	case CmdAuthorizationData:
		auth, data := msg.Payload[:32], msg.Payload[32:]
		if !hmac.Equal(auth, authenticator(l.shared[:], data, l.nonce)) {
			reply(CmdErrorReport, []byte{0x11, 0x06, 0x00})
			return
		}
		l.gotAppID = binary.LittleEndian.Uint32(data[1:])
		l.gotName = string(bytes.TrimRight(data[5:5+nameSize], "\x00"))

		rest := binary.LittleEndian.AppendUint32(nil, l.authID)
		rest = append(rest, make([]byte, 16)...)
		rest = append(rest, l.challenge()...)
		reply(CmdAuthorizationID, append(authenticator(l.shared[:], rest), rest...))
	case CmdAuthorizationIDConfirmation:
		auth, id := msg.Payload[:32], msg.Payload[32:]
		if !hmac.Equal(auth, authenticator(l.shared[:], id, l.nonce)) {
			reply(CmdErrorReport, []byte{0x11, 0x1e, 0x00})
			return
		}
		reply(CmdStatus, []byte{StatusComplete})
	default:
		l.t.Errorf("lock: unexpected %s while pairing", msg.Command)
	}
}

func (l *simLock) keyturnerWrite(d *gatttesting.Device, value []byte) {
	msg, err := l.keyturner.Open(value)
	if err != nil {
		l.t.Errorf("lock: open: %v", err)
		return
	}
	replyCodec := l.keyturner
	if l.replyKey != nil {
		replyCodec, _ = NewCodec(l.authID, l.replyKey, nil)
	}
	reply := func(cmd Command, payload []byte) {
		frame, err := replyCodec.Seal(cmd, payload)
		if err != nil {
			l.t.Errorf("lock: seal: %v", err)
			return
		}
		d.Notify(gatt.KeyturnerUSDIO, frame)
	}

	switch msg.Command {
	case CmdRequestData:
		switch Command(binary.LittleEndian.Uint16(msg.Payload)) {
		case CmdKeyturnerStates:
			reply(CmdKeyturnerStates, []byte{0x02, byte(l.state), 0x00})
		case CmdChallenge:
			reply(CmdChallenge, l.challenge())
		}
	case CmdLockAction:
		if !bytes.Equal(msg.Payload[6:6+challengeSize], l.nonce) {
			reply(CmdErrorReport, []byte{0x22, 0x0d, 0x00})
			return
		}
		if l.failAction != 0 {
			reply(CmdErrorReport, []byte{byte(l.failAction), 0x0d, 0x00})
			return
		}
		l.actions = append(l.actions, LockAction(msg.Payload[0]))
		reply(CmdStatus, []byte{StatusAccepted})
		reply(CmdStatus, []byte{StatusComplete})
	default:
		l.t.Errorf("lock: unexpected %s", msg.Command)
	}
}
