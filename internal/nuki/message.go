package nuki

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
)

const (
	nonceSize = 24
	keySize   = 32
	// headerSize is nonce, auth id and length of an encrypted frame.
	headerSize = nonceSize + 4 + 2
)

var (
	ErrShortFrame = errors.New("frame too short")
	ErrBadCRC     = errors.New("frame checksum mismatch")
	ErrDecrypt    = errors.New("frame cannot be decrypted")
	ErrAuthID     = errors.New("frame addressed to another authorization")
)

// Message is a decoded frame.
type Message struct {
	Command Command
	Payload []byte
}

// Encode builds an unencrypted frame: command, payload, CRC (all little endian).
func Encode(cmd Command, payload []byte) []byte {
	frame := make([]byte, 2, 2+len(payload)+2)
	binary.LittleEndian.PutUint16(frame, uint16(cmd))
	frame = append(frame, payload...)
	return binary.LittleEndian.AppendUint16(frame, crc16(frame))
}

// Decode parses an unencrypted frame and checks its CRC.
func Decode(frame []byte) (Message, error) {
	if len(frame) < 4 {
		return Message{}, ErrShortFrame
	}
	body := frame[:len(frame)-2]
	if binary.LittleEndian.Uint16(frame[len(frame)-2:]) != crc16(body) {
		return Message{}, ErrBadCRC
	}
	return Message{
		Command: Command(binary.LittleEndian.Uint16(body)),
		Payload: append([]byte(nil), body[2:]...),
	}, nil
}

// Codec seals and opens encrypted frames for one authorization.
type Codec struct {
	AuthID uint32
	key    [keySize]byte
	rand   io.Reader
}

// NewCodec creates a codec from the shared key obtained while pairing.
// A nil rnd uses crypto/rand.
func NewCodec(authID uint32, sharedKey []byte, rnd io.Reader) (*Codec, error) {
	if len(sharedKey) != keySize {
		return nil, fmt.Errorf("shared key has %d bytes, want %d", len(sharedKey), keySize)
	}
	if rnd == nil {
		rnd = rand.Reader
	}
	c := &Codec{AuthID: authID, rand: rnd}
	copy(c.key[:], sharedKey)
	return c, nil
}

// Seal builds an encrypted frame. The plaintext is auth id, command,
// payload and the CRC over those.
func (c *Codec) Seal(cmd Command, payload []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(c.rand, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	plain := binary.LittleEndian.AppendUint32(nil, c.AuthID)
	plain = binary.LittleEndian.AppendUint16(plain, uint16(cmd))
	plain = append(plain, payload...)
	plain = binary.LittleEndian.AppendUint16(plain, crc16(plain))

	sealed := box.SealAfterPrecomputation(nil, plain, &nonce, &c.key)

	frame := make([]byte, 0, headerSize+len(sealed))
	frame = append(frame, nonce[:]...)
	frame = binary.LittleEndian.AppendUint32(frame, c.AuthID)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(sealed)))
	return append(frame, sealed...), nil
}

// Open decrypts an encrypted frame and checks its CRC and auth id.
func (c *Codec) Open(frame []byte) (Message, error) {
	if len(frame) < headerSize {
		return Message{}, ErrShortFrame
	}
	var nonce [nonceSize]byte
	copy(nonce[:], frame)
	length := int(binary.LittleEndian.Uint16(frame[nonceSize+4:]))
	if len(frame) < headerSize+length {
		return Message{}, ErrShortFrame
	}

	plain, ok := box.OpenAfterPrecomputation(nil, frame[headerSize:headerSize+length], &nonce, &c.key)
	if !ok {
		return Message{}, ErrDecrypt
	}
	if len(plain) < 8 {
		return Message{}, ErrShortFrame
	}
	body := plain[:len(plain)-2]
	if binary.LittleEndian.Uint16(plain[len(plain)-2:]) != crc16(body) {
		return Message{}, ErrBadCRC
	}
	if binary.LittleEndian.Uint32(body) != c.AuthID {
		return Message{}, ErrAuthID
	}
	return Message{
		Command: Command(binary.LittleEndian.Uint16(body[4:])),
		Payload: append([]byte(nil), body[6:]...),
	}, nil
}

// requestData builds the payload asking the lock to send cmd.
func requestData(cmd Command) []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(cmd))
}

// errorReport decodes an ERROR_REPORT payload.
func errorReport(payload []byte) (ErrorCode, Command) {
	if len(payload) == 0 {
		return ErrorCode(0xff), 0
	}
	var cmd Command
	if len(payload) >= 3 {
		cmd = Command(binary.LittleEndian.Uint16(payload[1:]))
	}
	return ErrorCode(payload[0]), cmd
}
