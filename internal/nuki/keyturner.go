package nuki

import (
	"encoding/binary"

	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/gatt"
)

var lockActions = map[door.Action]LockAction{
	door.Open:  ActionUnlock,
	door.Close: ActionLock,
	door.Ring:  ActionUnlatch,
}

var actionDone = map[LockAction]string{
	ActionUnlock:  "Unlocked.",
	ActionLock:    "Locked.",
	ActionUnlatch: "Unlatched.",
}

// KeyturnerFlow runs one action on a paired lock over encrypted frames.
type KeyturnerFlow struct {
	codec *Codec
	appID uint32
	// flags is the LOCK_ACTION flags byte.
	flags byte

	action   door.Action
	accepted bool
}

// NewKeyturnerFlow creates a flow for the given credentials.
func NewKeyturnerFlow(codec *Codec, appID uint32) *KeyturnerFlow {
	return &KeyturnerFlow{codec: codec, appID: appID}
}

// Connected implements gatt.Flow.
func (f *KeyturnerFlow) Connected(x *gatt.Exchange) error {
	f.action = x.Request().Action
	if f.action == door.FetchState {
		return f.send(x, CmdRequestData, requestData(CmdKeyturnerStates))
	}
	if _, ok := lockActions[f.action]; !ok {
		return door.Local("Action %s is not supported by the lock.", f.action)
	}
	return f.send(x, CmdRequestData, requestData(CmdChallenge))
}

// Indication implements gatt.Flow.
func (f *KeyturnerFlow) Indication(x *gatt.Exchange, value []byte) error {
	msg, err := f.codec.Open(value)
	if err != nil {
		return door.Local("Invalid message from device: %v", err)
	}
	x.Logger().Debug("keyturner: received %s", msg.Command)

	switch msg.Command {
	case CmdErrorReport:
		return reportedError(msg.Payload)

	case CmdKeyturnerStates:
		if f.action != door.FetchState {
			return nil
		}
		if len(msg.Payload) < 2 {
			return door.Remote("Short %s from device.", msg.Command)
		}
		x.Succeed(LockState(msg.Payload[1]).String())

	case CmdChallenge:
		if f.action == door.FetchState || f.accepted {
			return nil
		}
		if len(msg.Payload) < challengeSize {
			return door.Remote("Short %s from device.", msg.Command)
		}
		action := lockActions[f.action]
		payload := []byte{byte(action)}
		payload = binary.LittleEndian.AppendUint32(payload, f.appID)
		payload = append(payload, f.flags)
		payload = append(payload, msg.Payload[:challengeSize]...)
		return f.send(x, CmdLockAction, payload)

	case CmdStatus:
		if len(msg.Payload) < 1 {
			return door.Remote("Short %s from device.", msg.Command)
		}
		switch msg.Payload[0] {
		case StatusAccepted:
			f.accepted = true
			x.Logger().Debug("keyturner: %s accepted", f.action)
		case StatusComplete:
			x.Succeed(actionDone[lockActions[f.action]])
		default:
			return door.Remote("Unexpected status 0x%02x from device.", msg.Payload[0])
		}

	default:
		x.Logger().Debug("keyturner: ignoring %s", msg.Command)
	}
	return nil
}

func (f *KeyturnerFlow) send(x *gatt.Exchange, cmd Command, payload []byte) error {
	frame, err := f.codec.Seal(cmd, payload)
	if err != nil {
		return door.Local("Failed to encrypt message: %v", err)
	}
	return x.Write(frame)
}
