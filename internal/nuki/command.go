package nuki

import "fmt"

// Command identifies a message.
type Command uint16

const (
	CmdRequestData                 Command = 0x0001
	CmdPublicKey                   Command = 0x0003
	CmdChallenge                   Command = 0x0004
	CmdAuthorizationAuthenticator  Command = 0x0005
	CmdAuthorizationData           Command = 0x0006
	CmdAuthorizationID             Command = 0x0007
	CmdKeyturnerStates             Command = 0x000c
	CmdLockAction                  Command = 0x000d
	CmdStatus                      Command = 0x000e
	CmdErrorReport                 Command = 0x0012
	CmdAuthorizationIDConfirmation Command = 0x001e
)

var commandNames = map[Command]string{
	CmdRequestData:                 "REQUEST_DATA",
	CmdPublicKey:                   "PUBLIC_KEY",
	CmdChallenge:                   "CHALLENGE",
	CmdAuthorizationAuthenticator:  "AUTHORIZATION_AUTHENTICATOR",
	CmdAuthorizationData:           "AUTHORIZATION_DATA",
	CmdAuthorizationID:             "AUTHORIZATION_ID",
	CmdKeyturnerStates:             "KEYTURNER_STATES",
	CmdLockAction:                  "LOCK_ACTION",
	CmdStatus:                      "STATUS",
	CmdErrorReport:                 "ERROR_REPORT",
	CmdAuthorizationIDConfirmation: "AUTHORIZATION_ID_CONFIRMATION",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COMMAND (0x%04x)", uint16(c))
}

// Status payload values.
const (
	StatusComplete byte = 0x00
	StatusAccepted byte = 0x01
)

// LockAction is the action byte of a LOCK_ACTION command.
type LockAction byte

const (
	ActionUnlock  LockAction = 0x01
	ActionLock    LockAction = 0x02
	ActionUnlatch LockAction = 0x03
)

// LockState is the lock state reported in KEYTURNER_STATES.
type LockState byte

var lockStateNames = map[LockState]string{
	0x00: "uncalibrated",
	0x01: "locked",
	0x02: "unlocking",
	0x03: "unlocked",
	0x04: "locking",
	0x05: "unlatched",
	0x06: "unlocked (lock'n'go)",
	0x07: "unlatching",
	0xfc: "calibration",
	0xfd: "boot run",
	0xfe: "motor blocked",
	0xff: "undefined",
}

func (s LockState) String() string {
	if name, ok := lockStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown (0x%02x)", byte(s))
}

// ErrorCode is the code carried by an ERROR_REPORT.
type ErrorCode byte

var errorNames = map[ErrorCode]string{
	0x10: "P_ERROR_NOT_PAIRING",
	0x11: "P_ERROR_BAD_AUTHENTICATOR",
	0x12: "P_ERROR_BAD_PARAMETER",
	0x13: "P_ERROR_MAX_USER",
	0x20: "K_ERROR_NOT_AUTHORIZED",
	0x21: "K_ERROR_BAD_PIN",
	0x22: "K_ERROR_BAD_NONCE",
	0x23: "K_ERROR_BAD_PARAMETER",
	0x24: "K_ERROR_INVALID_AUTH_ID",
	0x25: "K_ERROR_DISABLED",
	0x26: "K_ERROR_REMOTE_NOT_ALLOWED",
	0x27: "K_ERROR_TIME_NOT_ALLOWED",
	0x40: "K_ERROR_AUTO_UNLOCK_TOO_RECENT",
	0x41: "K_ERROR_POSITION_UNKNOWN",
	0x42: "K_ERROR_MOTOR_BLOCKED",
	0x43: "K_ERROR_CLUTCH_FAILURE",
	0x44: "K_ERROR_MOTOR_TIMEOUT",
	0x45: "K_ERROR_BUSY",
	0xfd: "ERROR_BAD_CRC",
	0xfe: "ERROR_BAD_LENGTH",
	0xff: "ERROR_UNKNOWN",
}

func (e ErrorCode) String() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ERROR (0x%02x)", byte(e))
}
