package gatt

import "fmt"

// Status is a GATT operation status as reported by the platform stack.
// The values follow the Android BluetoothGatt constants and the HCI error
// codes the stacks pass through.
type Status int

const (
	StatusSuccess                    Status = 0x00
	StatusReadNotPermitted           Status = 0x02
	StatusWriteNotPermitted          Status = 0x03
	StatusInsufficientAuthentication Status = 0x05
	StatusRequestNotSupported        Status = 0x06
	StatusInvalidOffset              Status = 0x07
	StatusConnTimeout                Status = 0x08
	StatusInvalidAttributeLength     Status = 0x0d
	StatusInsufficientEncryption     Status = 0x0f
	StatusConnTerminatePeerUser      Status = 0x13
	StatusConnTerminateLocalHost     Status = 0x16
	StatusConnLMPTimeout             Status = 0x22
	StatusConnFailEstablish          Status = 0x3e
	StatusError                      Status = 0x85
	StatusConnectionCongested        Status = 0x8f
	StatusFailure                    Status = 0x101
)

var statusNames = map[Status]string{
	StatusSuccess:                    "GATT_SUCCESS",
	StatusReadNotPermitted:           "GATT_READ_NOT_PERMITTED",
	StatusWriteNotPermitted:          "GATT_WRITE_NOT_PERMITTED",
	StatusInsufficientAuthentication: "GATT_INSUFFICIENT_AUTHENTICATION",
	StatusRequestNotSupported:        "GATT_REQUEST_NOT_SUPPORTED",
	StatusInvalidOffset:              "GATT_INVALID_OFFSET",
	StatusConnTimeout:                "GATT_CONN_TIMEOUT",
	StatusInvalidAttributeLength:     "GATT_INVALID_ATTRIBUTE_LENGTH",
	StatusInsufficientEncryption:     "GATT_INSUFFICIENT_ENCRYPTION",
	StatusConnTerminatePeerUser:      "GATT_CONN_TERMINATE_PEER_USER",
	StatusConnTerminateLocalHost:     "GATT_CONN_TERMINATE_LOCAL_HOST",
	StatusConnLMPTimeout:             "GATT_CONN_LMP_TIMEOUT",
	StatusConnFailEstablish:          "GATT_CONN_FAIL_ESTABLISH",
	StatusError:                      "GATT_ERROR",
	StatusConnectionCongested:        "GATT_CONNECTION_CONGESTED",
	StatusFailure:                    "GATT_FAILURE",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN (0x%02x)", int(s))
}

// OK reports whether s is StatusSuccess.
func (s Status) OK() bool {
	return s == StatusSuccess
}

// ConnState is the connection state passed with a connection state change.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

var stateNames = map[ConnState]string{
	StateDisconnected:  "STATE_DISCONNECTED",
	StateConnecting:    "STATE_CONNECTING",
	StateConnected:     "STATE_CONNECTED",
	StateDisconnecting: "STATE_DISCONNECTING",
}

func (c ConnState) String() string {
	if name, ok := stateNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN (0x%02x)", int(c))
}
