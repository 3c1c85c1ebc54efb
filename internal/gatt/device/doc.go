// Package device connects the GATT negotiation to the host Bluetooth stack.
// On linux it talks to BlueZ through tinygo.org/x/bluetooth; elsewhere
// Connect reports that Bluetooth is not supported.
package device
