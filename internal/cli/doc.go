// Package cli implements the doorctl command-line interface.
//
// Each door action is a Cobra command that loads .doorctl.yaml, converts the
// selected door into a door.Request and runs it through a session
// dispatcher with the SSH and Bluetooth bindings registered:
//
//	doorctl open|close|ring|state [door]  - run one action
//	doorctl doors                         - list configured doors
//	doorctl pair <door>                   - pair with a Bluetooth lock
//	doorctl keygen <door>                 - create an SSH key for a door
//	doorctl version                       - print build information
//
// The exit code reflects the outcome: 0 on success, 1 when the door side
// refused or failed, 2 for local failures including configuration errors.
package cli
