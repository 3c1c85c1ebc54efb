package cli

import (
	"os"

	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/gatt"
	"github.com/rileyhilliard/doorctl/internal/gatt/device"
	"github.com/rileyhilliard/doorctl/internal/logger"
	"github.com/rileyhilliard/doorctl/internal/metrics"
	"github.com/rileyhilliard/doorctl/internal/nuki"
	"github.com/rileyhilliard/doorctl/internal/session"
	"github.com/rileyhilliard/doorctl/internal/sshdoor"
	"github.com/rileyhilliard/doorctl/internal/ui"
	"github.com/rileyhilliard/doorctl/pkg/sshutil"
)

// environment is what door commands take from the outside world. Tests
// replace it.
type environment struct {
	bluetooth   gatt.Adapter
	sshDial     sshutil.DialFunc
	lookupHost  func(alias string) sshutil.SSHHostEntry
	recorder    metrics.Recorder
	interactive func() bool
	animate     func() bool
	prompt      func(title string) (string, error)
	newPrompt   func() (string, error)
}

func defaultEnvironment() *environment {
	return &environment{
		bluetooth:  device.NewAdapter(logger.NewEnvLogger("bluetooth")),
		lookupHost: sshutil.LookupHost,
		recorder:   metrics.Prometheus(),
		interactive: func() bool {
			return ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stderr)
		},
		animate: func() bool {
			return ui.IsTerminal(os.Stderr)
		},
		prompt:    ui.PromptPassphrase,
		newPrompt: ui.PromptNewPassphrase,
	}
}

var env = defaultEnvironment()

// dispatcher builds a dispatcher with both bindings. onPaired receives
// credentials of a completed Bluetooth pairing.
func (e *environment) dispatcher(onPaired func(setupID int, p door.Pairing)) *session.Dispatcher {
	d := session.NewDispatcher(
		session.WithLogger(logger.NewEnvLogger("session")),
		session.WithRecorder(e.recorder),
	)

	ssh := sshdoor.NewBinding()
	ssh.Dial = e.sshDial
	ssh.LookupHost = e.lookupHost
	d.Register(ssh)

	ble := nuki.NewBinding(e.bluetooth)
	ble.OnPaired = onPaired
	d.Register(ble)
	return d
}
