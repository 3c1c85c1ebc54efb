package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rileyhilliard/doorctl/internal/config"
	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/errors"
	"github.com/rileyhilliard/doorctl/internal/logger"
	"github.com/rileyhilliard/doorctl/internal/sshdoor"
	"github.com/rileyhilliard/doorctl/internal/ui"
	"github.com/spf13/cobra"
)

// maxPassphraseAttempts bounds interactive passphrase prompts per request.
const maxPassphraseAttempts = 3

// passphraseEnv supplies the key passphrase when no terminal is attached.
const passphraseEnv = "DOORCTL_PASSPHRASE"

// actionTimeout bounds the whole request on top of the transport timeouts.
const actionTimeout = 60 * time.Second

func newActionCmd(action door.Action, use, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [door]",
		Short: short,
		Long:  long,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runAction(cmd, name, action)
		},
	}
}

var (
	openCmd = newActionCmd(door.Open, "open", "Open a door",
		`Run the open action of a door.

Examples:
  doorctl open
  doorctl open garage`)
	closeCmd = newActionCmd(door.Close, "close", "Close or lock a door",
		`Run the close action of a door. Bluetooth locks are locked.`)
	ringCmd = newActionCmd(door.Ring, "ring", "Ring a door bell",
		`Run the ring action of a door. Bluetooth locks unlatch.`)
	stateCmd = newActionCmd(door.FetchState, "state", "Show the state of a door",
		`Run the state action of a door and print what it reports.`)
)

func init() {
	rootCmd.AddCommand(openCmd, closeCmd, ringCmd, stateCmd)
}

// loadConfig finds, loads and validates the config.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	if !noColor {
		ui.SetColorMode(cfg.Output.Color, os.Stdout)
	}
	return cfg, path, nil
}

// selectDoor resolves the door name, offering a picker on a terminal when
// the choice is ambiguous.
func selectDoor(cfg *config.Config, name string) (string, config.Door, error) {
	if name == "" && cfg.Default == "" && len(cfg.Doors) > 1 && env.interactive() {
		choices := make([]ui.DoorChoice, 0, len(cfg.Doors))
		for _, key := range cfg.DoorNames() {
			choices = append(choices, ui.DoorChoice{Key: key, Label: cfg.Doors[key].DisplayName(key)})
		}
		picked, err := ui.PickDoor("Which door?", choices)
		if err != nil {
			return "", config.Door{}, err
		}
		name = picked
	}
	return cfg.Resolve(name)
}

func runAction(cmd *cobra.Command, name string, action door.Action) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	key, d, err := selectDoor(cfg, name)
	if err != nil {
		return err
	}

	pass := door.NewPassphrase("")
	if d.SSH != nil {
		if err := unlockKey(d.SSH, pass); err != nil {
			return err
		}
	}

	req, err := cfg.Request(key, action, pass)
	if err != nil {
		return err
	}

	o, elapsed, err := execute(cmd, req, d.DisplayName(key), func(setupID int, p door.Pairing) {
		savePairing(cmd, path, key, p)
	})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderOutcome(d.DisplayName(key), action, o, elapsed))
	return outcomeError(o)
}

// execute runs req to its outcome, with a spinner on terminals. Without
// one, a request that outlives ctx is reported as a LocalError outcome.
func execute(cmd *cobra.Command, req door.Request, label string, onPaired func(int, door.Pairing)) (door.Outcome, time.Duration, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), actionTimeout)
	defer cancel()

	start := time.Now()
	d := env.dispatcher(onPaired)
	if !env.animate() {
		return d.Do(ctx, req), time.Since(start), nil
	}

	s := d.Start(ctx, req, nil)
	waitLabel := fmt.Sprintf("%s: %s", label, req.Action)
	o, err := ui.Wait(ctx, cmd.ErrOrStderr(), waitLabel, true, s.Wait)
	if err != nil {
		return door.Outcome{}, 0, errors.WrapWithCode(err, errors.ErrLock,
			"Stopped waiting for the door",
			"The request keeps running until its timeout; try again in a few seconds.")
	}
	return o, time.Since(start), nil
}

// unlockKey fills pass for an encrypted key: from the environment, or by
// prompting until the key decodes.
func unlockKey(s *config.SSHDoor, pass *door.Passphrase) error {
	kp, err := s.KeyPair()
	if err != nil || kp == nil || !kp.Encrypted {
		return err
	}

	if p, ok := os.LookupEnv(passphraseEnv); ok {
		pass.Set(p)
		return nil
	}
	if !env.interactive() {
		return errors.New(errors.ErrKey,
			"The key pair is encrypted",
			"Set "+passphraseEnv+" or run doorctl from a terminal.")
	}

	for attempt := 1; attempt <= maxPassphraseAttempts; attempt++ {
		p, err := env.prompt("Key passphrase")
		if err != nil {
			return err
		}
		if sshdoor.TestPassphrase(kp, p) {
			pass.Set(p)
			return nil
		}
		logger.Default().Warn("passphrase not accepted (%d/%d)", attempt, maxPassphraseAttempts)
	}
	return errors.New(errors.ErrKey,
		"Key pair passphrase was not accepted.",
		"Check the passphrase, or run 'doorctl keygen' to replace the key.")
}

func savePairing(cmd *cobra.Command, path, key string, p door.Pairing) {
	if path == "" {
		logger.Default().Warn("no config file to store the pairing in")
		return
	}
	if err := config.SavePairing(path, key, p); err != nil {
		logger.Default().Error("saving pairing: %v", err)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved pairing for %s to %s\n", key, path)
}

// outcomeError maps a failed outcome to its exit code.
func outcomeError(o door.Outcome) error {
	switch o.Code {
	case door.Success:
		return nil
	case door.RemoteError:
		return errors.NewExitError(ExitRemote)
	}
	return errors.NewExitError(ExitLocal)
}
