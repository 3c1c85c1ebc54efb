package cli

import (
	"fmt"

	"github.com/rileyhilliard/doorctl/internal/config"
	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/errors"
	"github.com/rileyhilliard/doorctl/internal/ui"
	"github.com/spf13/cobra"
)

var pairForce bool

var pairCmd = &cobra.Command{
	Use:   "pair <door>",
	Short: "Pair with a Bluetooth smart lock",
	Long: `Pair doorctl with a Bluetooth lock and store the shared key in the config.

Put the lock into pairing mode first (usually by holding its button for a
few seconds). Doors that are already paired are left alone unless --force
is given.

Examples:
  doorctl pair garage
  doorctl pair garage --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPair(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(pairCmd)
	pairCmd.Flags().BoolVar(&pairForce, "force", false, "pair again even if a shared key is stored")
}

func runPair(cmd *cobra.Command, name string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	key, d, err := cfg.Resolve(name)
	if err != nil {
		return err
	}
	if d.Bluetooth == nil {
		return errors.New(errors.ErrBLE,
			fmt.Sprintf("Door '%s' is not a Bluetooth lock", key),
			"Only doors with a 'bluetooth' section can be paired.")
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"Pairing needs a config file to store the shared key in",
			"Create "+config.ConfigFileName+" or pass --config.")
	}
	if d.Bluetooth.SharedKey != "" && !pairForce {
		return errors.New(errors.ErrBLE,
			fmt.Sprintf("Door '%s' is already paired", key),
			"Use --force to pair again.")
	}

	req, err := cfg.Request(key, door.FetchState, nil)
	if err != nil {
		return err
	}
	ble := req.Transport.(*door.BLEConfig)
	ble.Pairing.SharedKey = nil
	ble.Pairing.AuthID = 0

	o, elapsed, err := execute(cmd, req, d.DisplayName(key), func(_ int, p door.Pairing) {
		savePairing(cmd, path, key, p)
	})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderOutcome(d.DisplayName(key), req.Action, o, elapsed))
	return outcomeError(o)
}
