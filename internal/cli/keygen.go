package cli

import (
	"fmt"

	"github.com/rileyhilliard/doorctl/internal/config"
	"github.com/rileyhilliard/doorctl/internal/errors"
	"github.com/rileyhilliard/doorctl/pkg/sshutil"
	"github.com/spf13/cobra"
)

var keygenNoPassphrase bool

var keygenCmd = &cobra.Command{
	Use:   "keygen <door>",
	Short: "Generate an SSH key pair for a door",
	Long: `Generate an ed25519 key pair, store it in the door's ssh section and
print the public key.

Append the printed line to ~/.ssh/authorized_keys of the door's user on the
controller. On a terminal you are asked for a passphrase protecting the
private key; without one (or with --no-passphrase) it is stored unencrypted.

Examples:
  doorctl keygen front
  doorctl keygen front --no-passphrase`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKeygen(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().BoolVar(&keygenNoPassphrase, "no-passphrase", false, "store the private key unencrypted")
}

func runKeygen(cmd *cobra.Command, name string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	key, d, err := cfg.Resolve(name)
	if err != nil {
		return err
	}
	if d.SSH == nil {
		return errors.New(errors.ErrKey,
			fmt.Sprintf("Door '%s' is not an SSH door", key),
			"Only doors with an 'ssh' section use key pairs.")
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"keygen needs a config file to store the key in",
			"Create "+config.ConfigFileName+" or pass --config.")
	}

	passphrase := ""
	if !keygenNoPassphrase && env.interactive() {
		if passphrase, err = env.newPrompt(); err != nil {
			return err
		}
	}

	k, err := sshutil.GenerateKey(passphrase, nil)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrKey, "Failed to generate key pair", "Check that the system random source is readable.")
	}
	if err := config.SaveGeneratedKey(path, key, config.EncodeKey(sshutil.GeneratedKeyType, k.Private, k.Public, k.Encrypted)); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to store the key pair", "Check that "+path+" is writable.")
	}

	line, err := k.AuthorizedKey()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrKey, "Failed to format the public key", "")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s doorctl-%s\n", line, key)
	fmt.Fprintf(cmd.ErrOrStderr(), "Stored key pair for %s in %s. Add the line above to the door's authorized_keys.\n", key, path)
	return nil
}
