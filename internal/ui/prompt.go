package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/doorctl/internal/errors"
)

// PromptPassphrase asks for a key passphrase without echo.
func PromptPassphrase(title string) (string, error) {
	var passphrase string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&passphrase),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrKey, "Passphrase prompt cancelled", "Run the command again to retry.")
	}
	return passphrase, nil
}

// PromptNewPassphrase asks for a passphrase twice. An empty passphrase is
// allowed and means the key is stored unencrypted.
func PromptNewPassphrase() (string, error) {
	var first, second string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Passphrase for the new key (empty for none)").
				EchoMode(huh.EchoModePassword).
				Value(&first),
			huh.NewInput().
				Title("Repeat passphrase").
				EchoMode(huh.EchoModePassword).
				Value(&second).
				Validate(func(s string) error {
					if s != first {
						return fmt.Errorf("passphrases do not match")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrKey, "Passphrase prompt cancelled", "Run the command again to retry.")
	}
	return first, nil
}

// DoorChoice is one entry of the door picker.
type DoorChoice struct {
	Key   string
	Label string
}

// PickDoor lets the user select a door and returns its key.
func PickDoor(title string, choices []DoorChoice) (string, error) {
	if len(choices) == 0 {
		return "", errors.New(errors.ErrConfig, "No doors configured", "Add a door under 'doors' in .doorctl.yaml.")
	}
	options := make([]huh.Option[string], 0, len(choices))
	for _, c := range choices {
		options = append(options, huh.NewOption(c.Label, c.Key))
	}

	var selected string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Door selection cancelled", "Name the door on the command line.")
	}
	return selected, nil
}
