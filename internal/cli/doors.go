package cli

import (
	"fmt"

	"github.com/rileyhilliard/doorctl/internal/config"
	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/ui"
	"github.com/spf13/cobra"
)

var doorsCmd = &cobra.Command{
	Use:     "doors",
	Aliases: []string{"list", "ls"},
	Short:   "List configured doors",
	Long: `List the doors of the config file with their transport and target.

SSH hosts that are ~/.ssh/config aliases are shown with what they resolve
to. A filled dot marks doors that are ready to use; Bluetooth locks need
'doorctl pair' first. The default door is marked with *.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderDoorTable(doorRows(cfg)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doorsCmd)
}

func doorRows(cfg *config.Config) []ui.DoorRow {
	def, _, _ := cfg.Resolve(cfg.Default)
	var rows []ui.DoorRow
	for _, key := range cfg.DoorNames() {
		d := cfg.Doors[key]
		row := ui.DoorRow{Name: d.DisplayName(key), Default: cfg.Default != "" && key == def}
		switch {
		case d.SSH != nil:
			row.Transport = door.KindSSH
			row.Target = sshTarget(d.SSH)
			row.Ready = d.SSH.Host != ""
		case d.Bluetooth != nil:
			row.Transport = door.KindBluetooth
			row.Target = d.Bluetooth.Address
			row.Ready = d.Bluetooth.Address != "" && d.Bluetooth.SharedKey != ""
		}
		rows = append(rows, row)
	}
	return rows
}

func sshTarget(s *config.SSHDoor) string {
	if s.Host == "" {
		return "(no host)"
	}
	if env.lookupHost == nil {
		return s.Host
	}
	entry := env.lookupHost(s.Host)
	if s.User != "" && entry.User == "" {
		entry.User = s.User
	}
	if s.Port != 0 && entry.Port == "" {
		entry.Port = fmt.Sprint(s.Port)
	}
	if entry.Hostname == "" {
		entry.Hostname = s.Host
	}
	if desc := entry.Description(); desc != s.Host {
		return s.Host + " (" + desc + ")"
	}
	return s.Host
}
