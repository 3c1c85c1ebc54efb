package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// buildInfo describes the running binary. Release builds fill it through
// SetVersionInfo; `go install` builds fall back to the module build info.
type buildInfo struct {
	Version string
	Commit  string
	Date    string
}

var build = buildInfo{Version: "dev", Commit: "none", Date: "unknown"}

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := currentBuild()
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), info.Version)
			return
		}
		fmt.Fprint(cmd.OutOrStdout(), info.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version")
}

// SetVersionInfo records the ldflags values from main.
func SetVersionInfo(version, commit, date string) {
	build = buildInfo{Version: version, Commit: commit, Date: date}
}

// currentBuild returns build, completed from the module build info when
// the binary was not stamped.
func currentBuild() buildInfo {
	info := build
	if info.Version != "dev" {
		return info
	}
	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 12 {
				info.Commit = s.Value[:12]
			} else {
				info.Commit = s.Value
			}
		case "vcs.time":
			info.Date = s.Value
		}
	}
	return info
}

func (b buildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "doorctl %s\n", formatVersion(b.Version))
	fmt.Fprintf(&sb, "  commit  %s\n", b.Commit)
	fmt.Fprintf(&sb, "  built   %s\n", b.Date)
	fmt.Fprintf(&sb, "  runtime %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return sb.String()
}

func formatVersion(v string) string {
	if v == "" || v == "dev" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
