package sshutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/doorctl/internal/logger"
)

// SSHHostEntry represents a parsed host entry from SSH config.
type SSHHostEntry struct {
	Alias        string // The Host pattern (alias)
	Hostname     string // The HostName value (actual host to connect to)
	User         string // The User value
	Port         string // The Port value
	IdentityFile string // The IdentityFile value
}

// Description returns a user-friendly description of the host.
func (h SSHHostEntry) Description() string {
	parts := []string{}

	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}

	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}

	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}

	if len(parts) == 0 {
		return h.Alias
	}

	return strings.Join(parts, ", ")
}

// matchWarningOnce ensures the Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// DefaultConfigPath returns ~/.ssh/config.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// LookupHost resolves alias against ~/.ssh/config.
func LookupHost(alias string) SSHHostEntry {
	entry, _ := LookupHostFile(DefaultConfigPath(), alias)
	return entry
}

// LookupHostFile resolves alias against the config at configPath, including
// wildcard blocks. The second result reports whether any setting applied.
// A missing or unreadable config yields the bare alias.
func LookupHostFile(configPath, alias string) (SSHHostEntry, bool) {
	entry := SSHHostEntry{Alias: alias}

	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return entry, false
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return entry, false
	}

	found := false
	get := func(key string) string {
		v, _ := cfg.Get(alias, key)
		if v != "" {
			found = true
		}
		return v
	}
	entry.Hostname = get("HostName")
	entry.User = get("User")
	entry.Port = get("Port")
	if identity := get("IdentityFile"); identity != "" {
		entry.IdentityFile = expandPath(identity)
	}

	// Only warn about Match block if host wasn't found - it might be defined after the Match
	if matchLine > 0 && !found {
		matchWarningOnce.Do(func() {
			logger.Default().Warn("host %q not found in %s (Match block at line %d may hide later entries)",
				alias, configPath, matchLine)
		})
	}
	return entry, found
}

// ParseSSHConfigFile parses the specified SSH config file and returns the
// concrete host aliases it defines, sorted. Wildcard patterns are skipped.
func ParseSSHConfigFile(configPath string) ([]SSHHostEntry, error) {
	content, _, err := preprocessSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No SSH config is fine
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	var hosts []SSHHostEntry
	seen := make(map[string]bool)

	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?") || seen[alias] {
				continue
			}
			seen[alias] = true

			entry, _ := LookupHostFile(configPath, alias)
			hosts = append(hosts, entry)
		}
	}

	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Alias < hosts[j].Alias
	})

	return hosts, nil
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// The kevinburke/ssh_config parser doesn't support Match.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}
