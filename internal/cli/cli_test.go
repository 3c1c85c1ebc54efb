package cli

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/rileyhilliard/doorctl/internal/config"
	"github.com/rileyhilliard/doorctl/internal/door"
	gatttesting "github.com/rileyhilliard/doorctl/internal/gatt/testing"
	"github.com/rileyhilliard/doorctl/internal/metrics"
	"github.com/rileyhilliard/doorctl/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/doorctl/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// testEnv installs a non-interactive environment for the duration of a test.
func testEnv(t *testing.T) (*environment, *gatttesting.Adapter) {
	t.Helper()
	adapter := gatttesting.NewAdapter()
	e := &environment{
		bluetooth:   adapter,
		recorder:    metrics.Noop(),
		interactive: func() bool { return false },
		animate:     func() bool { return false },
		prompt: func(string) (string, error) {
			t.Fatal("unexpected passphrase prompt")
			return "", nil
		},
		newPrompt: func() (string, error) {
			t.Fatal("unexpected passphrase prompt")
			return "", nil
		},
	}
	old := env
	env = e
	t.Cleanup(func() { env = old })
	return e, adapter
}

// runCLI executes the root command with args and returns stdout, stderr
// and the exit code Execute would return.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	cfgFile, noColor, verbose, metricsFile = "", false, false, ""
	pairForce, keygenNoPassphrase, versionShort = false, false, false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		stderr.WriteString(err.Error())
	}
	return stdout.String(), stderr.String(), exitCode(err)
}

func hostPort(t *testing.T, srv *sshtesting.Server) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Addr)
	require.NoError(t, err)
	return host, port
}

func writeDoorConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func sshDoorConfig(t *testing.T, srv *sshtesting.Server, extra string) string {
	host, port := hostPort(t, srv)
	return writeDoorConfig(t, fmt.Sprintf(`version: 1
default: front
doors:
  front:
    ssh:
      host: %s
      port: %s
      user: door
      password: secret
%s      commands:
        open: echo opened
        close: exit 3
`, host, port, extra))
}

func TestVersion(t *testing.T) {
	testEnv(t)
	old := build
	SetVersionInfo("1.2.3", "abc", "today")
	t.Cleanup(func() { build = old })

	out, _, code := runCLI(t, "version")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "doorctl v1.2.3\n")
	assert.Contains(t, out, "commit  abc\n")
	assert.Contains(t, out, "built   today\n")

	out, _, _ = runCLI(t, "version", "--short")
	assert.Equal(t, "1.2.3\n", out)
}

func TestCurrentBuild_FromModuleInfo(t *testing.T) {
	old, oldRead := build, readBuildInfo
	t.Cleanup(func() { build, readBuildInfo = old, oldRead })
	SetVersionInfo("dev", "none", "unknown")

	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "v0.3.0"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			},
		}, true
	}
	assert.Equal(t, buildInfo{Version: "v0.3.0", Commit: "0123456789ab", Date: "2026-01-02T03:04:05Z"}, currentBuild())

	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
	}
	assert.Equal(t, buildInfo{Version: "dev", Commit: "none", Date: "unknown"}, currentBuild())

	// Stamped builds ignore the module info.
	SetVersionInfo("1.0.0", "abc", "today")
	assert.Equal(t, "1.0.0", currentBuild().Version)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "v1.0.0", formatVersion("1.0.0"))
	assert.Equal(t, "v1.0.0", formatVersion("v1.0.0"))
	assert.Equal(t, "", formatVersion(""))
}

func TestOpen_SSH(t *testing.T) {
	testEnv(t)
	srv := sshtesting.NewServer(t, sshtesting.WithPassword("secret"))
	path := sshDoorConfig(t, srv, "")

	out, _, code := runCLI(t, "--config", path, "open")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "✓ front: open")
	assert.Contains(t, out, "  opened\n")
	assert.Equal(t, []string{"echo opened"}, srv.Execs())
}

func TestClose_EOFIsLocal(t *testing.T) {
	testEnv(t)
	srv := sshtesting.NewServer(t, sshtesting.WithPassword("secret"))
	path := sshDoorConfig(t, srv, "")

	out, _, code := runCLI(t, "--config", path, "close", "front")
	assert.Equal(t, ExitLocal, code)
	assert.Contains(t, out, "✗ front: close failed")
	assert.Contains(t, out, "Remote end closed connection")
}

func TestOpen_RemoteRejection(t *testing.T) {
	testEnv(t)
	srv := sshtesting.NewServer(t, sshtesting.WithPassword("other"))
	path := sshDoorConfig(t, srv, "")

	out, _, code := runCLI(t, "--config", path, "open")
	assert.Equal(t, ExitRemote, code)
	assert.Contains(t, out, "refused by the door")
	assert.Contains(t, out, "Password was not accepted.")
}

func TestRing_NoCommand(t *testing.T) {
	testEnv(t)
	srv := sshtesting.NewServer(t, sshtesting.WithPassword("secret"))
	path := sshDoorConfig(t, srv, "")

	out, _, code := runCLI(t, "--config", path, "ring")
	assert.Equal(t, ExitLocal, code)
	assert.Contains(t, out, "No command set for ring.")
	assert.Zero(t, srv.Accepts())
}

func TestOpen_UnknownDoor(t *testing.T) {
	testEnv(t)
	srv := sshtesting.NewServer(t, sshtesting.WithPassword("secret"))
	path := sshDoorConfig(t, srv, "")

	_, stderr, code := runCLI(t, "--config", path, "open", "back")
	assert.Equal(t, ExitLocal, code)
	assert.Contains(t, stderr, "Door 'back' isn't defined")
}

func TestKeygenThenOpen(t *testing.T) {
	testEnv(t)
	path := writeDoorConfig(t, `version: 1
doors:
  front:
    ssh:
      host: 127.0.0.1
      key_file: ~/.ssh/id_door
      commands:
        open: echo opened
`)

	out, _, code := runCLI(t, "--config", path, "keygen", "front", "--no-passphrase")
	require.Equal(t, ExitOK, code)
	require.True(t, strings.HasPrefix(out, "ssh-ed25519 "))
	assert.Contains(t, out, "doorctl-front")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	s := cfg.Doors["front"].SSH
	require.NotNil(t, s.Key)
	assert.Empty(t, s.KeyFile)
	assert.Equal(t, sshutil.GeneratedKeyType, s.Key.Type)
	assert.False(t, s.Key.Encrypted)

	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(out))
	require.NoError(t, err)
	srv := sshtesting.NewServer(t, sshtesting.WithAuthorizedKey(pub))

	extra := fmt.Sprintf("      key:\n        type: %s\n        private: %s\n        public: %s\n", s.Key.Type, s.Key.Private, s.Key.Public)
	path = sshDoorConfig(t, srv, extra)

	out, _, code = runCLI(t, "--config", path, "open")
	assert.Equal(t, ExitOK, code, out)
	assert.Contains(t, out, "opened")
}

func TestOpen_EncryptedKeyNeedsPassphrase(t *testing.T) {
	testEnv(t)
	k, err := sshutil.GenerateKey("hunter2", nil)
	require.NoError(t, err)
	pub, err := ssh.ParsePublicKey(k.Public)
	require.NoError(t, err)
	srv := sshtesting.NewServer(t, sshtesting.WithAuthorizedKey(pub))

	enc := config.EncodeKey(sshutil.GeneratedKeyType, k.Private, k.Public, true)
	extra := fmt.Sprintf("      key:\n        type: %s\n        private: %s\n        public: %s\n        encrypted: true\n", enc.Type, enc.Private, enc.Public)
	path := sshDoorConfig(t, srv, extra)

	_, stderr, code := runCLI(t, "--config", path, "open")
	assert.Equal(t, ExitLocal, code)
	assert.Contains(t, stderr, "The key pair is encrypted")

	t.Setenv(passphraseEnv, "wrong")
	out, _, code := runCLI(t, "--config", path, "open")
	assert.Equal(t, ExitLocal, code)
	assert.Contains(t, out, "Key pair passphrase was not accepted.")

	t.Setenv(passphraseEnv, "hunter2")
	out, _, code = runCLI(t, "--config", path, "open")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "opened")
}

func TestOpen_PromptsForPassphrase(t *testing.T) {
	e, _ := testEnv(t)
	k, err := sshutil.GenerateKey("hunter2", nil)
	require.NoError(t, err)
	pub, err := ssh.ParsePublicKey(k.Public)
	require.NoError(t, err)
	srv := sshtesting.NewServer(t, sshtesting.WithAuthorizedKey(pub))

	enc := config.EncodeKey(sshutil.GeneratedKeyType, k.Private, k.Public, true)
	extra := fmt.Sprintf("      key:\n        type: %s\n        private: %s\n        public: %s\n        encrypted: true\n", enc.Type, enc.Private, enc.Public)
	path := sshDoorConfig(t, srv, extra)

	answers := []string{"nope", "hunter2"}
	prompts := 0
	e.interactive = func() bool { return true }
	e.prompt = func(string) (string, error) {
		a := answers[prompts]
		prompts++
		return a, nil
	}

	out, _, code := runCLI(t, "--config", path, "open")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, 2, prompts)
	assert.Contains(t, out, "opened")
}

func TestDoors(t *testing.T) {
	e, _ := testEnv(t)
	e.lookupHost = func(alias string) sshutil.SSHHostEntry {
		if alias == "frontdoor" {
			return sshutil.SSHHostEntry{Alias: alias, Hostname: "10.0.0.5"}
		}
		return sshutil.SSHHostEntry{Alias: alias}
	}
	path := writeDoorConfig(t, `version: 1
default: front
doors:
  front:
    ssh:
      host: frontdoor
      user: pi
  garage:
    bluetooth:
      address: "54:D2:72:00:11:22"
`)

	out, _, code := runCLI(t, "--config", path, "doors")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "front *")
	assert.Contains(t, out, "frontdoor (10.0.0.5, user: pi)")
	assert.Contains(t, out, "54:D2:72:00:11:22")
}

func TestPair_Errors(t *testing.T) {
	testEnv(t)
	srv := sshtesting.NewServer(t, sshtesting.WithPassword("secret"))
	path := sshDoorConfig(t, srv, "")

	_, stderr, code := runCLI(t, "--config", path, "pair", "front")
	assert.Equal(t, ExitLocal, code)
	assert.Contains(t, stderr, "is not a Bluetooth lock")
}

func TestPair_DeviceWithoutPairingService(t *testing.T) {
	_, adapter := testEnv(t)
	adapter.Add("54:D2:72:00:11:22", gatttesting.NewDevice())
	path := writeDoorConfig(t, `version: 1
doors:
  garage:
    bluetooth:
      address: "54:D2:72:00:11:22"
`)

	out, _, code := runCLI(t, "--config", path, "pair", "garage")
	assert.Equal(t, ExitRemote, code)
	assert.Contains(t, out, "Service not found")
	assert.Equal(t, []string{"54:D2:72:00:11:22"}, adapter.Dialed())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, exitCode(nil))
	assert.Equal(t, ExitOK, exitCode(outcomeError(door.Outcome{Code: door.Success})))
	assert.Equal(t, ExitRemote, exitCode(outcomeError(door.Outcome{Code: door.RemoteError})))
	assert.Equal(t, ExitLocal, exitCode(outcomeError(door.Outcome{Code: door.LocalError})))
	assert.Equal(t, ExitLocal, exitCode(fmt.Errorf("plain")))
}
