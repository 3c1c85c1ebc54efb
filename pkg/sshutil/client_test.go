package sshutil_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/doorctl/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/doorctl/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

func TestDial_PasswordAndExec(t *testing.T) {
	srv := sshtesting.NewServer(t, sshtesting.WithPassword("pw"))

	client, err := sshutil.Dial(context.Background(), srv.Addr, sshutil.Options{
		User:             "root",
		Auth:             []ssh.AuthMethod{ssh.Password("pw")},
		ConnectTimeout:   time.Second,
		HandshakeTimeout: time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	sess, err := client.NewSession()
	require.NoError(t, err)
	defer sess.Close()

	out, err := sess.Output("echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
	assert.Equal(t, []string{"echo hello"}, srv.Execs())
}

func TestDial_HandshakeTimeout(t *testing.T) {
	srv := sshtesting.NewServer(t, sshtesting.WithStalledHandshake())

	start := time.Now()
	_, err := sshutil.Dial(context.Background(), srv.Addr, sshutil.Options{
		User:             "root",
		HandshakeTimeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, sshutil.IsTimeout(err), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDial_UsesDialer(t *testing.T) {
	var dialed string
	_, err := sshutil.Dial(context.Background(), "door.lan:22", sshutil.Options{
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			dialed = address
			return nil, &net.OpError{Op: "dial", Net: network, Err: os.ErrDeadlineExceeded}
		},
	})
	require.Error(t, err)
	assert.Equal(t, "door.lan:22", dialed)
	assert.True(t, sshutil.IsTimeout(err))
}

func TestJoinHostPort(t *testing.T) {
	assert.Equal(t, "door.lan:22", sshutil.JoinHostPort("door.lan", 0))
	assert.Equal(t, "door.lan:2222", sshutil.JoinHostPort("door.lan", 2222))
	assert.Equal(t, "[::1]:22", sshutil.JoinHostPort("::1", 22))
}

func TestHostKeyCallback(t *testing.T) {
	srv := sshtesting.NewServer(t, sshtesting.WithNoClientAuth())
	other := sshtesting.NewServer(t, sshtesting.WithNoClientAuth())

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(srv.Addr), knownhosts.Normalize(other.Addr)}, srv.HostKey)
	require.NoError(t, os.WriteFile(knownHosts, []byte(line+"\n"), 0600))

	cb, err := sshutil.HostKeyCallback(knownHosts)
	require.NoError(t, err)

	client, err := sshutil.Dial(context.Background(), srv.Addr, sshutil.Options{User: "root", HostKeyCallback: cb})
	require.NoError(t, err)
	client.Close()

	_, err = sshutil.Dial(context.Background(), other.Addr, sshutil.Options{User: "root", HostKeyCallback: cb})
	var mismatch *sshutil.HostKeyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "ssh-ed25519", mismatch.ReceivedType)
	assert.Contains(t, mismatch.Suggestion(), "ssh-keygen -R")

	insecure, err := sshutil.HostKeyCallback("")
	require.NoError(t, err)
	assert.NoError(t, insecure("x", nil, srv.HostKey))
}
