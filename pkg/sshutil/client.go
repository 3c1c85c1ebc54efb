// Package sshutil dials SSH hosts with bounded connect and handshake
// timeouts, resolves host aliases from ~/.ssh/config, builds host key
// callbacks and decodes the key pair formats doorctl stores.
package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DialFunc opens the transport connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options configures Dial.
type Options struct {
	User string
	Auth []ssh.AuthMethod
	// HostKeyCallback defaults to accepting any host key.
	HostKeyCallback ssh.HostKeyCallback
	// ConnectTimeout bounds the TCP connect.
	ConnectTimeout time.Duration
	// HandshakeTimeout bounds key exchange and authentication.
	HandshakeTimeout time.Duration
	// Dial replaces the default net.Dialer.
	Dial DialFunc
}

// Client wraps an SSH connection with the address it was dialed at.
type Client struct {
	*ssh.Client
	Address string
}

// Dial connects to address (host:port) and runs the SSH handshake.
// Errors from the network layer are returned wrapped, so callers can still
// inspect them with errors.As (for example net.Error.Timeout).
func Dial(ctx context.Context, address string, opts Options) (*Client, error) {
	dial := opts.Dial
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}
	hostKeyCallback := opts.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // verification is opt-in per door
	}

	dialCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}
	conn, err := dial(dialCtx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}

	if opts.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(opts.HandshakeTimeout))
	}
	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            opts.Auth,
		HostKeyCallback: hostKeyCallback,
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// JoinHostPort formats host and port, defaulting the port to 22.
func JoinHostPort(host string, port int) string {
	if port <= 0 {
		port = 22
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// IsTimeout reports whether err is a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout")
}

// HostKeyCallback returns a callback verifying host keys against
// knownHostsPath. An empty path accepts any host key.
func HostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // verification is opt-in per door
	}
	return createHostKeyCallback(expandPath(knownHostsPath))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// EncryptedKeyError is returned when a key requires a passphrase and none
// or a wrong one was given.
type EncryptedKeyError struct {
	Cause error
}

func (e *EncryptedKeyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("key is encrypted (passphrase protected): %v", e.Cause)
	}
	return "key is encrypted (passphrase protected)"
}

func (e *EncryptedKeyError) Unwrap() error {
	return e.Cause
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The door host's key doesn't match %s.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the controller was replaced, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		e.KnownHosts, wantStr, e.ReceivedType, host, e.KnownHosts)
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("loading known hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
		}
		return err
	}, nil
}
