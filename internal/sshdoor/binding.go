// Package sshdoor implements the SSH door binding: it runs the command
// configured for an action on a host and reports its output.
package sshdoor

import (
	"context"
	stderrors "errors"
	"net"
	"strconv"
	"time"

	"github.com/rileyhilliard/doorctl/internal/door"
	"github.com/rileyhilliard/doorctl/internal/session"
	"github.com/rileyhilliard/doorctl/pkg/sshutil"
)

// Fixed network timeouts.
const (
	ConnectTimeout     = 2000 * time.Millisecond
	KeyExchangeTimeout = 3000 * time.Millisecond
)

// DefaultResultTimeout bounds the wait for command output when the setup
// does not set one.
const DefaultResultTimeout = 5 * time.Second

const timeoutMessage = "Connection timeout. Connected to the right network?"

// Binding implements session.Binding for door.KindSSH.
type Binding struct {
	// Dial opens the TCP connection; net.Dialer when nil.
	Dial sshutil.DialFunc
	// LookupHost resolves ssh_config aliases; nil disables alias lookup.
	LookupHost func(alias string) sshutil.SSHHostEntry

	ConnectTimeout     time.Duration
	KeyExchangeTimeout time.Duration
}

// NewBinding creates a binding with the fixed timeouts and ~/.ssh/config
// alias resolution.
func NewBinding() *Binding {
	return &Binding{
		LookupHost:         sshutil.LookupHost,
		ConnectTimeout:     ConnectTimeout,
		KeyExchangeTimeout: KeyExchangeTimeout,
	}
}

// Kind implements session.Binding.
func (b *Binding) Kind() string {
	return door.KindSSH
}

// Validate implements session.Binding.
func (b *Binding) Validate(req door.Request) error {
	cfg, ok := req.Transport.(*door.SSHConfig)
	if !ok {
		return door.Local("Internal Error")
	}
	if cfg.Commands.For(req.Action) == "" {
		return door.Local("No command set for %s.", req.Action)
	}
	if cfg.Host == "" {
		return door.Local("Server address is empty.")
	}
	return nil
}

// Run implements session.Binding.
func (b *Binding) Run(ctx context.Context, s *session.Session) error {
	req := s.Request()
	cfg := req.Transport.(*door.SSHConfig)
	log := s.Logger()

	auth, err := SelectAuth(cfg)
	if err != nil {
		return err
	}
	hostKeys, err := sshutil.HostKeyCallback(cfg.KnownHostsFile)
	if err != nil {
		return door.Local("Cannot read known hosts: %v", err)
	}

	address, user := b.resolve(cfg)
	log.Debug("ssh: connecting to %s as %s (%s)", address, user, auth.Name())

	dial := b.Dial
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}
	client, err := sshutil.Dial(ctx, address, sshutil.Options{
		User:             user,
		Auth:             auth.Methods(),
		HostKeyCallback:  hostKeys,
		ConnectTimeout:   orDefault(b.ConnectTimeout, ConnectTimeout),
		HandshakeTimeout: orDefault(b.KeyExchangeTimeout, KeyExchangeTimeout),
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err == nil {
				_ = s.Advance(session.Authenticating)
			}
			return conn, err
		},
	})
	if err != nil {
		return classifyDial(err, auth)
	}
	s.Own(client)

	sess, err := client.NewSession()
	if err != nil {
		return door.Local("%v", err)
	}
	s.Own(sess)
	if err := s.Advance(session.Executing); err != nil {
		return err
	}

	cmd := cfg.Commands.For(req.Action)
	log.Debug("ssh: running %q", cmd)
	out, err := run(s, sess, cmd, orDefault(cfg.Timeout, DefaultResultTimeout))
	if err != nil {
		return err
	}
	s.Succeed(out)
	return nil
}

// resolve fills host, port and user from the ssh_config entry of the host
// alias where the setup leaves them unset.
func (b *Binding) resolve(cfg *door.SSHConfig) (address, user string) {
	host, port, user := cfg.Host, cfg.Port, cfg.User
	if b.LookupHost != nil {
		entry := b.LookupHost(cfg.Host)
		if entry.Hostname != "" {
			host = entry.Hostname
		}
		if port == 0 && entry.Port != "" {
			if p, err := strconv.Atoi(entry.Port); err == nil {
				port = p
			}
		}
		if user == "" {
			user = entry.User
		}
	}
	if user == "" {
		user = door.DefaultSSHUser
	}
	return sshutil.JoinHostPort(host, port), user
}

func classifyDial(err error, auth AuthStrategy) error {
	var mismatch *sshutil.HostKeyMismatchError
	switch {
	case stderrors.As(err, &mismatch):
		return &door.Failure{Code: door.LocalError, Message: "Host key verification failed: " + mismatch.Error(), Cause: err}
	case sshutil.IsTimeout(err):
		return &door.Failure{Code: door.LocalError, Message: timeoutMessage, Cause: err}
	case isAuthFailure(err):
		return auth.Rejected()
	}
	return &door.Failure{Code: door.LocalError, Message: err.Error(), Cause: err}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
