// Package testing provides an in-process SSH server for tests.
// It accepts exec requests and answers them from a handler, so callers can
// exercise authentication, output capture and exit statuses without a
// real host.
package testing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	stdtesting "testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// ExecResult is the server's answer to one exec request.
type ExecResult struct {
	Stdout     []byte
	Stderr     []byte
	ExitStatus int
	// NoExitStatus closes the channel without sending an exit status.
	NoExitStatus bool
	// CloseWithoutData closes the channel before writing any output.
	CloseWithoutData bool
	// Delay holds the output back.
	Delay time.Duration
}

// ExecHandler answers an exec request.
type ExecHandler func(cmd string) ExecResult

// EchoHandler runs "echo <text>" and "exit <n>"; anything else exits 127.
func EchoHandler(cmd string) ExecResult {
	switch {
	case strings.HasPrefix(cmd, "echo "):
		return ExecResult{Stdout: []byte(strings.TrimPrefix(cmd, "echo ") + "\n")}
	case strings.HasPrefix(cmd, "exit "):
		var n int
		fmt.Sscanf(strings.TrimPrefix(cmd, "exit "), "%d", &n)
		return ExecResult{ExitStatus: n}
	}
	return ExecResult{Stderr: []byte("command not found\n"), ExitStatus: 127}
}

// Option configures a Server.
type Option func(*Server)

// WithPassword accepts password authentication with pw.
func WithPassword(pw string) Option {
	return func(s *Server) { s.password = &pw }
}

// WithAuthorizedKey accepts public key authentication with key.
func WithAuthorizedKey(key ssh.PublicKey) Option {
	return func(s *Server) { s.authorized = append(s.authorized, key) }
}

// WithNoClientAuth lets clients in without authentication.
func WithNoClientAuth() Option {
	return func(s *Server) { s.noAuth = true }
}

// WithHandler sets the exec handler. The default is EchoHandler.
func WithHandler(h ExecHandler) Option {
	return func(s *Server) { s.handler = h }
}

// WithStalledHandshake accepts TCP connections but never speaks SSH.
func WithStalledHandshake() Option {
	return func(s *Server) { s.stall = true }
}

// Server is an SSH server listening on a loopback port.
type Server struct {
	// Addr is the host:port the server listens on.
	Addr string
	// HostKey is the server's public host key.
	HostKey ssh.PublicKey

	listener   net.Listener
	config     *ssh.ServerConfig
	handler    ExecHandler
	password   *string
	authorized []ssh.PublicKey
	noAuth     bool
	stall      bool

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	execs   []string
	accepts int
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t stdtesting.TB, opts ...Option) *Server {
	t.Helper()
	s, err := Start(opts...)
	if err != nil {
		t.Fatalf("starting ssh server: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Start starts a server; the caller must Close it.
func Start(opts ...Option) (*Server, error) {
	s := &Server{
		handler: EchoHandler,
		conns:   make(map[net.Conn]struct{}),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, err
	}
	s.HostKey = signer.PublicKey()
	s.config = s.serverConfig()
	s.config.AddHostKey(signer)

	s.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s.Addr = s.listener.Addr().String()

	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) serverConfig() *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{NoClientAuth: s.noAuth}
	if s.password != nil {
		want := *s.password
		cfg.PasswordCallback = func(_ ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if string(pw) == want {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected")
		}
	}
	if len(s.authorized) > 0 {
		cfg.PublicKeyCallback = func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			for _, k := range s.authorized {
				if bytes.Equal(k.Marshal(), key.Marshal()) {
					return nil, nil
				}
			}
			return nil, fmt.Errorf("unknown public key")
		}
	}
	return cfg
}

// Close stops the server, drops all connections and waits for its goroutines.
func (s *Server) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.closed)
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		s.listener.Close()
	})
	s.wg.Wait()
}

// Execs returns the commands received so far.
func (s *Server) Execs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.execs...)
}

// Accepts returns the number of TCP connections accepted.
func (s *Server) Accepts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepts
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		select {
		case <-s.closed:
			s.mu.Unlock()
			conn.Close()
			return
		default:
		}
		s.accepts++
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.drop(conn)
			s.handleConn(conn)
		}()
	}
}

func (s *Server) drop(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	if s.stall {
		_, _ = io.Copy(io.Discard, conn)
		return
	}

	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	defer sconn.Close()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ssh.DiscardRequests(reqs)
	}()

	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "only session channels")
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleSession(ch, chReqs)
		}()
	}
}

func (s *Server) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()
	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.execs = append(s.execs, payload.Command)
		s.mu.Unlock()

		s.answer(ch, s.handler(payload.Command))
		return
	}
}

func (s *Server) answer(ch ssh.Channel, res ExecResult) {
	if res.Delay > 0 {
		select {
		case <-time.After(res.Delay):
		case <-s.closed:
			return
		}
	}
	if res.CloseWithoutData {
		return
	}
	if len(res.Stderr) > 0 {
		_, _ = ch.Stderr().Write(res.Stderr)
	}
	if len(res.Stdout) > 0 {
		_, _ = ch.Write(res.Stdout)
	}
	if !res.NoExitStatus {
		status := struct{ Status uint32 }{uint32(res.ExitStatus)}
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
	}
	_ = ch.CloseWrite()
}
