package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/imamik/hvroll/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 3
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

var (
	// ErrAuth is returned when the host rejects the credentials.
	ErrAuth = errors.New("ssh authentication rejected")
	// ErrUnreachable is returned when no TCP connection can be opened.
	ErrUnreachable = errors.New("ssh host unreachable")
)

// Config holds SSH client configuration.
type Config struct {
	Port int
	User string

	// Password and PrivateKey select the authentication methods. At least
	// one is required; both may be set.
	Password   string
	PrivateKey []byte

	// DialTimeout bounds the TCP connect and the SSH handshake.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the number of connection retries after the first attempt.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback
}

// Client opens SSH connections with a fixed set of credentials.
type Client struct {
	config *Config
	auth   []ssh.AuthMethod
}

// NewClient validates cfg and prepares the authentication methods.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if cfg.Password == "" && len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config needs a password or a private key")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg

	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.MaxRetries == 0 {
		configCopy.MaxRetries = defaultMaxRetries
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in known_hosts via KnownHosts
	}

	var auth []ssh.AuthMethod
	if len(configCopy.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if configCopy.Password != "" {
		password := configCopy.Password
		auth = append(auth,
			ssh.Password(password),
			// Some hypervisor images only enable keyboard-interactive.
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	return &Client{config: &configCopy, auth: auth}, nil
}

// KnownHosts returns a host key callback backed by OpenSSH known_hosts files.
func KnownHosts(files ...string) (ssh.HostKeyCallback, error) {
	cb, err := knownhosts.New(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	return cb, nil
}

// Dial connects to host, retrying transient failures with backoff. host may
// carry a port; otherwise the configured port is used.
func (c *Client) Dial(ctx context.Context, host string) (*Conn, error) {
	addr := c.address(host)
	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            c.auth,
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	var client *ssh.Client
	err := retry.WithExponentialBackoff(ctx, func() error {
		var dialErr error
		client, dialErr = c.dialOnce(ctx, addr, config)
		return dialErr
	},
		retry.WithMaxRetries(c.config.MaxRetries),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}

	return &Conn{client: client, host: host}, nil
}

func (c *Client) address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(c.config.Port))
}

func (c *Client) dialOnce(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Fatal(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	// Bound the handshake; the connection itself has no deadline afterwards.
	_ = conn.SetDeadline(time.Now().Add(c.config.DialTimeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		if isAuthError(err) {
			return nil, retry.Fatal(fmt.Errorf("%w: %w", ErrAuth, err))
		}
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// isAuthError recognizes the handshake error x/crypto/ssh returns once
// every authentication method was rejected. The package exposes no type
// for it.
func isAuthError(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// Conn is an established connection to one host.
type Conn struct {
	client *ssh.Client
	host   string
}

// Run executes command in a new session, copying its output to stdout and
// stderr (either may be nil). It returns the remote exit status. err is
// set only when the command could not be started, the connection broke, the
// command ended without a status, or ctx ended.
func (c *Conn) Run(ctx context.Context, command string, stdout, stderr io.Writer) (int, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return -1, fmt.Errorf("failed to create SSH session on %s: %w", c.host, err)
	}
	defer func() { _ = session.Close() }()

	session.Stdout = stdout
	session.Stderr = stderr
	if err := session.Start(command); err != nil {
		return -1, fmt.Errorf("failed to start command on %s: %w", c.host, err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return -1, ctx.Err()
	case err := <-done:
		return exitStatus(c.host, err)
	}
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.client.Close()
}

func exitStatus(host string, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return -1, fmt.Errorf("command on %s did not complete: %w", host, err)
}
