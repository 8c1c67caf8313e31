// Package probe checks host reachability with ICMP echo requests.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	fastping "github.com/tatsushid/go-fastping"

	"github.com/imamik/hvroll/internal/logging"
)

const (
	defaultMaxRTT   = 2 * time.Second
	defaultAttempts = 3
)

// Config configures the ICMP prober.
type Config struct {
	// Network is "ip" for raw ICMP sockets (needs CAP_NET_RAW) or "udp" for
	// unprivileged datagram ICMP. Defaults to "ip".
	Network string
	// MaxRTT is how long one echo round waits for a reply.
	MaxRTT time.Duration
	// Attempts is the number of echo rounds before giving up.
	Attempts int
}

// ICMP probes hosts with fastping. The zero value is not usable; use New.
type ICMP struct {
	cfg Config
	log logging.Logger
}

// New returns an ICMP prober.
func New(cfg Config) *ICMP {
	if cfg.Network == "" {
		cfg.Network = "ip"
	}
	if cfg.MaxRTT <= 0 {
		cfg.MaxRTT = defaultMaxRTT
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	return &ICMP{cfg: cfg, log: logging.New("probe")}
}

// Probe reports whether address answered an echo request. Failures are
// logged at debug level since an unanswered probe is the expected outcome
// while a host reboots.
func (p *ICMP) Probe(ctx context.Context, address string) bool {
	err := p.Check(ctx, address)
	if err != nil {
		p.log.WithField("address", address).WithError(err).Debug("probe failed")
	}
	return err == nil
}

// Check sends echo requests to address until one is answered, the
// configured attempts are used up, or ctx ends.
func (p *ICMP) Check(ctx context.Context, address string) error {
	dst, err := resolve(ctx, address)
	if err != nil {
		return err
	}

	pinger := fastping.NewPinger()
	if _, err := pinger.Network(p.cfg.Network); err != nil {
		return fmt.Errorf("invalid probe network %q: %w", p.cfg.Network, err)
	}
	pinger.MaxRTT = p.cfg.MaxRTT
	pinger.AddIPAddr(dst)

	result := make(chan error, 1)
	pinger.OnRecv = func(ip *net.IPAddr, _ time.Duration) {
		if ip != nil && ip.IP.Equal(dst.IP) {
			select {
			case result <- nil:
			default:
			}
		}
	}
	var attempt int
	pinger.OnIdle = func() {
		attempt++
		if attempt >= p.cfg.Attempts {
			select {
			case result <- fmt.Errorf("no echo reply from %s after %d attempts", dst.IP, attempt):
			default:
			}
		}
	}

	pinger.RunLoop()
	select {
	case <-pinger.Done():
		err = pinger.Err()
		if err == nil {
			err = fmt.Errorf("pinger for %s stopped", dst.IP)
		}
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}
	pinger.Stop()
	return err
}

// resolve accepts an IP, a hostname, or either with a port.
func resolve(ctx context.Context, address string) (*net.IPAddr, error) {
	host := address
	if h, _, err := net.SplitHostPort(address); err == nil {
		host = h
	}
	if host == "" {
		return nil, fmt.Errorf("empty probe address")
	}
	if ip := net.ParseIP(host); ip != nil {
		return &net.IPAddr{IP: ip}, nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return &net.IPAddr{IP: a.IP}, nil
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	return &net.IPAddr{IP: addrs[0].IP}, nil
}
