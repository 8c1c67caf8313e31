// Package ovirt implements cluster.ControlPlane on the oVirt / RHV engine
// REST API.
package ovirt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	ovirtsdk4 "github.com/ovirt/go-ovirt"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/logging"
	"github.com/imamik/hvroll/internal/util/retry"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetries    = 3
	defaultRetryDelay = 2 * time.Second
	apiSuffix         = "/ovirt-engine/api"
)

// Config holds the engine connection settings.
type Config struct {
	// URL is the engine address. A bare host or https://host is completed
	// with the API path.
	URL      string
	Username string
	Password string
	// CAFile verifies the engine certificate. Insecure skips verification.
	CAFile   string
	Insecure bool
	Timeout  time.Duration
	Retries  int
}

// Engine is a connected engine session. It is safe for sequential use.
type Engine struct {
	conn *ovirtsdk4.Connection
	log  logging.Logger
}

var _ cluster.ControlPlane = (*Engine)(nil)

// Connect opens and tests a session, retrying transient failures.
// Rejected credentials are not retried.
func Connect(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("engine URL cannot be empty")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("engine username cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = defaultRetries
	}
	apiURL, err := APIURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	log := logging.New("ovirt").WithField("engine", apiURL)

	var conn *ovirtsdk4.Connection
	err = retry.WithExponentialBackoff(ctx, func() error {
		builder := ovirtsdk4.NewConnectionBuilder().
			URL(apiURL).
			Username(cfg.Username).
			Password(cfg.Password).
			Insecure(cfg.Insecure).
			Timeout(cfg.Timeout)
		if cfg.CAFile != "" {
			builder = builder.CAFile(cfg.CAFile)
		}
		c, buildErr := builder.Build()
		if buildErr != nil {
			// Bad URL or unreadable CA file will not get better.
			return retry.Fatal(fmt.Errorf("failed to build engine connection: %w", buildErr))
		}
		if testErr := c.Test(); testErr != nil {
			_ = c.Close()
			if isAuthError(testErr) {
				return retry.Fatal(fmt.Errorf("engine rejected credentials for %s: %w", cfg.Username, testErr))
			}
			return classify(testErr)
		}
		conn = c
		return nil
	},
		retry.WithMaxRetries(cfg.Retries),
		retry.WithInitialDelay(defaultRetryDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.WithError(err).WithField("attempt", attempt).Warnf("engine not ready, retrying in %s", delay)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine %s: %w", apiURL, err)
	}

	log.Debug("connected")
	return &Engine{conn: conn, log: log}, nil
}

// APIURL normalizes an engine address to its API endpoint.
func APIURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid engine URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid engine URL %q: missing host", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(u.Path, apiSuffix) {
		u.Path += apiSuffix
	}
	return u.String(), nil
}

// ListDatacenters returns every data center the user can see.
func (e *Engine) ListDatacenters(ctx context.Context) ([]cluster.Datacenter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := e.conn.SystemService().DataCentersService().List().Send()
	if err != nil {
		return nil, classify(err)
	}
	dcs, ok := resp.DataCenters()
	if !ok {
		return nil, nil
	}
	out := make([]cluster.Datacenter, 0, len(dcs.Slice()))
	for _, dc := range dcs.Slice() {
		out = append(out, toDatacenter(dc))
	}
	return out, nil
}

// ListClusters returns the clusters of one data center.
func (e *Engine) ListClusters(ctx context.Context, datacenter string) ([]cluster.Cluster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := e.conn.SystemService().ClustersService().List().
		Search(searchTerm("datacenter", datacenter)).
		Send()
	if err != nil {
		return nil, classify(err)
	}
	clusters, ok := resp.Clusters()
	if !ok {
		return nil, nil
	}
	out := make([]cluster.Cluster, 0, len(clusters.Slice()))
	for _, c := range clusters.Slice() {
		name, ok := c.Name()
		if !ok {
			continue
		}
		// the engine keeps no cluster status; the inventory derives one
		out = append(out, cluster.Cluster{Name: name})
	}
	return out, nil
}

// ListHosts returns the hosts of one cluster.
func (e *Engine) ListHosts(ctx context.Context, clusterName string) ([]cluster.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := e.conn.SystemService().HostsService().List().
		Search(searchTerm("cluster", clusterName)).
		Send()
	if err != nil {
		return nil, classify(err)
	}
	hosts, ok := resp.Hosts()
	if !ok {
		return nil, nil
	}
	out := make([]cluster.Host, 0, len(hosts.Slice()))
	for _, h := range hosts.Slice() {
		host := toHost(h)
		host.Cluster = clusterName
		out = append(out, host)
	}
	return out, nil
}

// GetHost looks a host up by name.
func (e *Engine) GetHost(ctx context.Context, name string) (cluster.Host, error) {
	if err := ctx.Err(); err != nil {
		return cluster.Host{}, err
	}
	resp, err := e.conn.SystemService().HostsService().List().
		Search(searchTerm("name", name)).
		Send()
	if err != nil {
		return cluster.Host{}, classify(err)
	}
	hosts, ok := resp.Hosts()
	if ok {
		// Search matches by pattern; insist on the exact name.
		for _, h := range hosts.Slice() {
			if n, _ := h.Name(); n == name {
				return toHost(h), nil
			}
		}
	}
	return cluster.Host{}, fmt.Errorf("%w: %s", cluster.ErrHostNotFound, name)
}

// Activate asks the engine to take the host out of maintenance.
func (e *Engine) Activate(ctx context.Context, host cluster.Host) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	svc, err := e.hostService(ctx, host)
	if err != nil {
		return err
	}
	e.log.WithField("host", host.Name).Debug("requesting activation")
	if _, err := svc.Activate().Send(); err != nil {
		return fmt.Errorf("activate %s: %w", host.Name, classify(err))
	}
	return nil
}

// Deactivate asks the engine to move the host into maintenance, migrating
// its virtual machines away.
func (e *Engine) Deactivate(ctx context.Context, host cluster.Host) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	svc, err := e.hostService(ctx, host)
	if err != nil {
		return err
	}
	e.log.WithField("host", host.Name).Debug("requesting maintenance")
	if _, err := svc.Deactivate().Send(); err != nil {
		return fmt.Errorf("deactivate %s: %w", host.Name, classify(err))
	}
	return nil
}

func (e *Engine) hostService(ctx context.Context, host cluster.Host) (*ovirtsdk4.HostService, error) {
	id := host.ID
	if id == "" {
		fresh, err := e.GetHost(ctx, host.Name)
		if err != nil {
			return nil, err
		}
		id = fresh.ID
	}
	return e.conn.SystemService().HostsService().HostService(id), nil
}

// Close ends the engine session.
func (e *Engine) Close() error {
	return e.conn.Close()
}

// searchTerm builds an engine search clause, quoting values with spaces.
func searchTerm(field, value string) string {
	if strings.ContainsAny(value, " \t\"") {
		value = `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
	}
	return field + "=" + value
}

func toDatacenter(dc *ovirtsdk4.DataCenter) cluster.Datacenter {
	out := cluster.Datacenter{}
	if name, ok := dc.Name(); ok {
		out.Name = name
	}
	if status, ok := dc.Status(); ok {
		out.Status = string(status)
	}
	return out
}

func toHost(h *ovirtsdk4.Host) cluster.Host {
	out := cluster.Host{}
	if id, ok := h.Id(); ok {
		out.ID = id
	}
	if name, ok := h.Name(); ok {
		out.Name = name
	}
	if addr, ok := h.Address(); ok {
		out.Address = addr
	}
	if status, ok := h.Status(); ok {
		out.RawState = string(status)
		out.State = cluster.ParseHostState(out.RawState)
	}
	if os, ok := h.Os(); ok {
		if t, ok := os.Type(); ok {
			out.OSType = t
		}
		if v, ok := os.Version(); ok {
			if full, ok := v.FullVersion(); ok {
				out.OSVersion = full
			}
		}
	}
	if summary, ok := h.Summary(); ok {
		if active, ok := summary.Active(); ok {
			out.ActiveVMs = int(active)
		}
	}
	return out
}

// classify marks transport failures as cluster.ErrUnreachable and leaves
// API faults as they are.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %w", cluster.ErrUnreachable, err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection refused", "no such host", "i/o timeout", "eof"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", cluster.ErrUnreachable, err)
		}
	}
	return err
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "access_denied") ||
		strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "401") ||
		strings.Contains(msg, "cannot authenticate")
}
