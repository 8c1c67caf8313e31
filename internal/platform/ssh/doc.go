// Package ssh runs commands on hypervisor hosts over SSH.
//
// A [Client] holds the credentials shared by every host of a rollout and
// opens one [Conn] per host. Commands run on that connection report their
// exit status, so callers can tell a command that failed from a connection
// that broke. Authentication failures are reported as [ErrAuth] and never
// retried; hosts that cannot be reached at all are reported as
// [ErrUnreachable] after the configured retries.
package ssh
