// Package retry retries operations with exponential backoff.
//
// [WithExponentialBackoff] is used when opening connections that may fail
// transiently: SSH sessions to hypervisor hosts and the management engine
// API. Errors wrapped with [Fatal] stop the loop at once.
package retry
