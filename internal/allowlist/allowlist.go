// Package allowlist talks to the external hostname allow-list: a named
// set of values the engine appends resolved hostnames to.
//
// The engine treats appends as idempotent only because it pre-checks
// membership against a fresh read; the remote operation itself is a plain
// append. Entries are never removed by this system.
package allowlist

import "context"

// Client is the narrow contract the correlation engine consumes.
type Client interface {
	// Hostnames returns the full current membership of the list.
	Hostnames(ctx context.Context) ([]string, error)

	// Append adds one hostname to the list. Each call is a discrete
	// remote operation; failures are isolated per hostname.
	Append(ctx context.Context, hostname string) error
}
