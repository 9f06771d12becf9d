// Package manager is the front door for lifecycle operations. Every
// verb enters through Operate, which resolves the service kind from the
// instance name, takes the per-instance lock and drives the matching
// flow.
//
// The manager owns the work that must happen before a flow can run:
// install seeds the initial configuration (client selection, upstream
// endpoints) and assigns host ports from the configured ranges; remove
// computes a destruction plan and puts it in front of the operator
// before anything is torn down.
//
// Remove converges. An uninstalled name with no leftover containers is
// a clean no-op, and one with leftovers is scrubbed through the regular
// remove flow, so a half-failed removal can simply be re-run.
package manager
