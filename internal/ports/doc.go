// Package ports assigns deterministic host ports to service instances.
//
// Ports are drawn from named categories, each a half-open range
// configured in the nodectl configuration (execution RPC, execution
// P2P, consensus API, consensus P2P, relay, metrics, signer,
// dashboard). An allocation scans its category from the bottom with a
// fixed stride and returns the lowest candidates that are free, so the
// same inputs always produce the same assignment.
//
// A port counts as free only when it clears two independent checks: it
// is absent from the used-port snapshot, and a live probe (by default a
// TCP bind that is immediately released) succeeds. The snapshot unions
// three sources: host sockets in listening state, host-side container
// port bindings (docker range notation expanded), and every *_PORT
// value found in an installed instance's configuration. Snapshots are
// assembled fresh for every operation and never cached.
//
// Allocation failure within a category is reported as *ExhaustedError
// and is fatal to the requesting operation; nothing is persisted before
// ports are assigned, so a failed allocation leaves no state behind.
package ports
