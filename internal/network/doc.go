// Package network computes and reconciles the fleet's network topology.
//
// Every Ethnode owns one isolated network; monitoring, validator and
// signer traffic runs over shared networks that exist exactly while an
// installed instance of a referencing kind exists. Desired membership
// is a pure function of an instance and the installed fleet; the
// reconciler diffs it against each instance's network overlay, rewrites
// drifted overlays wholesale and restarts affected instances one at a
// time. Failures are isolated per subject and collected into the pass
// report.
package network
