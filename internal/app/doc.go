// Package app contains the top-level application controller.
//
// The controller owns exactly one backend supervisor and drives the
// application lifecycle: Bootstrapping while the platform comes up and the
// backend handshake is in flight, Running once the primary window has a
// backend endpoint to talk to, and ShuttingDown when the last window closes
// or an explicit quit arrives. Teardown runs exactly once.
//
// Extensions register as Contributions in an explicit ordered collection and
// are started and stopped uniformly by the controller.
package app
