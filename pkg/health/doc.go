/*
Package health provides readiness probes used to order recovery between
dependent roles.

A directory node must be answering before the roles that depend on it are
useful. Instead of sleeping a fixed settle delay, the directory executor
polls a TCP connect against the node's overlay address:

	checker := health.NewTCPChecker("10.2.1.1:1636")
	result, err := health.WaitReady(ctx, checker, 5*time.Second, 2*time.Minute)

An address without a port is probed on DirectoryPort (1636, LDAPS).

WaitReady is bounded: when the timeout elapses it returns the last result and
an error, and the caller logs it and leaves the retry to the next pass.
*/
package health
