/*
Package log provides structured logging for the agent using zerolog.

A single global Logger is configured once per process with Init, then
narrowed with child loggers that carry identifying fields. Every line has
a timestamp and a level; levels are the only per-node status operators
get, since the exit code reports only whether a pass could run at all.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     f, // from log.OpenFile("/var/log/cluster-agent.log")
	})

OpenFile appends, so successive runs started by a timer share one file.
Console output (JSONOutput false) is colored only when writing to stdout.

# Child Loggers

	logger := log.WithComponent("recovery")
	nodeLogger := log.WithNode(logger, node.ID, string(node.Role))
	nodeLogger.Warn().Msg("Node is not running, restarting")

produces

	{"level":"warn","component":"recovery","node_id":"9f3c","role":"oxauth",
	 "time":"2026-01-12T07:00:02Z","message":"Node is not running, restarting"}

WithNode takes the parent logger explicitly so the component field
survives, and WithProviderID does the same; WithComponent starts from the
global Logger.

# Levels

	error  a step failed: fatal for the pass, or a node left misconfigured
	warn   something was down and is being recovered, or a benign failure
	       such as re-importing a certificate that is already trusted
	info   progress: containers restarted, addresses attached, pass finished
	debug  idempotent re-assertions that changed nothing
*/
package log
