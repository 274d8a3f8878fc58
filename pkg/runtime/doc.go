/*
Package runtime provides the containerd client the recovery agent uses to
inspect and revive containers on the local machine.

Only a handful of operations are needed:

	IsRunning(ctx, id)     running or paused task present
	Restart(ctx, id)       stop (SIGTERM, then SIGKILL after the stop timeout), start new task
	StopContainer(ctx, id) stop and delete the task; no task is a no-op
	Exec(ctx, id, cmd)     run "sh -c cmd" in the container, capture exit code and output
	PullImage(ctx, ref)    pull and unpack an image

All calls are made in a single containerd namespace. Docker-managed
containers live in the "moby" namespace, which is the default.

# Exec Semantics

Exec reports a non-zero exit status through ExecResult.ExitCode and returns a
nil error; the error return is reserved for failures to run the command at
all (container missing, no task, runtime unavailable). Callers decide which
exit codes are fatal for their step.
*/
package runtime
