package runtime

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/errdefs"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

const (
	// DefaultNamespace is the containerd namespace Docker-managed containers live in
	DefaultNamespace = "moby"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// DefaultStopTimeout is the grace period between SIGTERM and SIGKILL
	DefaultStopTimeout = 10 * time.Second
)

// ExecResult is the outcome of a command run inside a container
type ExecResult struct {
	Command  string
	ExitCode int
	Output   string
}

// ContainerdRuntime implements container runtime using containerd
type ContainerdRuntime struct {
	client      *containerd.Client
	namespace   string
	stopTimeout time.Duration
}

// NewContainerdRuntime creates a new containerd runtime client
func NewContainerdRuntime(socketPath, namespace string, stopTimeout time.Duration) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:      client,
		namespace:   namespace,
		stopTimeout: stopTimeout,
	}, nil
}

// Close closes the containerd client connection
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// PullImage pulls a container image from a registry
func (r *ContainerdRuntime) PullImage(ctx context.Context, imageRef string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	if _, err := r.client.Pull(ctx, imageRef, containerd.WithPullUnpack); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageRef, err)
	}

	return nil
}

// IsRunning reports whether the container has a running task. A container
// that does not exist is reported as not running.
func (r *ContainerdRuntime) IsRunning(ctx context.Context, containerID string) (bool, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get task for %s: %w", containerID, err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get task status for %s: %w", containerID, err)
	}

	switch status.Status {
	case containerd.Running, containerd.Paused, containerd.Pausing:
		return true, nil
	default:
		return false, nil
	}
}

// StartContainer creates and starts a new task for an existing container
func (r *ContainerdRuntime) StartContainer(ctx context.Context, containerID string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	return nil
}

// StopContainer stops a container's task, escalating to SIGKILL after the
// stop timeout, and deletes the task. A container without a task is a no-op.
func (r *ContainerdRuntime) StopContainer(ctx context.Context, containerID string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get task: %w", err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get task status: %w", err)
	}

	if status.Status != containerd.Stopped {
		// Subscribe before signalling so the exit is not missed
		statusC, err := task.Wait(ctx)
		if err != nil {
			return fmt.Errorf("failed to wait for task: %w", err)
		}

		if err := task.Kill(ctx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to kill task: %w", err)
		}

		select {
		case <-statusC:
		case <-time.After(r.stopTimeout):
			if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
				return fmt.Errorf("failed to force kill task: %w", err)
			}
			<-statusC
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := task.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// Restart stops the container if needed and starts a fresh task
func (r *ContainerdRuntime) Restart(ctx context.Context, containerID string) error {
	if err := r.StopContainer(ctx, containerID); err != nil {
		return err
	}
	return r.StartContainer(ctx, containerID)
}

// Exec runs command inside the container through "sh -c" so pipes and
// && chains work, and returns its exit code and combined output. A non-zero
// exit code is not an error; an error means the command could not be run.
func (r *ContainerdRuntime) Exec(ctx context.Context, containerID, command string) (ExecResult, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	result := ExecResult{Command: command}

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return result, fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	spec, err := container.Spec(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load spec for %s: %w", containerID, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("container %s has no running task: %w", containerID, err)
	}

	pspec := specs.Process{}
	if spec.Process != nil {
		pspec = *spec.Process
	}
	pspec.Terminal = false
	pspec.Args = []string{"sh", "-c", command}

	var output bytes.Buffer
	execID := "exec-" + uuid.NewString()[:12]
	process, err := task.Exec(ctx, execID, &pspec, cio.NewCreator(cio.WithStreams(nil, &output, &output)))
	if err != nil {
		return result, fmt.Errorf("failed to create exec process: %w", err)
	}
	defer process.Delete(ctx)

	statusC, err := process.Wait(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to wait for exec process: %w", err)
	}

	if err := process.Start(ctx); err != nil {
		return result, fmt.Errorf("failed to start exec process: %w", err)
	}

	select {
	case status := <-statusC:
		code, _, err := status.Result()
		if err != nil {
			return result, fmt.Errorf("exec process failed: %w", err)
		}
		// Close the IO so buffered output is flushed before reading it
		if pio := process.IO(); pio != nil {
			pio.Wait()
			pio.Close()
		}
		result.ExitCode = int(code)
		result.Output = strings.TrimSpace(output.String())
		return result, nil
	case <-ctx.Done():
		return result, ctx.Err()
	}
}
