package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/clusteragent/pkg/facade"
)

// HostAlias is one "<ip> <hostname>" line in a container's /etc/hosts
type HostAlias struct {
	IP       string
	Hostname string
}

func (a HostAlias) Line() string {
	return a.IP + " " + a.Hostname
}

// Command returns a shell command that appends the line only when the exact
// line is not already present
func (a HostAlias) Command() string {
	line := a.Line()
	return fmt.Sprintf("grep -qxF '%s' /etc/hosts || echo '%s' >> /etc/hosts", line, line)
}

func (a HostAlias) validate() error {
	if a.IP == "" || a.Hostname == "" {
		return fmt.Errorf("host alias %q is incomplete", a.Line())
	}
	if strings.ContainsAny(a.Line(), "'\n") {
		return fmt.Errorf("host alias %q contains unsafe characters", a.Line())
	}
	return nil
}

// EnsureHostAlias makes sure the container's hosts file carries alias
// exactly once. A non-zero exit is returned as *facade.CommandError.
func EnsureHostAlias(ctx context.Context, f facade.Facade, containerID string, alias HostAlias) error {
	if err := alias.validate(); err != nil {
		return err
	}
	return facade.ExecChecked(ctx, f, containerID, alias.Command())
}

// shellQuote wraps s in single quotes for sh -c
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
