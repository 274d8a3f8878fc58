package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/cuemby/clusteragent/pkg/facade"
	"github.com/cuemby/clusteragent/pkg/log"
	"github.com/cuemby/clusteragent/pkg/metrics"
	"github.com/cuemby/clusteragent/pkg/types"
)

// tlsPort is where the edge proxy terminates TLS for the public hostname
const tlsPort = 443

const pemMarker = "BEGIN CERTIFICATE"

// Trust does the auth role's aliasing, then trusts the edge proxy running on
// the same provider: the public hostname is aliased to the proxy and the
// proxy's certificate is imported into the node's truststore.
type Trust struct {
	deps Deps
	auth *Auth
}

func (tr *Trust) RunEntrypoint(ctx context.Context, t Target) {
	if !tr.auth.ensureDirectoryAliases(ctx, t) {
		return
	}

	logger := log.WithNode(tr.deps.Logger, t.Node.ID, string(t.Node.Role))
	f := tr.deps.Facade

	proxies, err := tr.deps.Nodes.ProviderNodesByRole(t.Provider.ID, types.RoleNginx, types.NodeStateSuccess)
	if err != nil {
		metrics.RecordStepError("hosts")
		logger.Error().Err(err).Msg("Failed to look up proxy nodes")
		return
	}
	if len(proxies) == 0 {
		logger.Debug().Msg("No proxy on this provider, skipping certificate trust")
		return
	}
	proxy := proxies[0]
	hostname := t.Cluster.PublicHostname
	if hostname == "" {
		logger.Warn().
			Str("proxy", proxy.ID).
			Msg("Cluster has no public hostname, skipping certificate trust")
		return
	}

	alias := HostAlias{IP: proxy.WeaveIP, Hostname: hostname}
	if err := EnsureHostAlias(ctx, f, t.Node.ID, alias); err != nil {
		stopNode(ctx, f, logger, t.Node.ID, "hosts", err)
		return
	}

	certPath := tr.deps.Config.Trust.CertPath
	if err := facade.ExecChecked(ctx, f, t.Node.ID, exportCertCommand(hostname, certPath)); err != nil {
		stopNode(ctx, f, logger, t.Node.ID, "cert-export", err)
		return
	}

	importCmd := importCertCommand(hostname, certPath, t.Node.TruststoreFile, tr.deps.Config.Trust.StorePass)
	if err := facade.ExecChecked(ctx, f, t.Node.ID, importCmd); err != nil {
		var cmdErr *facade.CommandError
		if errors.As(err, &cmdErr) {
			// keytool refuses an alias that already exists
			logger.Warn().
				Int("exit_code", cmdErr.ExitCode).
				Str("output", cmdErr.Output).
				Msg("Certificate import failed, assuming it is already trusted")
			return
		}
		metrics.RecordStepError("cert-import")
		logger.Error().Err(err).Msg("Failed to import proxy certificate")
		return
	}

	logger.Info().
		Str("proxy", proxy.ID).
		Str("truststore", t.Node.TruststoreFile).
		Msg("Proxy certificate imported")
}

// exportCertCommand saves the PEM certificate presented by host to path.
// The pipeline's status is sed's, so the command fails through the final
// grep when no certificate was written.
func exportCertCommand(host, path string) string {
	return fmt.Sprintf(
		"echo -n | openssl s_client -connect %s | sed -ne '/-BEGIN CERTIFICATE-/,/-END CERTIFICATE-/p' > %s && grep -q %s %s",
		shellQuote(net.JoinHostPort(host, strconv.Itoa(tlsPort))), shellQuote(path),
		shellQuote(pemMarker), shellQuote(path),
	)
}

func importCertCommand(alias, certPath, keystore, storepass string) string {
	return fmt.Sprintf(
		"keytool -importcert -trustcacerts -alias %s -file %s -keystore %s -storepass %s -noprompt",
		shellQuote(alias), shellQuote(certPath), shellQuote(keystore), shellQuote(storepass),
	)
}
