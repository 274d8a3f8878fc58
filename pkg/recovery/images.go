package recovery

import (
	"context"
	"strings"

	"github.com/cuemby/clusteragent/pkg/config"
	"github.com/cuemby/clusteragent/pkg/metrics"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// ImagePuller fetches images into the local runtime
type ImagePuller interface {
	PullImage(ctx context.Context, ref string) error
}

// ImageUpdater refreshes the node images, stops the provider's nodes and
// runs a recovery pass so they come back on the new images
type ImageUpdater struct {
	orchestrator *Orchestrator
	puller       ImagePuller
	cfg          config.Images
}

// NewImageUpdater creates an updater that recovers through orchestrator
func NewImageUpdater(orchestrator *Orchestrator, puller ImagePuller, cfg config.Images) *ImageUpdater {
	return &ImageUpdater{
		orchestrator: orchestrator,
		puller:       puller,
		cfg:          cfg,
	}
}

// ImageRefs returns the fully qualified references of the configured
// images. Names without a tag get ":latest".
func ImageRefs(registry string, names []string) []string {
	return lo.Uniq(lo.FilterMap(names, func(name string, _ int) (string, bool) {
		name = strings.TrimSpace(name)
		if name == "" {
			return "", false
		}
		if registry != "" {
			name = strings.TrimSuffix(registry, "/") + "/" + name
		}
		if !hasTag(name) {
			name += ":latest"
		}
		return name, true
	}))
}

// hasTag reports whether the last path element carries a tag or digest
func hasTag(ref string) bool {
	last := ref[strings.LastIndex(ref, "/")+1:]
	return strings.ContainsAny(last, ":@")
}

// Execute pulls every image, stops the local nodes, then recovers them. Pull
// failures are logged; the nodes are restarted on whatever image is present.
func (u *ImageUpdater) Execute(ctx context.Context) error {
	o := u.orchestrator
	logger := o.logger.With().Str("task", "update-images").Logger()

	g := new(errgroup.Group)
	g.SetLimit(max(u.cfg.Concurrency, 1))
	for _, ref := range ImageRefs(u.cfg.Registry, u.cfg.Names) {
		g.Go(func() error {
			logger.Info().Str("image", ref).Msg("Pulling image")
			if err := u.puller.PullImage(ctx, ref); err != nil {
				metrics.ImagePulls.WithLabelValues("failed").Inc()
				logger.Error().Err(err).Str("image", ref).Msg("Failed to pull image")
				return nil
			}
			metrics.ImagePulls.WithLabelValues("pulled").Inc()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	if o.inventory.Empty() {
		return o.Execute(ctx)
	}

	_, provider, err := o.resolve()
	if err != nil {
		return o.fatal(err)
	}
	nodes, err := o.localNodes(provider)
	if err != nil {
		return o.fatal(err)
	}

	logger.Info().Int("nodes", len(nodes)).Msg("Stopping nodes for re-provisioning")
	for _, node := range nodes {
		if err := o.facade.Stop(ctx, node.ID); err != nil {
			metrics.RecordStepError("stop")
			logger.Error().Err(err).Str("node_id", node.ID).Msg("Failed to stop node")
		}
	}

	return o.Execute(ctx)
}
