/*
Package metrics defines the Prometheus metrics recorded by recovery passes.

All collectors are registered on the default registry at package init and
updated through the exported variables or the small Record helpers. The agent
is a one-shot process, typically started by a timer or supervisor, so nothing
serves /metrics. Instead the CLI writes the registry to a file after each run
(WriteTextfile) for node_exporter's textfile collector to pick up:

	cluster-agent recover --database /var/lib/gluu/db.json \
		--metrics-file /var/lib/node_exporter/cluster_agent.prom

# Metrics

	cluster_agent_pass_duration_seconds              histogram
	cluster_agent_passes_total{outcome}               completed | skipped | fatal
	cluster_agent_last_pass_timestamp_seconds         gauge
	cluster_agent_nodes_total{role,outcome}           healthy | restarted | failed
	cluster_agent_step_errors_total{step}             non-fatal step errors
	cluster_agent_readiness_wait_seconds{role}        dependency readiness waits
	cluster_agent_image_pulls_total{outcome}          update-images pulls

Step labels are short verbs such as "attach", "dns", "restart", "hosts",
"cert-export", "cert-import", "nat", "readiness" and "decode".

# Timing

Timer wraps time.Since for histogram observations:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PassDuration)
*/
package metrics
