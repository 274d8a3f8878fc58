/*
Package recovery brings a provider's containers, overlay router and
monitoring sidecar back to the state recorded in the store.

A pass (Orchestrator.Execute) runs strictly in sequence:

 1. Resolve the cluster singleton and the provider whose hostname matches
    this machine. Neither may be missing; exactly one provider must match.
 2. Launch the overlay router if it is down. A master launches standalone,
    a consumer joins the address under "master" in the peer config file.
    The host is then exposed on the second-to-last address of the cluster
    network.
 3. Visit the provider's SUCCESS and DISABLED nodes by ascending role
    priority (ldap, oxauth, nginx, oxidp, oxtrust; unknown roles first).
    A running node only has its DNS records re-added. A stopped node is
    restarted; SUCCESS nodes are re-attached to the overlay and registered
    in DNS, DISABLED nodes stay off the network. The role's executor then
    runs its fixups (see package executor).
 4. On a master, restart the monitoring sidecar if needed and attach it to
    the last usable address of the cluster network.

Execute fails on configuration problems (wrapped in ErrConfigResolution)
and on runtime errors in the router and sidecar steps. Anything that goes
wrong with a single node is logged and counted, and the pass moves on; the
next pass retries. A store with no records at all is a warning, not an
error, so a host whose store has not been provisioned yet does not
crash-loop under its supervisor.

ImageUpdater pulls fresh images, stops every local node and runs a pass.
*/
package recovery
