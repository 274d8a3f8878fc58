/*
Package types defines the desired-state records the agent reconciles against.

Three record kinds exist, all created by provisioning tooling and read-only here:

  - Cluster: the deployment singleton (overlay CIDR, encrypted admin secret)
  - Provider: one machine, either the single master or a consumer
  - Node: one managed container with a fixed Role

Field tags follow the persisted record layout (weave_ip, weave_prefixlen, type,
...) so records can be decoded straight from the store.

# Node States

Only SUCCESS and DISABLED nodes are recovered. A DISABLED node is restarted
but stays off the overlay network until its entitlement is renewed:

	SUCCESS   restart, attach overlay IP, add DNS record, run role fixups
	DISABLED  restart, run role fixups
	other     ignored (transient provisioning states)
*/
package types
