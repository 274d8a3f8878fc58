/*
Package executor holds the post-recovery fixups run after a node's
container has been restarted, one Executor per role.

	ldap     Directory  readiness probe on <weave_ip>:<directory.port>,
	                    or a settle delay when probing is disabled
	oxauth   Auth       hosts aliases for every SUCCESS directory node
	oxidp    Idp        same as Auth
	oxtrust  Trust      Auth, then alias the public hostname to the
	                    provider's proxy and import its certificate
	nginx    Edge       one DNAT rule per edge port to the node

Composition replaces inheritance: Idp and Trust hold the Auth executor and
call its aliasing step directly.

Executors never return errors. A failed hosts alias or certificate export
stops the node's container, since the service cannot work without its
dependencies; the next pass restarts it. A failed certificate import is
logged as a warning only, because keytool fails on an alias that is
already present.
*/
package executor
