/*
Package config loads the agent's operational settings.

Settings come from three layers, later ones winning: compiled defaults
(Default), an optional YAML file passed with --config, and environment
variables prefixed with CLUSTER_AGENT_ where dots in a key become
underscores:

	CLUSTER_AGENT_RUNTIME_NAMESPACE=moby
	CLUSTER_AGENT_DIRECTORY_READY_TIMEOUT=90s

Durations accept Go duration strings. Desired state (clusters, providers,
nodes) is never read from here; it comes from the store.
*/
package config
