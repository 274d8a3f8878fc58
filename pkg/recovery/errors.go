package recovery

import "errors"

// ErrConfigResolution marks a pass that could not work out what this host
// should run: the cluster or local provider is missing or ambiguous, or a
// local configuration file is unreadable. Commands exit 1 on it.
var ErrConfigResolution = errors.New("configuration resolution failed")
