// Package config loads, normalizes, and validates volsegsync instance
// configuration.
//
// Each managed directory carries a .volsegsync state directory whose
// config.toml records the instance identity, the named indexes and which one
// is active, logging preferences, and the external viewer binary. Path
// helpers in this package are the single source of truth for the state
// directory layout (config, per-index manifests, history database, and the
// mutation lock file).
package config
