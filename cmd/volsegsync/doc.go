// Package main hosts the volsegsync CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into scans,
// index merges, manifest edits, and audit lookups against an instance
// directory. It centralizes instance resolution, the mutation lock, and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
