// Package confloader loads broker configuration and watches it for
// change.
//
// Loader merges a YAML config file and WIREPOOL_* environment
// variables into a typed struct via koanf. Priority, highest to
// lowest:
//
//  1. Explicit overrides via Set (CLI flags)
//  2. Environment variables
//  3. Configuration file
//  4. Values already set on the target struct
//
// Watcher reports settled rewrites of registered config files. It
// debounces editor write bursts and survives atomic rename-style
// saves by watching the parent directory.
package confloader
