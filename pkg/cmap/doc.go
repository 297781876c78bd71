// Package cmap provides a concurrent map implementation for WirePool.
//
// This package implements a sharded concurrent map used for the hot
// in-process tables (session table, node catalog, subscriber registry):
//
//   - Sharding: murmur3-hashed string keys over a power-of-two shard set
//   - Fine-grained Locking: per-shard RWMutex for minimal contention
//   - Iteration: safe shard-by-shard iteration under read locks
//
// Usage:
//
//	m := cmap.New[*Session]()
//	m.Set("wpss-...", session)
//	val, ok := m.Get("wpss-...")
//
// All operations are safe for concurrent use. Read operations (Get,
// Has, Range) take RLock, write operations (Set, Delete, Update) Lock.
package cmap
