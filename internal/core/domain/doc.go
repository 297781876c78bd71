// Package domain defines the core domain models for WirePool.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling: server nodes, sessions,
// credentials, events and the structured error taxonomy.
package domain
