// Package service provides the domain services for WirePool: the node
// directory, the session orchestrator and the admission gate.
//
// Services coordinate domain entities and external collaborators
// (config store, tunnel provisioner, audit sink) but own no transport
// or persistence concerns themselves.
package service
