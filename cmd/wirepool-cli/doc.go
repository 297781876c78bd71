// Package main provides the entry point for wirepool-cli.
//
// wirepool-cli is the command-line client for the WirePool session
// broker. It talks to the broker's HTTP API:
//
//	wirepool-cli connect [--node ID] [--region R] [--tier premium]
//	wirepool-cli disconnect SESSION_ID
//	wirepool-cli status
//	wirepool-cli nodes [--region R] [--premium]
//
// The broker address and client identity come from flags or the
// WIREPOOL_SERVER and WIREPOOL_CLIENT_ID environment variables.
package main
