// Package logger provides structured logging for WirePool.
//
// It wraps log/slog with JSON or text output, runtime level
// adjustment via SetLevel, and automatic masking of tunnel key
// material before encoding.
//
// Request-scoped identifiers travel through the context: middleware
// tags the context with request, client, and session IDs, and L(ctx)
// returns a logger carrying whichever of them are present.
package logger
