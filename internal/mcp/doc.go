// Package mcp exposes the thought engine over the Model Context Protocol.
//
// The server runs on the stdio transport and calls internal services
// directly through the service registry. Every tool handler is wrapped in
// OpenTelemetry instrumentation (invocation count, duration, errors, active
// requests).
package mcp
