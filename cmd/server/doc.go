// Package main is the entry point for the runbox MCP server.
//
// Runbox is a sandboxed execution engine: it runs caller-supplied
// scripts inside a WebAssembly-hosted interpreter process and container
// workloads inside rootless OCI containers restricted to a trusted-image
// allowlist, returning structured, security-sanitized results. The
// server supports both stdio and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
