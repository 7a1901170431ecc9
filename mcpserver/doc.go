// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the sandbox engine as MCP tools using the
// mark3labs/mcp-go library: run_script for the interpreter backend and
// run_container for the container backend. Tool handlers consume the
// engine's error kinds exhaustively and only ever surface sanitized
// messages to callers.
package mcpserver
