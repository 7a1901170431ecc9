// Package sandbox provides secure execution of untrusted workloads.
//
// The sandbox package implements the two isolation backends of the
// engine: a WebAssembly-hosted interpreter run as a short-lived external
// process, and a rootless OCI container restricted to an allow-listed
// set of trusted images. Both backends are exposed through the Engine
// façade and share one error taxonomy and one sanitization policy.
//
// Usage:
//
//	engine := sandbox.NewEngine(logger, cfg)
//	result, err := engine.RunScript(ctx, sandbox.ScriptRequest{
//	    Script: "def main():\n    return 42",
//	})
package sandbox
