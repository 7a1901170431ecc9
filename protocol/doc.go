// Package protocol defines the JSON contract between the sandbox engine
// and the driver program it runs inside the isolated interpreter.
//
// The driver's contract is simple: it emits exactly one JSON object on
// its final non-empty line of stdout. Everything before that line is
// free-form noise (dependency installation logs, interpreter banners)
// and is ignored by the decoder.
package protocol
