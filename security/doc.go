// Package security provides validation for untrusted caller input.
//
// The security package implements pure predicates over paths, patterns,
// and container image references. Every check is deterministic and
// side-effect-free so the predicates can be tested independently of the
// sandbox backends that consume them.
package security
