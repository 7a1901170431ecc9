package sandbox

import "strings"

// EntryPointName is the designated entry point for scripts that define
// more than one callable.
const EntryPointName = "main"

// EntryPointKind is the outcome of the callable-discovery pass.
type EntryPointKind int

// Callable-discovery outcomes
const (
	// NoCallables means the script defines no callable at all.
	NoCallables EntryPointKind = iota

	// SingleCallable means exactly one callable is defined; it is the
	// entry point regardless of its name.
	SingleCallable

	// MultipleWithEntry means several callables are defined and one of
	// them carries the designated entry name.
	MultipleWithEntry

	// MultipleWithoutEntry means several callables are defined but none
	// carries the designated entry name.
	MultipleWithoutEntry
)

// EntryPoint is the result of discovering the callable that receives the
// caller's inputs. Name is set for the two runnable kinds.
type EntryPoint struct {
	Kind EntryPointKind
	Name string
}

// DiscoverEntryPoint statically scans a script for top-level callable
// definitions and classifies the result. It is a pure function: the same
// script always yields the same classification, and no process is ever
// spawned to answer it.
func DiscoverEntryPoint(script string) EntryPoint {
	var names []string
	for line := range strings.SplitSeq(script, "\n") {
		if name, ok := topLevelCallable(line); ok {
			names = append(names, name)
		}
	}

	switch len(names) {
	case 0:
		return EntryPoint{Kind: NoCallables}
	case 1:
		return EntryPoint{Kind: SingleCallable, Name: names[0]}
	}
	for _, name := range names {
		if name == EntryPointName {
			return EntryPoint{Kind: MultipleWithEntry, Name: name}
		}
	}
	return EntryPoint{Kind: MultipleWithoutEntry}
}

// topLevelCallable parses one line and returns the callable name if the
// line opens a top-level function definition. Indented definitions are
// methods or closures and never entry point candidates.
func topLevelCallable(line string) (string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return "", false
	}
	rest, found := strings.CutPrefix(line, "async ")
	if found {
		rest = strings.TrimLeft(rest, " \t")
	}
	rest, found = strings.CutPrefix(rest, "def")
	if !found {
		return "", false
	}
	trimmed := strings.TrimLeft(rest, " \t")
	if trimmed == rest {
		// "defx(" is not a definition
		return "", false
	}
	name := trimmed
	if open := strings.IndexByte(name, '('); open >= 0 {
		name = name[:open]
	} else {
		return "", false
	}
	name = strings.TrimSpace(name)
	if !validIdentifier(name) {
		return "", false
	}
	return name, true
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
