package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError indicates that caller-supplied input failed a security
// check. The message is safe to surface to the caller: it never contains
// resolved filesystem paths or internal configuration.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Length limits for untrusted string input
const (
	MaxPathLength    = 1000
	MaxPatternLength = 1000
)

// reservedNames lists device-style file names that are rejected in any
// path segment, with or without an extension.
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// ValidatePath checks an untrusted relative path against the configured
// root directory. It rejects empty input, null bytes, oversized input,
// absolute paths, traversal segments, hidden-file segments, and reserved
// device names. The path is then resolved under root; any resolution that
// escapes root (including through a symlink) is rejected. When mustExist
// is set the resolved path must exist, and when mustBeFile is set it must
// be a regular file.
func ValidatePath(root, path string, mustExist, mustBeFile bool) error {
	if path == "" {
		return NewValidationError("path must not be empty")
	}
	if strings.ContainsRune(path, 0) {
		return NewValidationError("path contains invalid characters")
	}
	if len(path) > MaxPathLength {
		return NewValidationError("path exceeds maximum length of %d", MaxPathLength)
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return NewValidationError("absolute paths are not allowed")
	}

	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == ".." {
			return NewValidationError("path traversal is not allowed")
		}
		if strings.HasPrefix(segment, ".") && segment != "." {
			return NewValidationError("hidden files are not allowed")
		}
		name := strings.ToLower(segment)
		if dot := strings.IndexByte(name, '.'); dot > 0 {
			name = name[:dot]
		}
		if reservedNames[name] {
			return NewValidationError("reserved file name is not allowed")
		}
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return NewValidationError("path could not be validated")
	}
	resolved := filepath.Join(rootAbs, filepath.Clean(path))
	if !withinRoot(rootAbs, resolved) {
		return NewValidationError("path escapes the allowed directory")
	}

	// A symlink at the resolved location must not point outside root.
	if info, lerr := os.Lstat(resolved); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
		target, rerr := os.Readlink(resolved)
		if rerr != nil {
			return NewValidationError("path could not be validated")
		}
		if filepath.IsAbs(target) {
			return NewValidationError("path escapes the allowed directory")
		}
		joined := filepath.Join(filepath.Dir(resolved), target)
		if !withinRoot(rootAbs, joined) {
			return NewValidationError("path escapes the allowed directory")
		}
		if real, eerr := filepath.EvalSymlinks(resolved); eerr == nil && !withinRoot(rootAbs, real) {
			return NewValidationError("path escapes the allowed directory")
		}
	}

	if mustExist {
		info, serr := os.Stat(resolved)
		if serr != nil {
			return NewValidationError("path does not exist")
		}
		if mustBeFile && !info.Mode().IsRegular() {
			return NewValidationError("path is not a regular file")
		}
	}

	return nil
}

// ValidatePattern checks an untrusted pattern string. A maxLength of zero
// applies the default cap.
func ValidatePattern(pattern string, maxLength int) error {
	if maxLength <= 0 {
		maxLength = MaxPatternLength
	}
	if strings.TrimSpace(pattern) == "" {
		return NewValidationError("pattern must not be empty")
	}
	if strings.ContainsRune(pattern, 0) {
		return NewValidationError("pattern contains invalid characters")
	}
	if len(pattern) > maxLength {
		return NewValidationError("pattern exceeds maximum length of %d", maxLength)
	}
	return nil
}

// ImageTrusted reports whether image is an exact-match member of the
// allowlist. No prefix or glob matching is performed, and an empty
// allowlist trusts nothing.
func ImageTrusted(image string, allowlist []string) bool {
	if image == "" {
		return false
	}
	for _, trusted := range allowlist {
		if image == trusted {
			return true
		}
	}
	return false
}

func withinRoot(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
