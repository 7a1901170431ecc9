package sandbox

import "strings"

// Sanitized failure messages. This is the complete vocabulary exposed to
// callers for runtime-level faults: no file paths, no stack traces, no
// permission-system names.
const (
	MsgNetworkNotPermitted = "network access not permitted"
	MsgFileNotPermitted    = "file access not permitted"
	MsgSecurityRestricted  = "operation not permitted due to security restrictions"
	MsgInternalError       = "an internal error occurred"
	MsgNotPermitted        = "operation not permitted"
)

var sanitizeRules = []struct {
	message  string
	keywords []string
}{
	{MsgNetworkNotPermitted, []string{
		"allow-net", "net access", "network", "dial tcp", "dial udp",
		"connection refused", "name resolution",
	}},
	{MsgFileNotPermitted, []string{
		"allow-read", "allow-write", "read access", "write access",
		"no such file", "is a directory", "file exists",
	}},
	{MsgSecurityRestricted, []string{
		"notcapable", "permission denied", "requires permission",
		"capability", "seccomp", "not capable",
	}},
	{MsgInternalError, []string{
		"panic", "internal error", "unexpected",
	}},
}

// Sanitize maps a raw runtime or OS error to a short caller-safe
// message. Classification is by keyword only; the raw error is never
// included in the returned text.
func Sanitize(raw error) string {
	if raw == nil {
		return MsgInternalError
	}
	text := strings.ToLower(raw.Error())
	for _, rule := range sanitizeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.message
			}
		}
	}
	return MsgNotPermitted
}

// sanitizeScriptError reduces a script-level error to the single
// intentionally-exposed "Kind: message" line. Traceback fragments are
// stripped even if the driver let them through.
func sanitizeScriptError(msg string) string {
	for line := range strings.SplitSeq(msg, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Traceback") || strings.Contains(line, `File "`) {
			continue
		}
		return line
	}
	return MsgInternalError
}
