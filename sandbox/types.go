package sandbox

// NetworkMode selects the network isolation applied to a container.
type NetworkMode string

// Supported network modes
const (
	NetworkNone   NetworkMode = "none"
	NetworkBridge NetworkMode = "bridge"
)

// PullPolicy controls when a container image is pulled.
type PullPolicy string

// Supported pull policies
const (
	PullNever   PullPolicy = "never"
	PullMissing PullPolicy = "missing"
	PullAlways  PullPolicy = "always"
)

// ScriptRequest represents the parameters for script execution
type ScriptRequest struct {
	Script       string
	Inputs       map[string]any
	Dependencies []string
	TimeoutSec   int
	AllowNetwork bool
}

// ScriptResult represents the result of script execution. Error is empty
// exactly when Success is true, and Output carries a value only on
// success.
type ScriptResult struct {
	Output  any
	Stdout  string
	Stderr  string
	Success bool
	Error   string
}

// ContainerRequest represents the parameters for container execution.
// VolumeName and VolumePath must be supplied together or not at all.
type ContainerRequest struct {
	Image       string
	Command     []string
	Environment map[string]string
	VolumeName  string
	VolumePath  string
	Network     NetworkMode
	PullPolicy  PullPolicy
}

// ContainerResult represents the result of container execution.
// RuntimeInfo is diagnostic data for operators and must never be
// forwarded verbatim to untrusted callers.
type ContainerResult struct {
	Output      string
	ExitCode    int
	ContainerID string
	Status      string
	RuntimeInfo map[string]any
}

// Success reports whether the container ran to completion successfully.
// It is always derived from the exit code, never stored independently.
func (r ContainerResult) Success() bool {
	return r.ExitCode == 0
}
