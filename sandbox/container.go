package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/security"
)

var volumeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// volumeMountOptions is applied to every caller-requested volume mount.
const volumeMountOptions = "nodev,nosuid,noexec"

// ContainerRunner executes commands inside rootless OCI containers via
// the configured engine CLI (podman or docker). Image trust is checked
// before any engine interaction, and every created container is removed
// on every exit path.
type ContainerRunner struct {
	logger    *zap.Logger
	cfg       config.ContainerConfig
	cmdRunner CommandRunner
}

// ContainerRunnerOption defines a functional option for ContainerRunner
type ContainerRunnerOption func(*ContainerRunner)

// WithContainerCommandRunner sets the CommandRunner for ContainerRunner
func WithContainerCommandRunner(cmdRunner CommandRunner) ContainerRunnerOption {
	return func(r *ContainerRunner) {
		r.cmdRunner = cmdRunner
	}
}

// NewContainerRunner creates a new ContainerRunner with default implementations and optional interfaces
func NewContainerRunner(logger *zap.Logger, cfg config.ContainerConfig, opts ...ContainerRunnerOption) *ContainerRunner {
	runner := &ContainerRunner{
		logger:    logger,
		cfg:       cfg,
		cmdRunner: &RealCommandRunner{},
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run executes one container request. The trust check is unconditional:
// an image outside the allowlist is rejected before any engine call, and
// pull policy cannot bypass it. A non-zero exit code of a container that
// ran to completion is a normal result, not an error.
func (r *ContainerRunner) Run(ctx context.Context, req ContainerRequest) (ContainerResult, error) {
	req, err := r.validate(req)
	if err != nil {
		return ContainerResult{}, err
	}

	runtimeInfo := map[string]any{}

	version, err := r.engineVersion(ctx)
	if err != nil {
		r.logger.Error("container engine is unreachable",
			zap.String("engine", r.cfg.Engine), zap.Error(err))
		return ContainerResult{}, newError(KindRuntimeUnavailable, err, "container runtime is unavailable")
	}
	runtimeInfo["engine"] = r.cfg.Engine
	runtimeInfo["engine_version"] = version

	if err := r.ensureImage(ctx, req.Image, req.PullPolicy); err != nil {
		return ContainerResult{}, err
	}

	containerID, err := r.create(ctx, req)
	if err != nil {
		return ContainerResult{}, err
	}

	// Forced removal on every path. Failure here is diagnostic only and
	// never escalates to the caller.
	defer func() {
		out, rmErr := r.cmdRunner.RunCommand(context.WithoutCancel(ctx), CommandSpec{
			Args: []string{r.cfg.Engine, "rm", "-f", containerID},
		})
		if rmErr != nil || out.ExitCode != 0 {
			r.logger.Warn("failed to remove container",
				zap.String("container_id", containerID),
				zap.String("stderr", out.Stderr),
				zap.Error(rmErr))
		}
	}()

	if out, serr := r.engine(ctx, "start", containerID); serr != nil || out.ExitCode != 0 {
		logs := r.collectLogs(ctx, containerID)
		r.logger.Error("failed to start container",
			zap.String("container_id", containerID),
			zap.String("stderr", out.Stderr),
			zap.String("logs", logs),
			zap.Error(serr))
		return ContainerResult{}, newError(KindRuntimeUnavailable, serr, "%s", MsgInternalError)
	}

	// Attach the log stream before waiting so output is consumed while
	// the container runs instead of in one batch after exit. The stream
	// ends when the container stops; cancellation bounds it otherwise.
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	logsDone := make(chan CommandOutput, 1)
	go func() {
		out, lerr := r.cmdRunner.RunCommand(streamCtx, CommandSpec{
			Args: []string{r.cfg.Engine, "logs", "--follow", containerID},
		})
		if lerr != nil {
			r.logger.Warn("failed to stream container logs",
				zap.String("container_id", containerID), zap.Error(lerr))
		}
		logsDone <- out
	}()

	waitOut, werr := r.engine(ctx, "wait", containerID)
	if werr != nil || waitOut.ExitCode != 0 {
		stopStream()
		partial := <-logsDone
		r.logger.Error("failed while waiting for container",
			zap.String("container_id", containerID),
			zap.String("stderr", waitOut.Stderr),
			zap.String("logs", partial.Stdout+partial.Stderr),
			zap.Error(werr))
		if ctx.Err() != nil {
			return ContainerResult{}, newError(KindTimeout, ctx.Err(), "execution was cancelled")
		}
		return ContainerResult{}, newError(KindRuntimeUnavailable, werr, "%s", MsgInternalError)
	}
	exitCode, perr := strconv.Atoi(strings.TrimSpace(waitOut.Stdout))
	if perr != nil {
		r.logger.Error("container engine reported an unparsable exit code",
			zap.String("container_id", containerID),
			zap.String("raw", waitOut.Stdout))
		return ContainerResult{}, newError(KindOutputProtocol, perr, "%s", MsgInternalError)
	}

	logOut := <-logsDone
	output := strings.ToValidUTF8(logOut.Stdout+logOut.Stderr, "�")
	status := r.inspect(ctx, containerID, runtimeInfo)

	r.logger.Info("container execution completed",
		zap.String("container_id", containerID),
		zap.Int("exit_code", exitCode),
		zap.Int("output_len", len(output)))

	return ContainerResult{
		Output:      output,
		ExitCode:    exitCode,
		ContainerID: containerID,
		Status:      status,
		RuntimeInfo: runtimeInfo,
	}, nil
}

// validate applies the trust check and request defaults. Untrusted and
// malformed images produce the same rejection: the response never
// distinguishes the two.
func (r *ContainerRunner) validate(req ContainerRequest) (ContainerRequest, error) {
	if !security.ImageTrusted(req.Image, r.cfg.TrustedImages) {
		return req, newError(KindValidation, nil, "image is not permitted")
	}

	hasName, hasPath := req.VolumeName != "", req.VolumePath != ""
	if hasName != hasPath {
		return req, newError(KindValidation, nil, "volume name and volume path must be supplied together")
	}
	if hasName {
		if err := security.ValidatePattern(req.VolumeName, 0); err != nil {
			return req, newError(KindValidation, err, "invalid volume name: %s", err.Error())
		}
		if !volumeNamePattern.MatchString(req.VolumeName) {
			return req, newError(KindValidation, nil, "invalid volume name")
		}
		if err := security.ValidatePattern(req.VolumePath, 0); err != nil {
			return req, newError(KindValidation, err, "invalid volume path: %s", err.Error())
		}
		if !strings.HasPrefix(req.VolumePath, "/") || strings.Contains(req.VolumePath, "..") {
			return req, newError(KindValidation, nil, "volume path must be absolute")
		}
	}

	switch req.Network {
	case "":
		req.Network = NetworkMode(r.cfg.Network)
	case NetworkNone, NetworkBridge:
	default:
		return req, newError(KindValidation, nil, "invalid network mode")
	}

	switch req.PullPolicy {
	case "":
		req.PullPolicy = PullPolicy(r.cfg.PullPolicy)
	case PullNever, PullMissing, PullAlways:
	default:
		return req, newError(KindValidation, nil, "invalid pull policy")
	}

	return req, nil
}

func (r *ContainerRunner) engineVersion(ctx context.Context) (string, error) {
	out, err := r.engine(ctx, "version", "--format", "json")
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", fmt.Errorf("engine version query exited with code %d: %s", out.ExitCode, out.Stderr)
	}
	return strings.TrimSpace(out.Stdout), nil
}

// ensureImage applies the pull policy. A required pull that fails is
// terminal: execution never falls through to container creation. A pull
// failure is an operational fault like an unreachable engine, so it
// shares KindRuntimeUnavailable; the message carries the distinction.
func (r *ContainerRunner) ensureImage(ctx context.Context, image string, policy PullPolicy) error {
	switch policy {
	case PullNever:
		return nil
	case PullMissing:
		out, err := r.engine(ctx, "image", "inspect", image)
		if err == nil && out.ExitCode == 0 {
			return nil
		}
	case PullAlways:
	}

	r.logger.Info("pulling image", zap.String("image", image))
	out, err := r.engine(ctx, "pull", image)
	if err != nil || out.ExitCode != 0 {
		r.logger.Error("image pull failed",
			zap.String("image", image),
			zap.String("stderr", out.Stderr),
			zap.Error(err))
		return newError(KindRuntimeUnavailable, err, "image pull failed")
	}
	return nil
}

// create builds and runs the engine create command. The container gets
// only the caller-provided environment, the requested isolated network
// mode, and at most one named volume mounted with restrictive options.
func (r *ContainerRunner) create(ctx context.Context, req ContainerRequest) (string, error) {
	name := "runbox-" + uuid.NewString()

	args := []string{
		r.cfg.Engine, "create",
		"--name", name,
		"--network", string(req.Network),
		"--security-opt", "no-new-privileges:true",
		"--cap-drop", "ALL",
	}

	keys := make([]string, 0, len(req.Environment))
	for key := range req.Environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", key, req.Environment[key]))
	}

	if req.VolumeName != "" {
		args = append(args, "-v",
			fmt.Sprintf("%s:%s:%s", req.VolumeName, req.VolumePath, volumeMountOptions))
	}

	args = append(args, req.Image)
	args = append(args, req.Command...)

	out, err := r.cmdRunner.RunCommand(ctx, CommandSpec{Args: args})
	if err != nil || out.ExitCode != 0 {
		r.logger.Error("failed to create container",
			zap.String("image", req.Image),
			zap.String("stderr", out.Stderr),
			zap.Error(err))
		return "", newError(KindRuntimeUnavailable, err, "%s", MsgInternalError)
	}
	return strings.TrimSpace(out.Stdout), nil
}

// collectLogs retrieves container output in one shot for failure paths
// where no stream was attached, tolerating partial or binary fragments.
// Best-effort: a retrieval failure yields empty output.
func (r *ContainerRunner) collectLogs(ctx context.Context, containerID string) string {
	out, err := r.cmdRunner.RunCommand(context.WithoutCancel(ctx), CommandSpec{
		Args: []string{r.cfg.Engine, "logs", containerID},
	})
	if err != nil {
		r.logger.Warn("failed to collect container logs",
			zap.String("container_id", containerID), zap.Error(err))
		return ""
	}
	return strings.ToValidUTF8(out.Stdout+out.Stderr, "�")
}

// inspect records the final container inspection payload in runtimeInfo
// and returns the container status when obtainable.
func (r *ContainerRunner) inspect(ctx context.Context, containerID string, runtimeInfo map[string]any) string {
	out, err := r.cmdRunner.RunCommand(context.WithoutCancel(ctx), CommandSpec{
		Args: []string{r.cfg.Engine, "inspect", containerID},
	})
	if err != nil || out.ExitCode != 0 {
		r.logger.Warn("failed to inspect container",
			zap.String("container_id", containerID), zap.Error(err))
		return ""
	}

	var payload []map[string]any
	if uerr := json.Unmarshal([]byte(out.Stdout), &payload); uerr != nil || len(payload) == 0 {
		runtimeInfo["inspect_raw"] = out.Stdout
		return ""
	}
	runtimeInfo["inspect"] = payload[0]

	if state, ok := payload[0]["State"].(map[string]any); ok {
		if status, ok := state["Status"].(string); ok {
			return status
		}
	}
	return ""
}

func (r *ContainerRunner) engine(ctx context.Context, args ...string) (CommandOutput, error) {
	return r.cmdRunner.RunCommand(ctx, CommandSpec{Args: append([]string{r.cfg.Engine}, args...)})
}
