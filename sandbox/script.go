package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/protocol"
	"github.com/isdmx/runbox/security"
)

// timeoutGrace is added on top of the caller's wall-clock budget before
// the child process is forcibly killed. It covers interpreter startup
// teardown, not script time.
const timeoutGrace = 2 * time.Second

// ScriptRunner executes scripts inside a WebAssembly-hosted interpreter
// run as a short-lived external process. Each invocation gets its own
// scoped workspace and an explicit minimal permission set: read/write on
// the workspace and module cache, network only when the request grants
// it.
type ScriptRunner struct {
	logger    *zap.Logger
	cfg       config.ScriptConfig
	cmdRunner CommandRunner
	fs        FileSystem
}

// ScriptRunnerOption defines a functional option for ScriptRunner
type ScriptRunnerOption func(*ScriptRunner)

// WithScriptCommandRunner sets the CommandRunner for ScriptRunner
func WithScriptCommandRunner(cmdRunner CommandRunner) ScriptRunnerOption {
	return func(r *ScriptRunner) {
		r.cmdRunner = cmdRunner
	}
}

// WithScriptFileSystem sets the FileSystem for ScriptRunner
func WithScriptFileSystem(fs FileSystem) ScriptRunnerOption {
	return func(r *ScriptRunner) {
		r.fs = fs
	}
}

// NewScriptRunner creates a new ScriptRunner with default implementations and optional interfaces
func NewScriptRunner(logger *zap.Logger, cfg config.ScriptConfig, opts ...ScriptRunnerOption) *ScriptRunner {
	runner := &ScriptRunner{
		logger:    logger,
		cfg:       cfg,
		cmdRunner: &RealCommandRunner{},
		fs:        &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run executes one script request. Validation happens before anything
// touches the filesystem or spawns a process; the workspace is removed
// on every exit path including timeout and cancellation.
func (r *ScriptRunner) Run(ctx context.Context, req ScriptRequest) (ScriptResult, error) {
	entry, timeoutSec, err := r.validate(req)
	if err != nil {
		return ScriptResult{}, err
	}

	ws, err := newWorkspace(r.fs, r.cfg.TempRoot, r.logger)
	if err != nil {
		r.logger.Error("failed to provision workspace", zap.Error(err))
		return ScriptResult{}, newError(KindRuntimeUnavailable, err, "%s", MsgInternalError)
	}
	defer ws.Close()

	// Dependency installation needs the network grant; without it the
	// declared list is skipped rather than failing the run up front.
	dependencies := req.Dependencies
	if len(dependencies) > 0 && !req.AllowNetwork {
		r.logger.Warn("dependencies declared without network access, skipping installation",
			zap.Strings("dependencies", dependencies))
		dependencies = nil
	}

	driver, err := buildDriver(req.Script, entry, req.Inputs, dependencies)
	if err != nil {
		r.logger.Error("failed to build driver", zap.Error(err))
		return ScriptResult{}, newError(KindRuntimeUnavailable, err, "%s", MsgInternalError)
	}
	if werr := r.fs.WriteFile(ws.Path(driverFileName), []byte(driver), FilePermission); werr != nil {
		r.logger.Error("failed to write driver", zap.Error(werr))
		return ScriptResult{}, newError(KindRuntimeUnavailable, werr, "%s", MsgInternalError)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second+timeoutGrace)
	defer cancel()

	out, runErr := r.cmdRunner.RunCommand(runCtx, CommandSpec{
		Args: r.commandArgs(ws, req.AllowNetwork),
		Dir:  ws.Dir(),
		Env:  r.commandEnv(ws),
	})
	if runCtx.Err() == context.DeadlineExceeded {
		return ScriptResult{}, newError(KindTimeout, runCtx.Err(),
			"execution timed out after %d seconds", timeoutSec)
	}
	if runErr != nil {
		switch {
		case errors.Is(runErr, context.Canceled):
			return ScriptResult{}, newError(KindTimeout, runErr, "execution was cancelled")
		case errors.Is(runErr, exec.ErrNotFound):
			r.logger.Error("script runtime is not installed",
				zap.String("runtime", r.cfg.RuntimeBin), zap.Error(runErr))
			return ScriptResult{}, newError(KindRuntimeUnavailable, runErr, "%s", MsgInternalError)
		default:
			r.logger.Error("failed to launch script runtime", zap.Error(runErr))
			return ScriptResult{}, newError(KindRuntimeUnavailable, runErr, "%s", MsgInternalError)
		}
	}

	outcome, perr := protocol.DecodeFinal(out.Stdout)
	if perr != nil {
		if out.ExitCode != 0 {
			cause := fmt.Errorf("runtime exited with code %d: %s", out.ExitCode, out.Stderr)
			r.logger.Error("script runtime failed",
				zap.Int("exit_code", out.ExitCode),
				zap.String("stderr", out.Stderr))
			return ScriptResult{}, newError(KindExecution, cause, "%s", Sanitize(cause))
		}
		r.logger.Error("script produced no parseable outcome",
			zap.String("stdout", out.Stdout), zap.Error(perr))
		return ScriptResult{}, newError(KindOutputProtocol, perr, "%s", MsgInternalError)
	}

	result := ScriptResult{
		Stdout:  outcome.Stdout,
		Stderr:  outcome.Stderr,
		Success: outcome.Success,
	}
	if !outcome.Success {
		result.Error = sanitizeScriptError(outcome.Error)
		return result, nil
	}
	if len(outcome.Output) > 0 && string(outcome.Output) != "null" {
		var value any
		if uerr := json.Unmarshal(outcome.Output, &value); uerr != nil {
			r.logger.Error("script outcome carried undecodable output", zap.Error(uerr))
			return ScriptResult{}, newError(KindOutputProtocol, uerr, "%s", MsgInternalError)
		}
		result.Output = value
	}
	return result, nil
}

// validate applies the callable-discovery rule and the request limits.
// It never spawns a process and never touches the filesystem.
func (r *ScriptRunner) validate(req ScriptRequest) (entry string, timeoutSec int, err error) {
	if verr := security.ValidatePattern(req.Script, r.cfg.MaxScriptBytes); verr != nil {
		return "", 0, newError(KindValidation, verr, "invalid script: %s", verr.Error())
	}
	for _, dep := range req.Dependencies {
		if verr := security.ValidatePattern(dep, r.cfg.MaxPatternLength); verr != nil {
			return "", 0, newError(KindValidation, verr, "invalid dependency: %s", verr.Error())
		}
	}

	if req.TimeoutSec < 0 {
		return "", 0, newError(KindValidation, nil, "timeout must be positive")
	}
	timeoutSec = req.TimeoutSec
	if timeoutSec == 0 {
		timeoutSec = r.cfg.DefaultTimeoutSec
	}

	ep := DiscoverEntryPoint(req.Script)
	switch ep.Kind {
	case SingleCallable, MultipleWithEntry:
		return ep.Name, timeoutSec, nil
	case NoCallables:
		return "", 0, newError(KindValidation, nil, "script must define at least one function")
	case MultipleWithoutEntry:
		return "", 0, newError(KindValidation, nil,
			"script defines multiple functions but none is named %q", EntryPointName)
	default:
		return "", 0, newError(KindValidation, nil, "script could not be analyzed")
	}
}

func (r *ScriptRunner) commandArgs(ws *workspace, allowNetwork bool) []string {
	grantPaths := strings.Join([]string{ws.Dir(), r.moduleCacheDir(ws)}, ",")
	args := []string{
		r.cfg.RuntimeBin, "run",
		"--quiet",
		"--no-prompt",
		"--allow-read=" + grantPaths,
		"--allow-write=" + grantPaths,
	}
	if allowNetwork {
		args = append(args, "--allow-net")
	}
	return append(args, ws.Path(driverFileName))
}

// commandEnv builds the child's entire environment. The host environment
// is never inherited.
func (r *ScriptRunner) commandEnv(ws *workspace) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + ws.Dir(),
		"DENO_DIR=" + r.moduleCacheDir(ws),
		"NO_COLOR=1",
	}
}

func (r *ScriptRunner) moduleCacheDir(ws *workspace) string {
	if r.cfg.ModuleCacheDir != "" {
		return r.cfg.ModuleCacheDir
	}
	return ws.Path("cache")
}
