package sandbox

import (
	"context"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
)

// Engine is the façade callers use to run sandboxed workloads. Every
// failure it returns is a classified *Error; raw runtime errors never
// cross this boundary.
type Engine interface {
	RunScript(ctx context.Context, req ScriptRequest) (ScriptResult, error)
	RunContainer(ctx context.Context, req ContainerRequest) (ContainerResult, error)
}

type engine struct {
	logger     *zap.Logger
	scripts    *ScriptRunner
	containers *ContainerRunner
}

// NewEngine creates the sandbox engine from the application configuration
func NewEngine(logger *zap.Logger, cfg *config.Config) Engine {
	return &engine{
		logger:     logger,
		scripts:    NewScriptRunner(logger, cfg.Script),
		containers: NewContainerRunner(logger, cfg.Container),
	}
}

// NewEngineWith assembles an engine from pre-built runners. Used by
// tests and callers that need to swap the command or filesystem seams.
func NewEngineWith(logger *zap.Logger, scripts *ScriptRunner, containers *ContainerRunner) Engine {
	return &engine{logger: logger, scripts: scripts, containers: containers}
}

func (e *engine) RunScript(ctx context.Context, req ScriptRequest) (ScriptResult, error) {
	result, err := e.scripts.Run(ctx, req)
	return result, e.classify(err)
}

func (e *engine) RunContainer(ctx context.Context, req ContainerRequest) (ContainerResult, error) {
	result, err := e.containers.Run(ctx, req)
	return result, e.classify(err)
}

// classify guarantees the façade's error contract: anything that is not
// already a sandbox *Error is logged in full and replaced with a generic
// internal fault.
func (e *engine) classify(err error) error {
	if err == nil {
		return nil
	}
	if serr, ok := AsError(err); ok {
		if serr.Kind == KindRuntimeUnavailable || serr.Kind == KindOutputProtocol {
			e.logger.Error("sandbox operational fault",
				zap.String("kind", serr.Kind.String()),
				zap.Error(serr.Unwrap()))
		}
		return serr
	}
	e.logger.Error("unclassified sandbox failure", zap.Error(err))
	return newError(KindRuntimeUnavailable, err, "%s", MsgInternalError)
}
