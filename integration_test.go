package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/logger"
	"github.com/isdmx/runbox/mcpserver"
	"github.com/isdmx/runbox/sandbox"
)

func integrationConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Logging: config.LoggingConfig{
			Mode:  "development",
			Level: "debug",
		},
		Script: config.ScriptConfig{
			RuntimeBin:        "deno",
			DefaultTimeoutSec: 5,
			MaxScriptBytes:    1024 * 1024,
			MaxPatternLength:  1000,
		},
		Container: config.ContainerConfig{
			Engine:        "podman",
			TrustedImages: []string{"alpine:latest"},
			Network:       "none",
			PullPolicy:    "missing",
		},
	}
}

// stubRunner satisfies sandbox.CommandRunner without touching the host.
type stubRunner struct {
	output sandbox.CommandOutput
	calls  int
}

func (s *stubRunner) RunCommand(_ context.Context, _ sandbox.CommandSpec) (sandbox.CommandOutput, error) {
	s.calls++
	return s.output, nil
}

// TestIntegrationConfigLoggerEngine tests the integration between the
// config, logger and sandbox packages.
func TestIntegrationConfigLoggerEngine(t *testing.T) {
	t.Run("ConfigAndLoggerIntegration", func(t *testing.T) {
		cfg := integrationConfig()

		testLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		require.NoError(t, err)
		require.NotNil(t, testLogger)

		testLogger.Info("integration test started")
		_ = testLogger.Sync()
	})

	t.Run("ConfigLoggerEngineIntegration", func(t *testing.T) {
		cfg := integrationConfig()

		testLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		require.NoError(t, err)

		engine := sandbox.NewEngine(testLogger, cfg)
		assert.NotNil(t, engine)
	})

	t.Run("FullMCPIntegration", func(t *testing.T) {
		cfg := integrationConfig()

		mcpLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		require.NoError(t, err)

		engine := sandbox.NewEngine(mcpLogger, cfg)

		server, err := mcpserver.New(cfg, mcpLogger, engine)
		require.NoError(t, err)
		require.NotNil(t, server)

		// Both tools are registered on the underlying MCP server.
		mcpServer := server.GetMCPServer()
		require.NotNil(t, mcpServer)
	})
}

// TestIntegrationEngineExecution drives a request through the engine
// façade with the command seam stubbed out, so no interpreter or
// container runtime is needed.
func TestIntegrationEngineExecution(t *testing.T) {
	testLogger := zaptest.NewLogger(t)

	t.Run("ScriptThroughEngine", func(t *testing.T) {
		cfg := integrationConfig()
		cfg.Script.TempRoot = t.TempDir()

		runner := &stubRunner{output: sandbox.CommandOutput{
			Stdout: `{"success":true,"output":42,"stdout":"","stderr":""}` + "\n",
		}}
		scripts := sandbox.NewScriptRunner(testLogger, cfg.Script, sandbox.WithScriptCommandRunner(runner))
		containers := sandbox.NewContainerRunner(testLogger, cfg.Container)
		engine := sandbox.NewEngineWith(testLogger, scripts, containers)

		result, err := engine.RunScript(context.Background(), sandbox.ScriptRequest{
			Script: "def main():\n    return 42\n",
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, float64(42), result.Output)
		assert.Equal(t, 1, runner.calls)
	})

	t.Run("UntrustedImageRejectedThroughEngine", func(t *testing.T) {
		cfg := integrationConfig()

		runner := &stubRunner{}
		scripts := sandbox.NewScriptRunner(testLogger, cfg.Script)
		containers := sandbox.NewContainerRunner(testLogger, cfg.Container, sandbox.WithContainerCommandRunner(runner))
		engine := sandbox.NewEngineWith(testLogger, scripts, containers)

		_, err := engine.RunContainer(context.Background(), sandbox.ContainerRequest{
			Image:   "evil.example.com/backdoor:latest",
			Command: []string{"sh"},
		})
		require.Error(t, err)
		serr, ok := sandbox.AsError(err)
		require.True(t, ok)
		assert.Equal(t, sandbox.KindValidation, serr.Kind)

		// Rejection happens before any engine command runs.
		assert.Zero(t, runner.calls)
	})
}
