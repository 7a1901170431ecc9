package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/sandbox"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	engine    sandbox.Engine
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, engine sandbox.Engine) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		engine: engine,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.String("script.runtime_bin", cfg.Script.RuntimeBin),
		zap.Int("script.default_timeout_sec", cfg.Script.DefaultTimeoutSec),
		zap.String("container.engine", cfg.Container.Engine),
		zap.Int("container.trusted_images", len(cfg.Container.TrustedImages)),
		zap.String("container.network", cfg.Container.Network),
		zap.String("container.pull_policy", cfg.Container.PullPolicy),
	)

	s.mcpServer = server.NewMCPServer("runbox", "A sandboxed execution engine")

	s.registerRunScriptTool()
	s.registerRunContainerTool()

	return s, nil
}

func (s *MCPServer) registerRunScriptTool() {
	tool := mcp.Tool{
		Name:        "run_script",
		Description: "Execute an untrusted script in an isolated interpreter sandbox",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"script": map[string]any{
					"type":        "string",
					"description": "Script source defining the entry point function",
				},
				"inputs": map[string]any{
					"type":        "object",
					"description": "Keyword arguments passed to the entry point (optional)",
				},
				"dependencies": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Packages to install before execution; requires allow_network (optional)",
				},
				"timeout_seconds": map[string]any{
					"type":        "integer",
					"description": "Wall-clock execution budget in seconds (optional)",
				},
				"allow_network": map[string]any{
					"type":        "boolean",
					"description": "Grant the sandbox network access (default false)",
				},
			},
			Required: []string{"script"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRunScript)
}

func (s *MCPServer) registerRunContainerTool() {
	tool := mcp.Tool{
		Name:        "run_container",
		Description: "Execute a command in a trusted container image",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"image": map[string]any{
					"type":        "string",
					"description": "Fully-qualified image reference; must be on the trusted allowlist",
				},
				"command": map[string]any{
					"description": "Command to run, as a string or list of strings (optional)",
				},
				"environment": map[string]any{
					"type":        "object",
					"description": "Environment variables for the container (optional)",
				},
				"volume_name": map[string]any{
					"type":        "string",
					"description": "Named volume to mount; requires volume_path (optional)",
				},
				"volume_path": map[string]any{
					"type":        "string",
					"description": "Absolute mount point inside the container; requires volume_name (optional)",
				},
				"network": map[string]any{
					"type":        "string",
					"enum":        []string{"none", "bridge"},
					"description": "Network mode (default none)",
				},
				"pull_policy": map[string]any{
					"type":        "string",
					"enum":        []string{"never", "missing", "always"},
					"description": "When to pull the image (default missing)",
				},
			},
			Required: []string{"image"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRunContainer)
}

// handleRunScript handles the run_script tool
func (s *MCPServer) handleRunScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	script, err := request.RequireString("script")
	if err != nil {
		return nil, fmt.Errorf("script parameter is required: %w", err)
	}

	args := request.GetArguments()

	var inputs map[string]any
	if raw, ok := args["inputs"].(map[string]any); ok {
		inputs = raw
	}

	var dependencies []string
	if raw, ok := args["dependencies"].([]any); ok {
		for _, item := range raw {
			dep, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("dependencies must be strings")
			}
			dependencies = append(dependencies, dep)
		}
	}

	req := sandbox.ScriptRequest{
		Script:       script,
		Inputs:       inputs,
		Dependencies: dependencies,
		TimeoutSec:   request.GetInt("timeout_seconds", 0),
		AllowNetwork: request.GetBool("allow_network", false),
	}

	s.logger.Info("script execution requested",
		zap.Int("script_len", len(script)),
		zap.Int("dependency_count", len(dependencies)),
		zap.Bool("allow_network", req.AllowNetwork))

	result, err := s.engine.RunScript(ctx, req)
	if err != nil {
		return s.failureResult(err), nil
	}

	payload := map[string]any{
		"success": result.Success,
		"stdout":  result.Stdout,
		"stderr":  result.Stderr,
	}
	if result.Success {
		payload["output"] = result.Output
	} else {
		payload["error"] = result.Error
	}
	return jsonResult(payload)
}

// handleRunContainer handles the run_container tool
func (s *MCPServer) handleRunContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	image, err := request.RequireString("image")
	if err != nil {
		return nil, fmt.Errorf("image parameter is required: %w", err)
	}

	args := request.GetArguments()

	var command []string
	switch raw := args["command"].(type) {
	case nil:
	case string:
		command = []string{raw}
	case []any:
		for _, item := range raw {
			part, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("command list entries must be strings")
			}
			command = append(command, part)
		}
	default:
		return nil, fmt.Errorf("command must be a string or a list of strings")
	}

	var environment map[string]string
	if raw, ok := args["environment"].(map[string]any); ok {
		environment = make(map[string]string, len(raw))
		for key, value := range raw {
			text, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("environment values must be strings")
			}
			environment[key] = text
		}
	}

	req := sandbox.ContainerRequest{
		Image:       image,
		Command:     command,
		Environment: environment,
		VolumeName:  request.GetString("volume_name", ""),
		VolumePath:  request.GetString("volume_path", ""),
		Network:     sandbox.NetworkMode(request.GetString("network", "")),
		PullPolicy:  sandbox.PullPolicy(request.GetString("pull_policy", "")),
	}

	s.logger.Info("container execution requested",
		zap.String("image", image),
		zap.Strings("command", command))

	result, err := s.engine.RunContainer(ctx, req)
	if err != nil {
		return s.failureResult(err), nil
	}

	// RuntimeInfo stays server-side: it is operator diagnostics, never
	// caller-facing data.
	s.logger.Debug("container runtime diagnostics", zap.Any("runtime_info", result.RuntimeInfo))

	return jsonResult(map[string]any{
		"success":      result.Success(),
		"exit_code":    result.ExitCode,
		"output":       result.Output,
		"container_id": result.ContainerID,
		"status":       result.Status,
	})
}

// failureResult maps a classified engine failure onto a tool error
// result. The switch is exhaustive over the error kinds.
func (s *MCPServer) failureResult(err error) *mcp.CallToolResult {
	serr, ok := sandbox.AsError(err)
	if !ok {
		s.logger.Error("engine returned an unclassified error", zap.Error(err))
		return errorResult(sandbox.MsgInternalError)
	}

	switch serr.Kind {
	case sandbox.KindValidation:
		s.logger.Info("request rejected", zap.String("reason", serr.Message))
	case sandbox.KindTimeout:
		s.logger.Info("execution timed out", zap.String("detail", serr.Message))
	case sandbox.KindExecution:
		s.logger.Info("sandboxed workload failed", zap.String("detail", serr.Message))
	case sandbox.KindOutputProtocol, sandbox.KindRuntimeUnavailable:
		s.logger.Error("sandbox operational fault",
			zap.String("kind", serr.Kind.String()),
			zap.Error(serr.Unwrap()))
	}
	return errorResult(serr.Message)
}

func jsonResult(payload map[string]any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: message},
		},
		IsError: true,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
