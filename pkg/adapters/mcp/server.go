package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/flowrun"
	"github.com/aretw0/flowrun/internal/logging"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FlowsURI is the resource listing the flows the server can start.
const FlowsURI = "flowrun://flows"

// SessionResult aligns with the HTTP session payload so agents see one shape across adapters.
type SessionResult struct {
	Session  *domain.Session `json:"session" jsonschema_description:"Snapshot of the session after the call"`
	Accepted *bool           `json:"accepted,omitempty" jsonschema_description:"Whether submitted input was consumed"`
}

// FlowsResult lists flow ids.
type FlowsResult struct {
	Flows []string `json:"flows" jsonschema_description:"IDs of flows that can be started"`
}

type startArgs struct {
	FlowID    string `json:"flow_id"`
	SessionID string `json:"session_id,omitempty"`
}

type inputArgs struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

// Server exposes a session service as an MCP server.
type Server struct {
	sessions  ports.SessionService
	flows     ports.FlowLoader
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions ports.SessionService, flows ports.FlowLoader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		sessions:  sessions,
		flows:     flows,
		logger:    logger,
		mcpServer: server.NewMCPServer("flowrun-mcp", strings.TrimSpace(flowrun.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a flow in a new session and run it until it waits for input or completes."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("ID of the flow to run")),
		mcp.WithString("session_id", mcp.Description("Session ID to use (optional, generated when omitted)")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("submit_input",
		mcp.WithDescription("Send user text to a session waiting for input."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("text", mcp.Required(), mcp.Description("User input")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the current snapshot of a session, including its transcript."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Return a session to idle with an empty transcript."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleReset))

	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the flows that can be started."),
		mcp.WithOutputSchema[FlowsResult](),
	), mcp.NewStructuredToolHandler(s.handleListFlows))
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args startArgs) (SessionResult, error) {
	if args.FlowID == "" {
		return SessionResult{}, fmt.Errorf("flow_id is required")
	}
	snap, err := s.sessions.Start(ctx, args.SessionID, args.FlowID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("start failed: %w", err)
	}
	s.logger.Info("session started", logging.SessionID(snap.ID), logging.FlowID(snap.FlowID))
	return SessionResult{Session: snap}, nil
}

func (s *Server) handleSubmit(ctx context.Context, _ mcp.CallToolRequest, args inputArgs) (SessionResult, error) {
	snap, accepted, err := s.sessions.SubmitInput(ctx, args.SessionID, args.Text)
	if err != nil {
		s.logger.Warn("input rejected", logging.SessionID(args.SessionID), logging.Err(err))
		return SessionResult{}, fmt.Errorf("submit failed: %w", err)
	}
	return SessionResult{Session: snap, Accepted: &accepted}, nil
}

func (s *Server) handleGet(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (SessionResult, error) {
	snap, err := s.sessions.Get(ctx, args.SessionID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("get failed: %w", err)
	}
	return SessionResult{Session: snap}, nil
}

func (s *Server) handleReset(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (SessionResult, error) {
	snap, err := s.sessions.Reset(ctx, args.SessionID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("reset failed: %w", err)
	}
	return SessionResult{Session: snap}, nil
}

func (s *Server) handleListFlows(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (FlowsResult, error) {
	ids, err := s.flows.ListFlows(ctx)
	if err != nil {
		return FlowsResult{}, fmt.Errorf("list flows failed: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return FlowsResult{Flows: ids}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Available flows",
		mcp.WithMIMEType("application/json"),
	), s.readFlows)
}

func (s *Server) readFlows(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	result, err := s.handleListFlows(ctx, mcp.CallToolRequest{}, struct{}{})
	if err != nil {
		return nil, err
	}
	jsonBytes, err := json.Marshal(result.Flows)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FlowsURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
