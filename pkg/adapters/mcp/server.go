// Package mcp exposes the venueflow engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/venueflow"
	"github.com/aretw0/venueflow/internal/logging"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine is the part of the venueflow engine exposed as tools.
type Engine interface {
	HandleStageEvent(ctx context.Context, event domain.StageEvent) domain.Outcome
	Plan(ctx context.Context, event domain.StageEvent) (*domain.Plan, error)
	Definitions(ctx context.Context, prefix string) ([]*domain.WorkflowDefinition, error)
	Activity(ctx context.Context, formID string) ([]domain.ActivityRecord, error)
}

var _ Engine = (*venueflow.Engine)(nil)

// EventResult is the structured output of handle_stage_event.
type EventResult struct {
	EventID     string                 `json:"event_id" jsonschema_description:"Journal identifier of the event"`
	Success     bool                   `json:"success" jsonschema_description:"Whether the event was applied"`
	Skipped     bool                   `json:"skipped,omitempty" jsonschema_description:"Set when a redelivered event changed nothing"`
	Transition  string                 `json:"transition,omitempty" jsonschema_description:"Stage status after the event"`
	Definitions []string               `json:"definitions,omitempty" jsonschema_description:"Identifiers of the definitions written"`
	Summary     []string               `json:"summary,omitempty"`
	Record      *domain.ActivityRecord `json:"record,omitempty" jsonschema_description:"The activity record posted on the form"`
	Error       string                 `json:"error,omitempty"`
	ErrorKind   string                 `json:"error_kind,omitempty" jsonschema_description:"schema, precondition, resolution, collaborator or internal"`
}

func newEventResult(out domain.Outcome) EventResult {
	res := EventResult{
		EventID:     out.EventID,
		Success:     out.Success,
		Skipped:     out.Skipped,
		Transition:  string(out.Transition),
		Definitions: out.Definitions,
		Summary:     out.Summary,
		Record:      out.Record,
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
		res.ErrorKind = string(out.Err.Kind)
	}
	return res
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server. A nil logger discards.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("venueflow-mcp", strings.TrimSpace(venueflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	eventArgs := []mcp.ToolOption{
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Request form the event belongs to")),
		mcp.WithString("stage_type", mcp.Required(), mcp.Description("Stage tag, e.g. Submission_Stage or Decision_Stage")),
		mcp.WithNumber("sequence", mcp.Required(), mcp.Description("Positive sequence number of the event on its form")),
		mcp.WithString("content", mcp.Description("JSON object with the stage configuration (optional)")),
	}

	handleTool := mcp.NewTool("handle_stage_event", append([]mcp.ToolOption{
		mcp.WithDescription("Apply a stage configuration event to a venue request form and post its activity record."),
		mcp.WithOutputSchema[EventResult](),
	}, eventArgs...)...)
	s.mcpServer.AddTool(handleTool, mcp.NewStructuredToolHandler(s.handleStageEvent))

	planTool := mcp.NewTool("plan_stage_event", append([]mcp.ToolOption{
		mcp.WithDescription("Compute the definitions a stage event would write, without applying it."),
	}, eventArgs...)...)
	s.mcpServer.AddTool(planTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.planStageEvent(ctx, request.GetArguments())
	})

	s.mcpServer.AddTool(mcp.NewTool("list_definitions",
		mcp.WithDescription("List workflow definitions whose identifier starts with a prefix."),
		mcp.WithString("prefix", mcp.Description("Identifier prefix, e.g. Conf/2025/Paper1 (optional)")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.listDefinitions(ctx, request.GetArguments())
	})

	s.mcpServer.AddTool(mcp.NewTool("list_activity",
		mcp.WithDescription("List the activity records posted on a request form."),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Request form identifier")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.listActivity(ctx, request.GetArguments())
	})
}

func (s *Server) handleStageEvent(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (EventResult, error) {
	event, err := eventFromArgs(args)
	if err != nil {
		return EventResult{}, err
	}
	out := s.engine.HandleStageEvent(ctx, event)
	if out.Err != nil {
		s.logger.Warn("stage event failed", "form", event.RequestFormID, "stage", event.StageType, "kind", out.Err.Kind)
	}
	return newEventResult(out), nil
}

func (s *Server) planStageEvent(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	event, err := eventFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plan, err := s.engine.Plan(ctx, event)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("plan failed: %v", err)), nil
	}
	return jsonResult(plan)
}

func (s *Server) listDefinitions(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	prefix, _ := args["prefix"].(string)
	defs, err := s.engine.Definitions(ctx, prefix)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list definitions failed: %v", err)), nil
	}
	if defs == nil {
		defs = []*domain.WorkflowDefinition{}
	}
	return jsonResult(defs)
}

func (s *Server) listActivity(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	formID, _ := args["form_id"].(string)
	if formID == "" {
		return mcp.NewToolResultError("form_id is required"), nil
	}
	records, err := s.engine.Activity(ctx, formID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list activity failed: %v", err)), nil
	}
	if records == nil {
		records = []domain.ActivityRecord{}
	}
	return jsonResult(records)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("venueflow://definitions", "Workflow definitions",
		mcp.WithResourceDescription("Every workflow definition in the store"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		defs, err := s.engine.Definitions(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list definitions: %w", err)
		}
		data, err := json.Marshal(defs)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "venueflow://definitions",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// eventFromArgs builds a stage event from tool arguments. Content may be a
// JSON string or an object.
func eventFromArgs(args map[string]any) (domain.StageEvent, error) {
	formID, _ := args["form_id"].(string)
	stage, _ := args["stage_type"].(string)
	event := domain.StageEvent{
		StageType:     domain.StageType(stage),
		RequestFormID: formID,
		Content:       map[string]any{},
	}

	switch seq := args["sequence"].(type) {
	case float64:
		event.Sequence = int64(seq)
	case int:
		event.Sequence = int64(seq)
	case json.Number:
		n, err := seq.Int64()
		if err != nil {
			return event, fmt.Errorf("sequence: %w", err)
		}
		event.Sequence = n
	case nil:
		return event, errors.New("sequence is required")
	default:
		return event, fmt.Errorf("sequence must be a number, got %T", seq)
	}

	switch content := args["content"].(type) {
	case nil:
	case string:
		if strings.TrimSpace(content) == "" {
			break
		}
		if err := domain.DecodeJSON([]byte(content), &event.Content); err != nil {
			return event, fmt.Errorf("content is not a JSON object: %w", err)
		}
	case map[string]any:
		event.Content = content
	default:
		return event, fmt.Errorf("content must be a JSON object, got %T", content)
	}
	return event, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
