// Package mcpserver exposes the recruiter pipeline as MCP tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"hirepal/internal/domain"
	"hirepal/internal/usecase"
	"hirepal/internal/wire"
)

const (
	serverName    = "hirepal"
	serverVersion = "1.0.0"

	ToolNewSession = "new_session"
	ToolAsk        = "ask_recruiter"
	ToolEndSession = "end_session"
)

// Service is the pipeline surface the tools call.
type Service interface {
	NewSession(ctx context.Context) (string, error)
	Ask(ctx context.Context, in usecase.AskInput) (domain.Answer, error)
	EndSession(ctx context.Context, sessionID string) error
}

type NewSessionInput struct{}

type NewSessionOutput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier to pass to ask_recruiter"`
	Message   string `json:"message"`
}

type AskInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier from new_session"`
	Question  string `json:"question" jsonschema:"recruiter question about candidates"`
}

// AskOutput flattens wire.Response so the tool has an object schema.
type AskOutput struct {
	Type       string               `json:"type" jsonschema:"text, candidates or error"`
	Reply      string               `json:"reply"`
	Candidates []wire.CandidateCard `json:"candidates,omitempty"`
}

type EndSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier to end"`
}

type EndSessionOutput struct {
	Ended bool `json:"ended"`
}

// New registers the HirePal tools on a fresh MCP server.
func New(svc Service, log *zap.Logger) (*mcp.Server, error) {
	if svc == nil {
		return nil, errors.New("mcpserver: service must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("mcp")

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolNewSession,
		Description: "Start a recruiter conversation and return its session id.",
	}, newSessionHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAsk,
		Description: "Ask about candidates in the CV collection. Returns either a conversational reply or candidate cards grounded in retrieved CVs.",
	}, askHandler(svc, log))

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolEndSession,
		Description: "End a recruiter conversation and forget its history.",
	}, endSessionHandler(svc))

	return server, nil
}

// Run serves over stdio until ctx is cancelled or stdin closes.
func Run(ctx context.Context, server *mcp.Server, log *zap.Logger) error {
	err := server.Run(ctx, &mcp.StdioTransport{})
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "server is closing") {
		if log != nil {
			log.Debug("mcp server stopped", zap.Error(err))
		}
		return nil
	}
	return err
}

func newSessionHandler(svc Service) func(context.Context, *mcp.CallToolRequest, NewSessionInput) (*mcp.CallToolResult, NewSessionOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NewSessionInput) (*mcp.CallToolResult, NewSessionOutput, error) {
		id, err := svc.NewSession(ctx)
		if err != nil {
			return nil, NewSessionOutput{}, toolError(err)
		}
		return nil, NewSessionOutput{SessionID: id, Message: wire.NewSessionMessage}, nil
	}
}

func askHandler(svc Service, log *zap.Logger) func(context.Context, *mcp.CallToolRequest, AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
		answer, err := svc.Ask(ctx, usecase.AskInput{SessionID: in.SessionID, Question: in.Question})
		if err != nil {
			log.Info("tool call rejected", zap.String("tool", ToolAsk), zap.Error(err))
			return nil, AskOutput{}, toolError(err)
		}
		out, err := wire.Render(answer)
		if err != nil {
			log.Error("answer failed wire validation", zap.String("tool", ToolAsk), zap.Error(err))
		}
		return nil, toAskOutput(out), nil
	}
}

func endSessionHandler(svc Service) func(context.Context, *mcp.CallToolRequest, EndSessionInput) (*mcp.CallToolResult, EndSessionOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in EndSessionInput) (*mcp.CallToolResult, EndSessionOutput, error) {
		if err := svc.EndSession(ctx, in.SessionID); err != nil {
			return nil, EndSessionOutput{}, toolError(err)
		}
		return nil, EndSessionOutput{Ended: true}, nil
	}
}

func toAskOutput(r wire.Response) AskOutput {
	out := AskOutput{Type: r.Type}
	switch content := r.Content.(type) {
	case []wire.CandidateCard:
		out.Reply = r.LLMResponse
		out.Candidates = content
	case string:
		out.Reply = content
	}
	return out
}

// toolError keeps the client-facing message free of internal detail.
func toolError(err error) error {
	_, body := wire.StatusFor(err)
	return errors.New(body.Error + ": " + body.Message)
}
