package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/kapu/llm-chess-arena/internal/llm"
	"github.com/kapu/llm-chess-arena/internal/match"
	"github.com/kapu/llm-chess-arena/internal/retry"
	"github.com/kapu/llm-chess-arena/internal/rules"
	"github.com/kapu/llm-chess-arena/internal/suggest"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type stubCompleter struct {
	reply *llm.MoveReply
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (*llm.MoveReply, error) {
	return s.reply, s.err
}

func (s *stubCompleter) Provider() string { return "stub" }
func (s *stubCompleter) Model() string    { return "stub-model" }

func newSuggestionServer(c *stubCompleter) *Server {
	svc := suggest.NewService(c, retry.Policy{MaxAttempts: 1})
	mgr := match.NewManager(svc, func() match.Engine { return rules.NewBoard() })
	return NewServer(mgr, svc, nil)
}

func postSuggestion(srv *Server, body string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI("/api/move-suggestion")
	req.SetBodyString(body)
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	srv.Handle(&ctx)
	return &ctx
}

func TestSuggestionEndpointSuccess(t *testing.T) {
	srv := newSuggestionServer(&stubCompleter{reply: &llm.MoveReply{Origin: "e2", Destination: "e4", Reasoning: "center"}})
	ctx := postSuggestion(srv, `{"position": "`+startFEN+`", "sideToMove": "w", "legalMoves": ["e2e4"]}`)

	if got := ctx.Response.StatusCode(); got != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", got)
	}
	var resp arenadto.SuggestionResponse
	if err := json.Unmarshal(ctx.Response.Body(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Move != "e2e4" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestSuggestionEndpointRejectsBadPosition(t *testing.T) {
	// A caller-supplied position the prompt builder cannot render is the
	// client's fault, not a provider failure.
	srv := newSuggestionServer(&stubCompleter{reply: &llm.MoveReply{Origin: "e2", Destination: "e4"}})
	ctx := postSuggestion(srv, `{"position": "not a fen", "sideToMove": "w"}`)

	if got := ctx.Response.StatusCode(); got != fasthttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", got)
	}
	var derr arenadto.DomainError
	if err := json.Unmarshal(ctx.Response.Body(), &derr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if derr.Code != "bad_request" {
		t.Fatalf("code = %q", derr.Code)
	}
}

func TestSuggestionEndpointMissingPosition(t *testing.T) {
	srv := newSuggestionServer(&stubCompleter{reply: &llm.MoveReply{Origin: "e2", Destination: "e4"}})
	ctx := postSuggestion(srv, `{"sideToMove": "w"}`)
	if got := ctx.Response.StatusCode(); got != fasthttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", got)
	}
}

func TestSuggestionEndpointMalformedReply(t *testing.T) {
	srv := newSuggestionServer(&stubCompleter{reply: &llm.MoveReply{Origin: "zz", Destination: "e4"}})
	ctx := postSuggestion(srv, `{"position": "`+startFEN+`", "sideToMove": "w", "legalMoves": ["e2e4"]}`)

	if got := ctx.Response.StatusCode(); got != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", got)
	}
	var resp arenadto.SuggestionResponse
	if err := json.Unmarshal(ctx.Response.Body(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Fatalf("malformed reply should report success=false: %+v", resp)
	}
}

func TestSuggestionEndpointProviderFailure(t *testing.T) {
	srv := newSuggestionServer(&stubCompleter{err: errors.New("connection refused")})
	ctx := postSuggestion(srv, `{"position": "`+startFEN+`", "sideToMove": "w", "legalMoves": ["e2e4"]}`)
	if got := ctx.Response.StatusCode(); got != fasthttp.StatusBadGateway {
		t.Fatalf("status = %d, want 502", got)
	}
}
