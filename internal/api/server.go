package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/llm-chess-arena/internal/match"
	"github.com/kapu/llm-chess-arena/internal/obslog"
	"github.com/kapu/llm-chess-arena/internal/suggest"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

// Server exposes the match control surface and the move-suggestion protocol
// over HTTP.
type Server struct {
	mgr       *match.Manager
	suggester match.Suggester
	archive   *match.Archive
}

func NewServer(mgr *match.Manager, suggester match.Suggester, archive *match.Archive) *Server {
	return &Server{mgr: mgr, suggester: suggester, archive: archive}
}

// Listen blocks serving requests on addr.
func (s *Server) Listen(addr string) error {
	srv := &fasthttp.Server{
		Handler: s.Handle,
		Name:    "llm-chess-arena",
	}
	return srv.ListenAndServe(addr)
}

// Handle routes a single request.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/api/matches" && method == fasthttp.MethodPost:
		s.handleCreate(ctx)
	case path == "/api/move-suggestion" && method == fasthttp.MethodPost:
		s.handleSuggestion(ctx)
	case path == "/api/archive/recent" && method == fasthttp.MethodGet:
		s.handleRecent(ctx)
	case strings.HasPrefix(path, "/api/matches/"):
		s.handleMatch(ctx, strings.TrimPrefix(path, "/api/matches/"), method)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown route")
	}
}

func (s *Server) handleMatch(ctx *fasthttp.RequestCtx, rest, method string) {
	parts := strings.SplitN(rest, "/", 2)
	id := strings.TrimSpace(parts[0])
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	if id == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "match id required")
		return
	}

	switch {
	case action == "" && method == fasthttp.MethodGet:
		snap, err := s.mgr.Snapshot(id)
		if err != nil {
			writeMatchError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, snap)
	case action == "" && method == fasthttp.MethodDelete:
		s.mgr.Delete(id)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	case action == "cycle" && method == fasthttp.MethodPost:
		res, err := s.mgr.RunCycle(ctx, id)
		if err != nil && res == nil {
			writeMatchError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, cycleBody(s, id, res))
	case action == "play" && method == fasthttp.MethodPost:
		// The match loop outlives the request.
		go func() {
			if err := s.mgr.Play(context.Background(), id); err != nil {
				obslog.L().Warn("match_play_error", zap.String("match_id", id), zap.Error(err))
			}
		}()
		snap, err := s.mgr.Snapshot(id)
		if err != nil {
			writeMatchError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusAccepted, snap)
	case action == "move" && method == fasthttp.MethodPost:
		var req arenadto.ExternalMoveRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "invalid body")
			return
		}
		res, err := s.mgr.ExternalMove(ctx, id, req.Origin, req.Destination, req.Promotion)
		if err != nil {
			writeMatchError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, cycleBody(s, id, res))
	case action == "resign" && method == fasthttp.MethodPost:
		out, err := s.mgr.Resign(ctx, id)
		if err != nil {
			writeMatchError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, out)
	case action == "reset" && method == fasthttp.MethodPost:
		if err := s.mgr.Reset(id); err != nil {
			writeMatchError(ctx, err)
			return
		}
		snap, _ := s.mgr.Snapshot(id)
		writeJSON(ctx, fasthttp.StatusOK, snap)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown match action")
	}
}

func (s *Server) handleCreate(ctx *fasthttp.RequestCtx) {
	m, err := s.mgr.Create(ctx)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "create_failed", err.Error())
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, m.Snapshot())
}

// handleSuggestion speaks the wire request/response schemas directly.
func (s *Server) handleSuggestion(ctx *fasthttp.RequestCtx) {
	var req arenadto.SuggestionRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "invalid body")
		return
	}
	resp, err := s.suggester.Suggest(ctx, &req)
	if err != nil {
		var invalid *suggest.InvalidRequestError
		if errors.As(err, &invalid) {
			writeError(ctx, fasthttp.StatusBadRequest, "bad_request", err.Error())
			return
		}
		var malformed *suggest.MalformedSuggestionError
		if errors.As(err, &malformed) {
			writeJSON(ctx, fasthttp.StatusOK, arenadto.SuggestionResponse{Success: false, Reasoning: err.Error()})
			return
		}
		writeJSON(ctx, fasthttp.StatusBadGateway, arenadto.SuggestionResponse{Success: false, Reasoning: err.Error()})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, resp.ToDTO())
}

func (s *Server) handleRecent(ctx *fasthttp.RequestCtx) {
	if s.archive == nil {
		writeError(ctx, fasthttp.StatusNotFound, "no_archive", "match archive not configured")
		return
	}
	recs, err := s.archive.Recent(ctx, 20)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, recs)
}

type cycleResponse struct {
	Cycle *match.CycleResult     `json:"cycle"`
	State arenadto.MatchSnapshot `json:"state"`
}

func cycleBody(s *Server, id string, res *match.CycleResult) cycleResponse {
	snap, _ := s.mgr.Snapshot(id)
	return cycleResponse{Cycle: res, State: snap}
}

func writeMatchError(ctx *fasthttp.RequestCtx, err error) {
	var illegal *match.IllegalSuggestionError
	var malformed *suggest.MalformedSuggestionError
	switch {
	case errors.Is(err, match.ErrMatchNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "match_not_found", err.Error())
	case errors.Is(err, match.ErrMatchNotActive):
		writeError(ctx, fasthttp.StatusConflict, "match_not_active", err.Error())
	case errors.Is(err, match.ErrAwaitingSuggestion):
		writeError(ctx, fasthttp.StatusConflict, "awaiting_suggestion", err.Error())
	case errors.As(err, &illegal):
		writeError(ctx, fasthttp.StatusUnprocessableEntity, "illegal_move", err.Error())
	case errors.As(err, &malformed):
		writeError(ctx, fasthttp.StatusUnprocessableEntity, "malformed_move", err.Error())
	default:
		writeError(ctx, fasthttp.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	writeJSON(ctx, status, arenadto.DomainError{Code: code, Message: message})
}
