package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/comment-radar/internal/platform/api"
	"github.com/example/comment-radar/internal/platform/auth"
	"github.com/example/comment-radar/internal/platform/httpserver"
	"github.com/example/comment-radar/services/radar/internal/reportq"
)

// Mount registers the command API on r.
//
//	POST /v1/commands          body {action, ...}
//	POST /v1/commands/{action} body carries the remaining fields
func (rt *Router) Mount(r chi.Router, verifier auth.JWTVerifier) {
	r.Route("/v1/commands", func(r chi.Router) {
		r.Use(auth.RequireOperator(verifier))
		r.Post("/", rt.ServeCommand)
		r.Post("/{action}", rt.ServeCommand)
	})
}

// ServeCommand handles POST /v1/commands.
func (rt *Router) ServeCommand(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	pathAction := strings.TrimSpace(chi.URLParam(r, "action"))

	var cmd Command
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&cmd); err != nil {
		// an empty body is fine when the action is in the path
		if !errors.Is(err, io.EOF) || pathAction == "" {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
	}
	if pathAction != "" {
		cmd.Action = pathAction
	}
	if cmd.Action == "" {
		api.BadRequest(w, "MISSING_ACTION", "action is required", rid, nil)
		return
	}

	ack, err := rt.Handle(r.Context(), cmd)
	if err != nil {
		rt.writeError(w, rid, cmd.Action, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, ack)
}

func (rt *Router) writeError(w http.ResponseWriter, rid, action string, err error) {
	switch {
	case errors.Is(err, ErrUnknownAction):
		api.BadRequest(w, "UNKNOWN_ACTION", err.Error(), rid, map[string]any{"action": action})
	case errors.Is(err, ErrBadCommand):
		api.BadRequest(w, "BAD_COMMAND", err.Error(), rid, nil)
	case errors.Is(err, reportq.ErrClosed):
		api.Unavailable(w, "QUEUE_STOPPED", "report queue is not running", rid)
	default:
		rt.log.Error("command failed", zap.String("action", action), zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}
