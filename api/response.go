package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/elmanelman/sql-judge/engine"
	"github.com/elmanelman/sql-judge/judge"
	"github.com/elmanelman/sql-judge/rewrite"
	"github.com/elmanelman/sql-judge/schema"
)

type ErrorResponse struct {
	Error string `json:"error"`
	// StatementIndex locates execution errors in the script.
	StatementIndex *int `json:"statement_index,omitempty"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// statusOf maps judge errors to HTTP status codes.
func statusOf(err error) int {
	var stmtErr *engine.StatementError
	switch {
	case errors.Is(err, judge.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnknownEngine),
		errors.Is(err, judge.ErrUnsupportedEngine),
		errors.Is(err, schema.ErrInvalidFlag):
		return http.StatusBadRequest
	case errors.Is(err, rewrite.ErrIsolation),
		errors.Is(err, schema.ErrAuthoring),
		errors.As(err, &stmtErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, judge.ErrNoReference):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondWithJudgeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(
			"request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		RespondWithError(w, code, "internal error")
		return
	}
	resp := ErrorResponse{Error: err.Error()}
	var stmtErr *engine.StatementError
	if errors.As(err, &stmtErr) {
		index := stmtErr.Index
		resp.StatementIndex = &index
	}
	RespondWithJSON(w, code, resp)
}
