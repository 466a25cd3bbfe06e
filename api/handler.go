package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-ozzo/ozzo-validation/v3"
	"go.uber.org/zap"

	"github.com/elmanelman/sql-judge/engine"
	"github.com/elmanelman/sql-judge/judge"
	"github.com/elmanelman/sql-judge/schema"
)

// Judge is what the handlers need from judge.Judge.
type Judge interface {
	Run(ctx context.Context, a judge.Attempt) (*engine.Result, error)
	Submit(ctx context.Context, a judge.Attempt) (judge.Verdict, error)
	Materialize(ctx context.Context, challengeID int64, e string) ([]*judge.Report, error)
	Reload(ctx context.Context, challengeID int64, flag schema.Flag) ([]*judge.Report, error)
	GenerateReference(ctx context.Context, challengeID int64) (judge.Expected, error)
}

type Handler struct {
	logger *zap.Logger
	judge  Judge
}

func NewHandler(logger *zap.Logger, j Judge) *Handler {
	return &Handler{logger: logger, judge: j}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/run", h.run)
	r.Post("/submit", h.submit)
	r.Post("/materialize", h.materialize)
	r.Post("/reference", h.reference)
	r.Post("/datasets/{flag}/reload", h.reload)
}

const maxQueryLength = 64 << 10

type QueryRequest struct {
	UserID int64  `json:"user_id"`
	Engine string `json:"engine"`
	Query  string `json:"query"`
}

func (r QueryRequest) Validate() error {
	return validation.ValidateStruct(
		&r,
		validation.Field(&r.UserID, validation.Min(0)),
		validation.Field(&r.Query, validation.Required, validation.Length(1, maxQueryLength)),
	)
}

type MaterializeRequest struct {
	Engine string `json:"engine"`
}

func challengeID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "challengeID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("challenge id must be a positive integer")
	}
	return id, nil
}

// decode reads an optional JSON body into v.
func decode(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handler) attempt(w http.ResponseWriter, r *http.Request) (judge.Attempt, bool) {
	id, err := challengeID(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return judge.Attempt{}, false
	}
	var req QueryRequest
	if err := decode(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return judge.Attempt{}, false
	}
	if err := req.Validate(); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return judge.Attempt{}, false
	}
	return judge.Attempt{ChallengeID: id, UserID: req.UserID, Engine: req.Engine, Query: req.Query}, true
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	a, ok := h.attempt(w, r)
	if !ok {
		return
	}
	res, err := h.judge.Run(r.Context(), a)
	if err != nil {
		h.respondWithJudgeError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	a, ok := h.attempt(w, r)
	if !ok {
		return
	}
	v, err := h.judge.Submit(r.Context(), a)
	if err != nil {
		h.respondWithJudgeError(w, r, err)
		return
	}
	h.logger.Info(
		"submission judged",
		zap.Int64("challenge_id", a.ChallengeID),
		zap.Int64("user_id", a.UserID),
		zap.Stringer("status", v.SubmissionStatusID),
	)
	RespondWithJSON(w, http.StatusOK, v)
}

func (h *Handler) materialize(w http.ResponseWriter, r *http.Request) {
	id, err := challengeID(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req MaterializeRequest
	if err := decode(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reports, err := h.judge.Materialize(r.Context(), id, req.Engine)
	if err != nil {
		h.respondWithJudgeError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, reports)
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	id, err := challengeID(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	flag, err := schema.ParseFlag(chi.URLParam(r, "flag"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	reports, err := h.judge.Reload(r.Context(), id, flag)
	if err != nil {
		h.respondWithJudgeError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, reports)
}

func (h *Handler) reference(w http.ResponseWriter, r *http.Request) {
	id, err := challengeID(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	expected, err := h.judge.GenerateReference(r.Context(), id)
	if err != nil {
		h.respondWithJudgeError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, expected)
}
