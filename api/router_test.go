package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elmanelman/sql-judge/engine"
	"github.com/elmanelman/sql-judge/judge"
	"github.com/elmanelman/sql-judge/rewrite"
	"github.com/elmanelman/sql-judge/schema"
)

type fakeJudge struct {
	attempts []judge.Attempt
	flags    []schema.Flag
	err      error
}

func (f *fakeJudge) Run(_ context.Context, a judge.Attempt) (*engine.Result, error) {
	f.attempts = append(f.attempts, a)
	if f.err != nil {
		return nil, f.err
	}
	return &engine.Result{
		Engine:    engine.SQLite,
		ResultSet: engine.ResultSet{Columns: []string{"n"}, Rows: [][]interface{}{{int64(3)}}},
		RowCount:  1,
	}, nil
}

func (f *fakeJudge) Submit(_ context.Context, a judge.Attempt) (judge.Verdict, error) {
	f.attempts = append(f.attempts, a)
	if f.err != nil {
		return judge.Verdict{}, f.err
	}
	return judge.Verdict{SubmissionStatusID: judge.Accepted, Correct: true}, nil
}

func (f *fakeJudge) Materialize(_ context.Context, id int64, e string) ([]*judge.Report, error) {
	f.attempts = append(f.attempts, judge.Attempt{ChallengeID: id, Engine: e})
	if f.err != nil {
		return nil, f.err
	}
	return []*judge.Report{{Engine: engine.SQLite, Tables: []schema.Table{{Name: "employees", Physical: "c7_employees"}}}}, nil
}

func (f *fakeJudge) Reload(_ context.Context, id int64, flag schema.Flag) ([]*judge.Report, error) {
	f.flags = append(f.flags, flag)
	return []*judge.Report{}, f.err
}

func (f *fakeJudge) GenerateReference(_ context.Context, id int64) (judge.Expected, error) {
	if f.err != nil {
		return judge.Expected{}, f.err
	}
	return judge.Expected{Columns: []string{"id"}, Rows: [][]interface{}{{int64(1)}}}, nil
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	engine.NewExecutor(reg)
	router := NewRouter(zap.NewNop(), &fakeJudge{}, reg)

	rec := serve(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = serve(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunAndSubmit(t *testing.T) {
	j := &fakeJudge{}
	router := NewRouter(zap.NewNop(), j, nil)

	rec := serve(t, router, http.MethodPost, "/api/v1/challenges/7/run", `{"user_id": 42, "query": "SELECT COUNT(*) FROM employees"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []interface{}{"n"}, res["columns"])
	assert.Equal(t, "sqlite", res["engine"])

	rec = serve(t, router, http.MethodPost, "/api/v1/challenges/7/submit", `{"user_id": 42, "engine": "sqlite", "query": "SELECT 1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status": "accepted", "correct": true}`, rec.Body.String())

	assert.Equal(t, []judge.Attempt{
		{ChallengeID: 7, UserID: 42, Query: "SELECT COUNT(*) FROM employees"},
		{ChallengeID: 7, UserID: 42, Engine: "sqlite", Query: "SELECT 1"},
	}, j.attempts)
}

func TestBadRequests(t *testing.T) {
	router := NewRouter(zap.NewNop(), &fakeJudge{}, nil)

	cases := []struct {
		name string
		path string
		body string
	}{
		{"bad id", "/api/v1/challenges/seven/run", `{"query": "SELECT 1"}`},
		{"negative id", "/api/v1/challenges/-1/submit", `{"query": "SELECT 1"}`},
		{"broken body", "/api/v1/challenges/7/run", `{"query":`},
		{"missing query", "/api/v1/challenges/7/submit", `{"user_id": 1}`},
		{"negative user", "/api/v1/challenges/7/submit", `{"user_id": -1, "query": "SELECT 1"}`},
		{"unknown flag", "/api/v1/challenges/7/datasets/final/reload", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, router, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestJudgeErrorsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("challenge 7: %w", judge.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: %q", engine.ErrUnknownEngine, "db2"), http.StatusBadRequest},
		{fmt.Errorf("%w: mysql", judge.ErrUnsupportedEngine), http.StatusBadRequest},
		{rewrite.ErrUnknownTable, http.StatusUnprocessableEntity},
		{fmt.Errorf("table %q: %w", "v", schema.ErrNotCreateTable), http.StatusUnprocessableEntity},
		{fmt.Errorf("challenge 7: %w", judge.ErrNoReference), http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		router := NewRouter(zap.NewNop(), &fakeJudge{err: tc.err}, nil)
		rec := serve(t, router, http.MethodPost, "/api/v1/challenges/7/submit", `{"query": "SELECT 1"}`)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestStatementErrorCarriesIndex(t *testing.T) {
	err := fmt.Errorf("reference query: %w", &engine.StatementError{Index: 2, Statement: "SELECT x", Err: errors.New("no such column: x")})
	router := NewRouter(zap.NewNop(), &fakeJudge{err: err}, nil)

	rec := serve(t, router, http.MethodPost, "/api/v1/challenges/7/reference", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.StatementIndex)
	assert.Equal(t, 2, *resp.StatementIndex)
	assert.Contains(t, resp.Error, "no such column")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	router := NewRouter(zap.NewNop(), &fakeJudge{err: errors.New("dial tcp 10.0.0.5:5432: refused")}, nil)
	rec := serve(t, router, http.MethodPost, "/api/v1/challenges/7/run", `{"query": "SELECT 1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestMaterializeReferenceAndReload(t *testing.T) {
	j := &fakeJudge{}
	router := NewRouter(zap.NewNop(), j, nil)

	rec := serve(t, router, http.MethodPost, "/api/v1/challenges/7/materialize", `{"engine": "sqlite"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reports []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "sqlite", reports[0]["engine"])

	rec = serve(t, router, http.MethodPost, "/api/v1/challenges/7/materialize", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []judge.Attempt{{ChallengeID: 7, Engine: "sqlite"}, {ChallengeID: 7}}, j.attempts)

	rec = serve(t, router, http.MethodPost, "/api/v1/challenges/7/reference", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"columns": ["id"], "rows": [[1]]}`, rec.Body.String())

	rec = serve(t, router, http.MethodPost, "/api/v1/challenges/7/datasets/grading/reload", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = serve(t, router, http.MethodPost, "/api/v1/challenges/7/datasets/1/reload", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []schema.Flag{schema.Grading, schema.Practice}, j.flags)
}
