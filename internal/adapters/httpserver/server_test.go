package httpserver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/adapters/httpserver"
	"github.com/mikey/payment-tracker/internal/core"
)

type stubRunner struct {
	summary *core.RunSummary
	err     error
	runs    int
}

func (r *stubRunner) Run(ctx context.Context) (*core.RunSummary, error) {
	r.runs++
	if r.err != nil {
		return nil, r.err
	}
	return r.summary, nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv := httpserver.NewServer(&stubRunner{}, zap.NewNop(), "127.0.0.1:0", 30*time.Second, 10*time.Minute, true)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "payment-tracker", body["service"])
}

func TestTrigger_TestFlagSkipsRun(t *testing.T) {
	runner := &stubRunner{}
	srv := httpserver.NewServer(runner, zap.NewNop(), "127.0.0.1:0", 30*time.Second, 10*time.Minute, true)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"test": true}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "Payment tracker is running", body["message"])
	assert.Equal(t, true, body["config_loaded"])
	assert.Equal(t, 0, runner.runs)
}

func TestTrigger_RunsBatch(t *testing.T) {
	runner := &stubRunner{
		summary: &core.RunSummary{
			CandidateEmails:   3,
			PaymentsProcessed: 2,
			DatabaseResult:    core.WriteResult{Created: 2},
			Services:          []string{"Wise"},
			Currencies:        []string{"USD"},
			TotalAmount:       decimal.RequireFromString("30.50"),
		},
	}
	srv := httpserver.NewServer(runner, zap.NewNop(), "127.0.0.1:0", 30*time.Second, 10*time.Minute, true)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.runs)

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(2), body["payments_processed"])
	assert.NotContains(t, body, "message")

	dbResult, ok := body["database_result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), dbResult["created"])

	summary, ok := body["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"Wise"}, summary["services"])
	assert.Equal(t, []interface{}{"USD"}, summary["currencies"])
	assert.Equal(t, "30.50", summary["total_amount"])
}

func TestTrigger_NoCandidates(t *testing.T) {
	runner := &stubRunner{
		summary: &core.RunSummary{
			TotalAmount: decimal.Zero,
			Services:    []string{},
			Currencies:  []string{},
		},
	}
	srv := httpserver.NewServer(runner, zap.NewNop(), "127.0.0.1:0", 30*time.Second, 10*time.Minute, true)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "No candidate emails found", body["message"])
}

func TestTrigger_RunFailure(t *testing.T) {
	runner := &stubRunner{err: fmt.Errorf("failed to fetch candidate emails: mailbox unavailable")}
	srv := httpserver.NewServer(runner, zap.NewNop(), "127.0.0.1:0", 30*time.Second, 10*time.Minute, false)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["message"], "mailbox unavailable")
}

func TestTrigger_UnknownPath(t *testing.T) {
	runner := &stubRunner{}
	srv := httpserver.NewServer(runner, zap.NewNop(), "127.0.0.1:0", 30*time.Second, 10*time.Minute, true)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, runner.runs)
}

func TestTrigger_GarbageBodyStillRuns(t *testing.T) {
	runner := &stubRunner{
		summary: &core.RunSummary{CandidateEmails: 1, TotalAmount: decimal.Zero},
	}
	srv := httpserver.NewServer(runner, zap.NewNop(), "127.0.0.1:0", 30*time.Second, 10*time.Minute, true)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.runs)
}
