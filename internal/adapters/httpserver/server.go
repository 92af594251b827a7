package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/core"
)

// BatchRunner runs one extraction batch to completion.
type BatchRunner interface {
	Run(ctx context.Context) (*core.RunSummary, error)
}

// Server exposes the batch trigger and liveness endpoints. A trigger request
// runs one batch synchronously and returns its summary; schedulers (Cloud
// Scheduler, cron) just POST to it.
type Server struct {
	runner       BatchRunner
	logger       *zap.Logger
	listenAddr   string
	readTimeout  time.Duration
	writeTimeout time.Duration
	configLoaded bool
	httpServer   *http.Server
}

// NewServer creates a new trigger server. The write timeout bounds a full
// synchronous batch run, so it should be generous.
func NewServer(runner BatchRunner, logger *zap.Logger, listenAddr string,
	readTimeout, writeTimeout time.Duration, configLoaded bool) *Server {
	return &Server{
		runner:       runner,
		logger:       logger,
		listenAddr:   listenAddr,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		configLoaded: configLoaded,
	}
}

type triggerRequest struct {
	Test bool `json:"test"`
}

type testResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ConfigLoaded bool   `json:"config_loaded"`
}

type runSummary struct {
	Services    []string        `json:"services"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currencies  []string        `json:"currencies"`
}

type runResponse struct {
	Status            string           `json:"status"`
	Message           string           `json:"message,omitempty"`
	PaymentsProcessed int              `json:"payments_processed"`
	DatabaseResult    core.WriteResult `json:"database_result"`
	Summary           runSummary       `json:"summary"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Handler returns the HTTP handler; exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleTrigger)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var req triggerRequest
	if r.Body != nil {
		// The body is optional; a missing or empty body means a real run.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.logger.Debug("Ignoring unparseable trigger body", zap.Error(err))
		}
	}

	if req.Test {
		s.logger.Info("Test request received")
		writeJSON(w, http.StatusOK, testResponse{
			Status:       "healthy",
			Message:      "Payment tracker is running",
			ConfigLoaded: s.configLoaded,
		})
		return
	}

	summary, err := s.runner.Run(r.Context())
	if err != nil {
		s.logger.Error("Batch run failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Status:  "error",
			Message: err.Error(),
		})
		return
	}

	resp := runResponse{
		Status:            "success",
		PaymentsProcessed: summary.PaymentsProcessed,
		DatabaseResult:    summary.DatabaseResult,
		Summary: runSummary{
			Services:    summary.Services,
			TotalAmount: summary.TotalAmount,
			Currencies:  summary.Currencies,
		},
	}
	if summary.CandidateEmails == 0 {
		resp.Message = "No candidate emails found"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: "payment-tracker",
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start starts the HTTP server in a goroutine
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	s.logger.Info("HTTP server starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
