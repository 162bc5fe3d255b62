package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/formrules/expression"
	"github.com/liamcoop/formrules/internal/config"
	"github.com/liamcoop/formrules/internal/logger"
	"github.com/liamcoop/formrules/internal/metrics"
	"github.com/liamcoop/formrules/oracle"
	"github.com/liamcoop/formrules/rules"
)

const maxBodyBytes = 1 << 20

// Options wires the server's collaborators. Every field is optional.
type Options struct {
	// Oracle answers SQL conditions during field evaluation
	Oracle rules.ConditionOracle

	// Database serves POST /api/v1/conditions/sql and the health check
	Database *oracle.PostgresEvaluator

	Metrics  metrics.Collector
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

type Server struct {
	engine   *rules.Engine
	oracle   rules.ConditionOracle
	database *oracle.PostgresEvaluator
	metrics  metrics.Collector
	gatherer prometheus.Gatherer
	log      *slog.Logger
	router   *chi.Mux

	// mode names the oracle backend in health responses
	mode string
}

func NewServer(opts Options) *Server {
	s := &Server{
		database: opts.Database,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		log:      opts.Logger,
	}
	if s.metrics == nil {
		s.metrics = metrics.Noop()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.mode = oracleMode(opts.Oracle)
	if opts.Oracle != nil {
		s.oracle = &observedOracle{next: opts.Oracle, metrics: s.metrics}
	}
	s.engine = &rules.Engine{Logger: s.log}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/documents/evaluate", s.handleDocuments)
		r.Post("/constraints/resolve", s.handleConstraints)
		r.Post("/expressions/evaluate", s.handleExpression)
		r.Post("/rules/validate", s.handleValidate)

		r.Post("/conditions/sql", s.handleSQLCondition)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs each request through slog and counts 4xx/5xx responses
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.HTTPStatus(status)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case status >= 500:
			s.log.Error("request failed", attrs...)
		case status >= 400:
			s.log.Warn("request rejected", attrs...)
		default:
			s.log.Debug("request served", attrs...)
		}
	})
}

func oracleMode(o rules.ConditionOracle) string {
	switch o.(type) {
	case nil:
		return "none"
	case *oracle.PostgresEvaluator:
		return "postgres"
	case *oracle.Client:
		return "remote"
	default:
		return "custom"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.database != nil {
		if err := s.database.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unhealthy",
				Oracle: s.mode,
				Error:  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Oracle: s.mode})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start := time.Now()

	var result rules.Result
	if s.oracle != nil && rules.HasSQLConditions(req.Rules) {
		result = s.engine.EvaluateWithOracle(r.Context(), s.oracle, req.ContextID, req.Rules, req.Fields, req.Values)
	} else {
		result = s.engine.Evaluate(req.Rules, req.Fields, req.Values)
	}

	elapsed := time.Since(start)
	s.metrics.ObserveEvaluation(metrics.KindFields, elapsed)
	s.metrics.ObserveCascade(result.Passes, result.Converged)

	id := uuid.NewString()
	if !result.Converged {
		s.log.Warn("rule cascade did not converge",
			"evaluation_id", id,
			"passes", result.Passes,
			"rules", len(req.Rules),
		)
	}

	respondJSON(w, http.StatusOK, EvaluateResponse{
		EvaluationID:   id,
		Result:         result,
		EvaluationTime: elapsed.String(),
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	var req DocumentsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start := time.Now()
	result := s.engine.EvaluateDocuments(req.Rules, req.Values)
	s.metrics.ObserveEvaluation(metrics.KindDocuments, time.Since(start))

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleConstraints(w http.ResponseWriter, r *http.Request) {
	var req ConstraintsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start := time.Now()
	result := s.engine.ResolveConstraints(req.Config, req.Values)
	s.metrics.ObserveEvaluation(metrics.KindConstraints, time.Since(start))

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleExpression(w http.ResponseWriter, r *http.Request) {
	var req ExpressionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start := time.Now()
	var resp ExpressionResponse
	if v, ok := expression.Evaluate(req.Expression, req.Values); ok {
		resp.Result = &v
	}
	s.metrics.ObserveEvaluation(metrics.KindExpression, time.Since(start))

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp := ValidateResponse{Valid: true, Errors: []string{}}
	if err := rules.ValidateRuleSet(req.Rules, req.Fields); err != nil {
		resp.Valid = false
		resp.Errors = errorList(err)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleSQLCondition is the oracle endpoint backed by the database. It runs
// caller-supplied SQL and must sit behind the deployment's auth layer.
func (s *Server) handleSQLCondition(w http.ResponseWriter, r *http.Request) {
	if s.database == nil {
		respondError(w, http.StatusServiceUnavailable, "no database configured", nil)
		return
	}

	var req oracle.Request
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := s.database.EvaluateCondition(r.Context(), req.SQLExpression, req.ContextID)
	switch {
	case errors.Is(err, oracle.ErrEmptyExpression), errors.Is(err, oracle.ErrMultipleStatements):
		respondError(w, http.StatusBadRequest, "invalid sql expression", err)
		return
	case err != nil:
		respondError(w, http.StatusUnprocessableEntity, "sql expression failed", err)
		return
	}

	respondJSON(w, http.StatusOK, oracle.Response{Result: result})
}

// observedOracle records metrics for every oracle call
type observedOracle struct {
	next    rules.ConditionOracle
	metrics metrics.Collector
}

func (o *observedOracle) EvaluateCondition(ctx context.Context, sqlExpression, contextID string) (bool, error) {
	start := time.Now()
	result, err := o.next.EvaluateCondition(ctx, sqlExpression, contextID)
	o.metrics.ObserveOracleCall(result, err, time.Since(start))
	return result, err
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// errorList flattens a joined error into one message per problem
func errorList(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	if err := logger.Setup(cfg.LoggerOptions()); err != nil {
		logger.Warn("logger setup degraded", "error", err)
	}

	collector, err := metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("failed to register metrics", "error", err)
	}
	if err := metrics.RegisterLogCounters(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("failed to register log counters", "error", err)
	}

	opts := Options{
		Metrics:  collector,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger.Logger,
	}

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := oracle.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to database", "error", err)
		}
		defer db.Close()

		opts.Database = oracle.NewPostgresEvaluator(db, cfg.StatementTimeout)
		opts.Oracle = opts.Database
	}
	if cfg.OracleURL != "" {
		opts.Oracle = oracle.NewClient(cfg.OracleURL, cfg.OracleTimeout)
	}

	server := NewServer(opts)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "oracle", server.mode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
