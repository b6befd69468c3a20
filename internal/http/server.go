package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"despesas/internal/core"
	applog "despesas/internal/log"
	"despesas/internal/metrics"
	"despesas/internal/middleware/auth"
	"despesas/internal/middleware/ratelimit"
	"despesas/internal/middleware/security"
	"despesas/internal/middleware/trace"
	"despesas/internal/services"
)

const readyTimeout = 2 * time.Second

// ExpenseService is what the expense and statement handlers need.
// *services.ExpenseService implements it.
type ExpenseService interface {
	CreateExpense(ctx context.Context, in services.CreateExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, in services.UpdateExpenseInput) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (core.Expense, error)
	SetStatus(ctx context.Context, id int64, status bool) (core.Expense, error)
	MonthStatement(ctx context.Context, year, month int) (core.MonthStatement, error)
}

// CatalogService is what the catalog handlers need.
// *services.CatalogService implements it.
type CatalogService interface {
	CreateCategory(ctx context.Context, name string) (core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CreatePaymentMethod(ctx context.Context, name string) (core.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id int64) error
	RecurrenceTypes() []core.RecurrenceType
}

// ReadinessChecker reports whether the store answers.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// Options wires the server. Expenses and Catalog are required; every other
// field may be left zero.
type Options struct {
	Addr           string
	RequestTimeout time.Duration
	Logger         *applog.Logger

	Expenses ExpenseService
	Catalog  CatalogService
	Ready    ReadinessChecker

	Metrics  *metrics.Metrics
	Limiter  *ratelimit.Limiter
	Verifier *auth.Verifier
	Detector *security.Detector
}

type Server struct {
	http.Server
	expenses ExpenseService
	catalog  CatalogService
	ready    ReadinessChecker
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter
	verifier *auth.Verifier
	detector *security.Detector
	timeout  time.Duration
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}
	detector := opts.Detector
	if detector == nil {
		detector = security.NewDetector()
	}

	s := &Server{
		expenses: opts.Expenses,
		catalog:  opts.Catalog,
		ready:    opts.Ready,
		metrics:  opts.Metrics,
		limiter:  opts.Limiter,
		verifier: opts.Verifier,
		detector: detector,
		timeout:  opts.RequestTimeout,
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.Handle("POST /api/expenses", s.api(s.handleCreateExpense))
	mux.Handle("GET /api/expenses", s.api(s.handleListExpenses))
	mux.Handle("GET /api/expenses/{id}", s.api(s.handleGetExpense))
	mux.Handle("PUT /api/expenses/{id}", s.api(s.handleUpdateExpense))
	mux.Handle("PATCH /api/expenses/{id}/status", s.api(s.handleSetStatus))
	mux.Handle("DELETE /api/expenses/{id}", s.api(s.handleDeleteExpense))
	mux.Handle("GET /api/statement", s.api(s.handleMonthStatement))

	mux.Handle("GET /api/categories", s.api(s.handleListCategories))
	mux.Handle("POST /api/categories", s.api(s.handleCreateCategory))
	mux.Handle("GET /api/categories/{id}", s.api(s.handleGetCategory))
	mux.Handle("DELETE /api/categories/{id}", s.api(s.handleDeleteCategory))
	mux.Handle("GET /api/payment-methods", s.api(s.handleListPaymentMethods))
	mux.Handle("POST /api/payment-methods", s.api(s.handleCreatePaymentMethod))
	mux.Handle("DELETE /api/payment-methods/{id}", s.api(s.handleDeletePaymentMethod))
	mux.Handle("GET /api/recurrence-types", s.api(s.handleRecurrenceTypes))

	var observer trace.Observer
	if s.metrics != nil {
		observer = s.metrics
	}
	tracer := trace.NewMiddleware(logger, detector.ExtractClientIP, observer)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           tracer.Middleware(headers.Middleware(detector.Middleware(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

// api wraps an /api handler with rate limiting, token verification and the
// per-request timeout, in that order.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	var next http.Handler = h
	if s.timeout > 0 {
		next = withTimeout(s.timeout, next)
	}
	next = s.verifier.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		UnauthorizedError(err.Error()).Write(w)
	})(next)
	if s.limiter != nil {
		next = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError("rate limit exceeded, try again later").Write(w)
		})(next)
	}
	return next
}

func withTimeout(d time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Shutdown stops the rate limiter cleanup and gracefully shuts down the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
