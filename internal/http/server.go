package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"penny/internal/auth"
	"penny/internal/cache"
	"penny/internal/config"
	"penny/internal/core"
	"penny/internal/log"
	"penny/internal/middleware/ratelimit"
	"penny/internal/middleware/security"
	"penny/internal/middleware/trace"
	"penny/internal/storage"
	appweb "penny/web"
)

// StatsPublisher requests an asynchronous monthly stats refresh. The server
// runs without one when AMQP is not configured.
type StatsPublisher interface {
	PublishStatsRefresh(ctx context.Context, userID, month string) error
}

type Server struct {
	http.Server

	repo      *storage.SQLiteRepository
	tokens    *auth.TokenIssuer
	publisher StatsPublisher
	logger    *log.Logger

	templates     *template.Template
	secureCookies bool

	rateLimiter   *ratelimit.Limiter
	insightsCache *cache.LRU[core.MonthlyInsights]

	shutdownOnce sync.Once
}

func NewServer(cfg *config.Config, repo *storage.SQLiteRepository, tokens *auth.TokenIssuer, publisher StatsPublisher, logger *log.Logger) (*Server, error) {
	s := &Server{
		repo:          repo,
		tokens:        tokens,
		publisher:     publisher,
		logger:        logger.WithComponent(log.ComponentHTTP),
		secureCookies: cfg.SecureCookies,
		rateLimiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		insightsCache: cache.NewLRU[core.MonthlyInsights](200, 5*time.Minute),
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Auth pages and actions. Signup and login POSTs are rate limited to
	// slow down credential stuffing.
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.Handle("POST /login", s.withRateLimit(s.handleLogin))
	mux.HandleFunc("GET /signup", s.handleSignupPage)
	mux.Handle("POST /signup", s.withRateLimit(s.handleSignup))
	mux.HandleFunc("POST /logout", s.handleLogout)

	// Everything below requires a session cookie.
	mux.Handle("GET /{$}", s.requireAuth(s.handleDashboard))
	mux.Handle("GET /ui/insights", s.requireAuth(s.handleInsightsPartial))
	mux.Handle("GET /ui/history", s.requireAuth(s.handleHistoryPartial))

	mux.Handle("GET /budget", s.requireAuth(s.handleBudgetPage))
	mux.Handle("POST /categories", s.requireAuth(s.handleCreateCategory))
	mux.Handle("POST /categories/{id}/budget", s.requireAuth(s.handleUpdateBudget))
	mux.Handle("POST /categories/{id}/rename", s.requireAuth(s.handleRenameCategory))
	mux.Handle("POST /categories/{id}/delete", s.requireAuth(s.handleDeleteCategory))

	mux.Handle("GET /transactions", s.requireAuth(s.handleTransactionsPage))
	mux.Handle("GET /transactions/new", s.requireAuth(s.handleTransactionForm))
	mux.Handle("POST /transactions", s.requireAuth(s.handleCreateTransaction))
	mux.Handle("GET /transactions/{id}/edit", s.requireAuth(s.handleTransactionForm))
	mux.Handle("POST /transactions/{id}", s.requireAuth(s.handleUpdateTransaction))
	mux.Handle("POST /transactions/{id}/delete", s.requireAuth(s.handleDeleteTransaction))

	mux.Handle("GET /settings", s.requireAuth(s.handleSettingsPage))
	mux.Handle("POST /settings", s.requireAuth(s.handleUpdateSettings))
	mux.Handle("POST /settings/password", s.requireAuth(s.handleChangePassword))
	mux.Handle("POST /settings/delete", s.requireAuth(s.handleDeleteAccount))

	mux.Handle("GET /export/summary.csv", s.requireAuth(s.handleExportSummary))
	mux.Handle("GET /export/transactions.csv", s.requireAuth(s.handleExportTransactions))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(clientIP)

	s.Server = http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      tracer.Handler(headers.Handler(mux)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// withRateLimit applies the per-IP limiter before the handler runs.
func (s *Server) withRateLimit(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.Allow(ip) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, ip,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	})
}

// Shutdown stops the HTTP server and background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.insightsCache.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.repo.ListUserIDs(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatMoney":  core.FormatMoney,
		"formatAmount": core.FormatAmount,
		"fromCanonical": func(m core.Money, code string) float64 {
			return core.FromCanonical(m.Amount(), code)
		},
		"monthLabel": core.MonthLabel,
		"symbol":     core.CurrencySymbol,
	}
}

func (s *Server) insightsKey(userID, month string) string {
	return userID + "|" + month
}

// invalidateInsights drops cached insights after a write. An empty month
// purges every cached month of the user, used when budgets change.
func (s *Server) invalidateInsights(userID, month string) {
	if month == "" {
		s.insightsCache.DeletePrefix(userID + "|")
		return
	}
	s.insightsCache.Delete(s.insightsKey(userID, month))
}

// requestStatsRefresh asks the worker to recompute cached totals. Failures
// are logged and swallowed, the monthly_stats cache is advisory.
func (s *Server) requestStatsRefresh(ctx context.Context, userID, month string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStatsRefresh(ctx, userID, month); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish stats refresh",
			log.FieldUserID, userID,
			log.FieldMonth, month,
			log.FieldError, err)
	}
}
