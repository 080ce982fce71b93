package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/http/apidocs"
	"github.com/kycdesk/kycdesk/internal/service/auth"
	"github.com/kycdesk/kycdesk/internal/service/dashboard"
	"github.com/kycdesk/kycdesk/internal/service/kyc"
	"github.com/kycdesk/kycdesk/internal/storage"
	"github.com/kycdesk/kycdesk/internal/ws"
)

const (
	healthCheckTimeout = 2 * time.Second
	msgRouteNotFound   = "Route not found"
	apiDocsPrefix      = "/api-docs"
)

// Options tunes the router's middleware.
type Options struct {
	RateLimitMax       int
	RateLimitWindow    time.Duration
	UploadMaxBytes     int64
	CORSAllowedOrigins []string
	APIDocs            bool
}

// Services groups the application services exposed over HTTP.
type Services struct {
	Auth      auth.Service
	KYC       kyc.Service
	Dashboard dashboard.Service
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux       chi.Router
	logger    *slog.Logger
	auth      auth.Service
	kyc       kyc.Service
	dashboard dashboard.Service
	documents storage.Store
	hub       *ws.Hub
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	opts      Options
	dbHealth  func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      prometheus.Counter
	submissionsTotal   *prometheus.CounterVec
	decisionsTotal     *prometheus.CounterVec
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, svcs Services, documents storage.Store, hub *ws.Hub, limiter RateLimiter, opts Options, dbHealth func(context.Context) error) *Router {
	r := &Router{
		logger:    logger,
		auth:      svcs.Auth,
		kyc:       svcs.KYC,
		dashboard: svcs.Dashboard,
		documents: documents,
		hub:       hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		opts:     opts,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.opts.UploadMaxBytes <= 0 {
		r.opts.UploadMaxBytes = 10 << 20
	}
	if len(r.opts.CORSAllowedOrigins) == 0 {
		r.opts.CORSAllowedOrigins = []string{"*"}
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(r.audit)
	mux.Use(r.recoverer)
	mux.Use(securityHeaders)
	mux.Use(r.rateLimit)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: r.opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	mux.NotFound(r.notFound)
	mux.MethodNotAllowed(r.notFound)

	mux.Get("/", r.handleRoot)
	mux.Get("/healthz", r.handleHealthz)
	mux.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if r.documents != nil {
		mux.Method(http.MethodGet, storage.URLPrefix+"*", http.StripPrefix(storage.URLPrefix, r.documents.Handler()))
	}

	if r.opts.APIDocs {
		mux.Get(apiDocsPrefix, func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, apiDocsPrefix+"/", http.StatusMovedPermanently)
		})
		mux.Method(http.MethodGet, apiDocsPrefix+"/*", apiDocsHandler())
	}

	mux.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", r.handleRegister)
		api.Post("/auth/login", r.handleLogin)

		api.Group(func(authed chi.Router) {
			authed.Use(r.requireAuth)
			authed.Post("/kyc", r.handleSubmitKYC)
			authed.Get("/kyc/status", r.handleKYCStatus)

			authed.Group(func(admin chi.Router) {
				admin.Use(r.requireRole(domain.RoleAdmin))
				admin.Get("/kyc", r.handleListKYC)
				admin.Patch("/kyc/{id}", r.handleDecideKYC)
				admin.Get("/admin/dashboard", r.handleDashboard)
				admin.Get("/admin/events", r.handleEvents)
			})
		})
	})
	r.mux = mux
}

func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("API is working"))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func apiDocsHandler() http.Handler {
	files := http.StripPrefix(apiDocsPrefix+"/", http.FileServer(http.FS(apidocs.FS)))
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Security-Policy", apidocs.ContentSecurityPolicy)
		files.ServeHTTP(w, req)
	})
}

func (r *Router) notFound(w http.ResponseWriter, req *http.Request) {
	writeMessage(w, http.StatusNotFound, msgRouteNotFound)
}
