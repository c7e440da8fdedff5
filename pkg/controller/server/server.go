package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
)

type Server struct {
	mux *chi.Mux
}

type config struct {
	workFolder   string
	organization string
	project      string
}

type Option func(*config)

// WithWorkFolder sets the folder scanned by /api/local/scan when the request
// does not name one.
func WithWorkFolder(path string) Option {
	return func(cfg *config) {
		cfg.workFolder = path
	}
}

// WithAzureDevOps sets the default organization and project of /api/pipelines.
func WithAzureDevOps(organization, project string) Option {
	return func(cfg *config) {
		cfg.organization = organization
		cfg.project = project
	}
}

func safeWrite(w http.ResponseWriter, code int, body []byte) {
	w.WriteHeader(code)

	// nosemgrep: go.lang.security.audit.xss.no-direct-write-to-responsewriter.no-direct-write-to-responsewriter
	// Why: The response is JSON encoded by this package
	if _, err := w.Write(body); err != nil {
		logging.Default().Error("fail to write response", slog.Any("error", err))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logging.Default().Error("fail to encode response", slog.Any("error", err))
		safeWrite(w, http.StatusInternalServerError, []byte(`{"error":"failed to encode response","kind":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	safeWrite(w, code, body)
}

func New(uc interfaces.UseCase, options ...Option) *Server {
	cfg := &config{}
	for _, opt := range options {
		opt(cfg)
	}
	h := &handler{uc: uc, cfg: cfg}

	r := chi.NewRouter()
	r.Use(preProcess)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		safeWrite(w, http.StatusOK, []byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/repositories", h.getRepositories)
		r.Post("/repositories/refresh", h.refreshRepositories)
		r.Get("/pull-requests", h.getPullRequests)
		r.Post("/pull-requests/refresh", h.refreshPullRequests)
		r.Get("/pipelines", h.getPipelines)
		r.Post("/pipelines/refresh", h.refreshPipelines)

		r.Route("/match", func(r chi.Router) {
			r.Get("/pipelines", h.matchPipelines)
			r.Get("/pull-requests", h.matchPullRequests)
		})

		r.Route("/local", func(r chi.Router) {
			r.Post("/scan", h.scanLocal)
			r.Post("/cleanup", h.cleanupLocal)
		})
	})

	return &Server{
		mux: r,
	}
}

func (x *Server) Mux() *chi.Mux {
	return x.mux
}
