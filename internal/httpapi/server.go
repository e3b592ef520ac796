package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/domainwatch/internal/domain"
	apimw "github.com/hamed0406/domainwatch/internal/httpapi/middleware"
	"github.com/hamed0406/domainwatch/internal/monitor"
	"github.com/hamed0406/domainwatch/internal/repo"
	"github.com/hamed0406/domainwatch/internal/scheduler"
)

// Sweeper runs one pass over every endpoint. *scheduler.Sweeper satisfies it.
type Sweeper interface {
	RunOnce(ctx context.Context) scheduler.SweepStats
}

type Server struct {
	Logger  *zap.Logger
	Service *monitor.Service
	Store   repo.EndpointStore
	Sweeper Sweeper
}

func NewServer(l *zap.Logger, svc *monitor.Service, sw Sweeper) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Service: svc, Store: svc.Store, Sweeper: sw}
}

// Router wires the public read endpoints and the admin write endpoints.
// An empty origins list allows any origin.
func (s *Server) Router(keys apimw.Keys, origins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)
	r.Use(corsHandler(origins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(publicRPM, publicBurst))
			r.Use(apimw.RequireAny(keys))
			r.Get("/endpoints", s.handleList)
			r.Get("/endpoints/{domain}", s.handleGet)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(adminRPM, adminBurst))
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/endpoints", s.handleRegister)
			r.Delete("/endpoints/{domain}", s.handleDelete)
			r.Post("/sweep", s.handleSweep)
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

type registerPayload struct {
	Domain       string `json:"domain"`
	SubscriberID string `json:"subscriber_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var p registerPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if strings.TrimSpace(p.SubscriberID) == "" {
		writeError(w, http.StatusBadRequest, "subscriber_id is required")
		return
	}

	ep, created, err := s.Service.Register(r.Context(), p.Domain, strings.TrimSpace(p.SubscriberID))
	switch {
	case errors.Is(err, domain.ErrInvalidDomain):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.Logger.Warn("register_error", zap.String("domain", p.Domain), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not register")
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{"endpoint": ep, "created": created})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		eps []domain.Endpoint
		err error
	)
	if sub := r.URL.Query().Get("subscriber_id"); sub != "" {
		eps, err = s.Store.ListBySubscriber(r.Context(), sub)
	} else {
		eps, err = s.Store.List(r.Context())
	}
	if err != nil {
		s.Logger.Warn("list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if eps == nil {
		eps = []domain.Endpoint{}
	}
	writeJSON(w, http.StatusOK, eps)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")
	ep, err := s.Store.Get(r.Context(), name)
	if err != nil {
		s.Logger.Warn("get_error", zap.String("domain", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	if ep == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")
	err := s.Store.Delete(r.Context(), name)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		s.Logger.Warn("delete_error", zap.String("domain", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete error")
	default:
		s.Logger.Info("endpoint_removed", zap.String("domain", name), zap.String("via", "api"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.Sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "sweeper not running")
		return
	}
	st := s.Sweeper.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
