package main

import (
	"net/http"
	"time"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/metrics/export/prometheus"
	"github.com/MrEthical07/goMFA/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// newRouter mounts the MFA endpoints. Routes under the guard need the final
// credential as a bearer token. CORS is enabled only when origins is not
// empty.
func newRouter(engine *goMFA.Engine, logger *zap.Logger, origins []string) http.Handler {
	h := &handlers{engine: engine, log: logger.Named("http")}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(h.log))
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", prometheus.NewCollector(engine).Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/login/code", h.loginCode)
		r.Get("/mfa/config", h.mfaConfig)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(engine))

			r.Get("/mfa/user-active-methods", h.activeMethods)
			r.Post("/mfa/change-primary-method", h.changePrimary)
			r.Post("/code/request", h.requestCode)
			r.Post("/{method}/activate", h.activate)
			r.Post("/{method}/activate/confirm", h.confirm)
			r.Post("/{method}/deactivate", h.deactivate)
			r.Post("/{method}/codes/regenerate", h.regenerate)
		})
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
