package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filely/filely/pkg/config"
)

func CreateMux(c config.FilelyConfig, apiFunctions *FilelyAPI) *chi.Mux {
	r := chi.NewRouter()
	r.Use(RequestLogger)
	r.Use(PrometheusMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTION"},
		AllowedHeaders:   []string{"User-Agent", "Content-Type", "Accept", "Accept-Encoding", "Accept-Language", "Cache-Control", "Connection", "DNT", "Host", "Origin", "Pragma", "Referer"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		render.PlainText(w, req, "Filely backend is running")
	})
	r.Get("/healthz", apiFunctions.Healthcheck)

	if c.Prometheus.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	api := chi.NewRouter()
	api.Post("/upload", apiFunctions.Upload)
	api.Get("/upload/stats", apiFunctions.Stats)
	api.Get("/download/{code}", apiFunctions.Download)

	r.Mount("/api", api)

	return r
}
