package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"github.com/filely/filely/pkg/config"
	"github.com/filely/filely/pkg/share"
	"github.com/filely/filely/pkg/storage"
)

type FilelyAPI struct {
	config          config.FilelyConfig
	storageServices *storage.Services
	shares          *share.Service
}

func NewFilelyAPI(c config.FilelyConfig, services *storage.Services, shares *share.Service) *FilelyAPI {
	return &FilelyAPI{
		config:          c,
		storageServices: services,
		shares:          shares,
	}
}

// renderError maps the share service's error taxonomy onto status codes.
// Anything outside the taxonomy is a store failure: logged server-side,
// reported to the client as a generic internal error.
func (a *FilelyAPI) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, share.ErrNoFile),
		errors.Is(err, share.ErrTooLarge),
		errors.Is(err, share.ErrInvalidExpiry),
		errors.Is(err, share.ErrInvalidLimit),
		errors.Is(err, share.ErrMalformedUpload):
		status = http.StatusBadRequest
	case errors.Is(err, share.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, share.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, share.ErrLimitReached):
		status = http.StatusForbidden
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, render.M{"success": false, "error": "Internal server error"})
		return
	}

	render.Status(r, status)
	render.JSON(w, r, render.M{"success": false, "error": err.Error()})
}

func RunAPI(ctx context.Context, conf config.API, mux *chi.Mux) {
	log.Debug().Int("port", conf.Port).Msg("Starting API")

	server := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", conf.Port),
		Handler: mux,
	}

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("Error serving API")
			serverStopCtx()
		}
	}()

	go func() {
		<-ctx.Done()

		log.Debug().Msg("Stopping API")

		shutdownCtx, cancel := context.WithTimeout(serverCtx, 30*time.Second)
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Error().Err(err).Msg("Error shutting down API")
		}

		cancel()
		serverStopCtx()
	}()

	<-serverCtx.Done()

	log.Debug().Msg("API server stopped")
}
