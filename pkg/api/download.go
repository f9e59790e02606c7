package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "redemptions_total",
	Help: "Redemption attempts by outcome",
}, []string{"outcome"})

func (a *FilelyAPI) Download(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	redemption, err := a.shares.Redeem(r.Context(), code)
	if err != nil {
		redemptions.WithLabelValues("rejected").Inc()
		a.renderError(w, r, err)
		return
	}

	redemptions.WithLabelValues("ok").Inc()

	render.JSON(w, r, render.M{
		"success":     true,
		"fileName":    redemption.FileName,
		"downloadUrl": redemption.DownloadURL,
	})
}
