package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/filely/filely/pkg/share"
)

var uploadSize = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "upload_bytes",
	Help:    "Bytes uploaded in single request",
	Buckets: prometheus.ExponentialBucketsRange(1000, 100_000_000, 5),
})

func (a *FilelyAPI) Upload(w http.ResponseWriter, r *http.Request) {
	// Bound the whole request body before any parsing; the service checks
	// the declared part size again before touching the stores.
	r.Body = http.MaxBytesReader(w, r.Body, a.shares.MaxFileSize()+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			a.renderError(w, r, share.ErrTooLarge)
			return
		}
		a.renderError(w, r, share.ErrMalformedUpload)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		a.renderError(w, r, share.ErrNoFile)
		return
	}
	defer file.Close()

	expiryMinutes, err := strconv.Atoi(r.FormValue("expiryMinutes"))
	if err != nil {
		a.renderError(w, r, share.ErrInvalidExpiry)
		return
	}

	var maxDownloads int64
	if v := r.FormValue("maxDownloads"); v != "" {
		maxDownloads, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			a.renderError(w, r, share.ErrInvalidLimit)
			return
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		mtype, err := mimetype.DetectReader(file)
		if err == nil {
			contentType = mtype.String()
		} else {
			contentType = "application/octet-stream"
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			log.Error().Err(err).Msg("Unable to rewind upload after sniffing")
			a.renderError(w, r, err)
			return
		}
	}

	result, err := a.shares.Upload(r.Context(), share.UploadRequest{
		FileName:      header.Filename,
		MimeType:      contentType,
		SizeBytes:     header.Size,
		Body:          file,
		ExpiryMinutes: expiryMinutes,
		MaxDownloads:  maxDownloads,
	})
	if err != nil {
		a.renderError(w, r, err)
		return
	}

	uploadSize.Observe(float64(header.Size))

	render.JSON(w, r, render.M{
		"success":   true,
		"code":      result.Code,
		"expiresIn": result.ExpiresIn,
	})
}

// Stats reports the platform-wide upload total.
func (a *FilelyAPI) Stats(w http.ResponseWriter, r *http.Request) {
	total, err := a.storageServices.Database.TotalUploads(r.Context())
	if err != nil {
		a.renderError(w, r, err)
		return
	}

	render.JSON(w, r, render.M{
		"success":      true,
		"totalUploads": total,
	})
}
