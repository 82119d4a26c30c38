package controllers

import (
	"errors"
	"net/http"

	"studentmarket/app/apperror"
	"studentmarket/app/drafts"
	"studentmarket/app/imaging"
	"studentmarket/app/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for form boundaries and headers around the file.
const multipartOverhead = 1 << 20

// DraftController handles the listing form: image uploads and publishing
type DraftController struct {
	composer *drafts.Composer
	maxBytes int64
	logger   *zap.Logger
}

// NewDraftController creates a new DraftController. maxBytes bounds a single upload.
func NewDraftController(composer *drafts.Composer, maxBytes int64, logger *zap.Logger) *DraftController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = imaging.DefaultMaxBytes
	}
	return &DraftController{composer: composer, maxBytes: maxBytes, logger: logger}
}

type imagesResponse struct {
	Images []string `json:"images"`
}

// Open starts a new draft
func (dc *DraftController) Open(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusCreated, dc.composer.Open())
}

// Upload attaches the multipart "image" file to the draft
func (dc *DraftController) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, dc.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(dc.maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendAppError(w, dc.logger, apperror.ValidationFailed("image", imaging.ErrTooLarge.Error()))
			return
		}
		sendAppError(w, dc.logger, apperror.ValidationFailed("image", "expected a multipart form: "+err.Error()))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		sendAppError(w, dc.logger, apperror.ValidationFailed("image", "image file is required"))
		return
	}
	defer file.Close()

	images, err := dc.composer.Upload(r.Context(), mux.Vars(r)["id"], file)
	if err != nil {
		sendAppError(w, dc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, imagesResponse{Images: images})
}

// Images lists the draft's attached images
func (dc *DraftController) Images(w http.ResponseWriter, r *http.Request) {
	images, err := dc.composer.Images(mux.Vars(r)["id"])
	if err != nil {
		sendAppError(w, dc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, imagesResponse{Images: images})
}

// Dismiss closes the draft and drops its images
func (dc *DraftController) Dismiss(w http.ResponseWriter, r *http.Request) {
	dc.composer.Dismiss(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

// Publish turns the draft into a listing
func (dc *DraftController) Publish(w http.ResponseWriter, r *http.Request) {
	var input models.ListingInput
	if err := decodeJSON(r, &input); err != nil {
		sendAppError(w, dc.logger, err)
		return
	}

	listing, err := dc.composer.Publish(r.Context(), mux.Vars(r)["id"], &input)
	if err != nil {
		sendAppError(w, dc.logger, err)
		return
	}
	sendJSON(w, http.StatusCreated, listing)
}
