package handler

import (
	"log/slog"
	"net/http"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/auth"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/service"
)

// photoFormField is the multipart field holding the uploaded file.
const photoFormField = "photo"

// PhotoHandler handles listing photo uploads.
type PhotoHandler struct {
	media   service.MediaService
	maxSize int64
	logger  *slog.Logger
}

// NewPhotoHandler creates a new PhotoHandler. maxSize bounds the request body.
func NewPhotoHandler(media service.MediaService, maxSize int64, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{
		media:   media,
		maxSize: maxSize,
		logger:  logger,
	}
}

// RegisterRoutes registers all photo routes with the provided mux.
//
// Routes:
// - POST /api/listings/{id}/photos -> Upload
func (h *PhotoHandler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("POST /api/listings/{id}/photos", protect(http.HandlerFunc(h.Upload)))
}

// Upload stores one photo for a listing owned by the calling account.
// Responds 201 with the photo, or 402 with the quota decision.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "PhotoHandler.Upload"

	listingID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Allow some slack for multipart framing on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.logger.Info("failed to parse multipart form", "error", err, "op", op)
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Upload must be a multipart form within the size limit"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(photoFormField)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "A photo file is required"))
		return
	}
	defer file.Close()

	actor := auth.GetActorFromRequest(r)
	uploaded, decision, err := h.media.UploadPhoto(r.Context(), actor, service.PhotoUpload{
		AccountID:   actor.ID,
		ListingID:   listingID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusPaymentRequired, newQuotaDeniedView(decision))
		return
	}

	writeJSON(w, http.StatusCreated, newPhotoView(*uploaded, decision))
}
