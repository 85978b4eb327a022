package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/auth"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/service"
)

// ContentHandler handles content creation, moderation and channel feeds.
type ContentHandler struct {
	content service.ContentService
	logger  *slog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(content service.ContentService, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		content: content,
		logger:  logger,
	}
}

// RegisterRoutes registers all content routes with the provided mux.
// Reads of published content are public; everything else goes through
// protect.
//
// Routes:
// - POST   /api/accounts/{id}/events         -> Create
// - GET    /api/accounts/{id}/events         -> ListAccount
// - GET    /api/content/{id}                 -> Show
// - POST   /api/content/{id}/transitions     -> Transition
// - DELETE /api/content/{id}                 -> Delete
// - GET    /api/channels/{channel}/content   -> Channel
func (h *ContentHandler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("POST /api/accounts/{id}/events", protect(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/accounts/{id}/events", protect(http.HandlerFunc(h.ListAccount)))
	mux.HandleFunc("GET /api/content/{id}", h.Show)
	mux.Handle("POST /api/content/{id}/transitions", protect(http.HandlerFunc(h.Transition)))
	mux.Handle("DELETE /api/content/{id}", protect(http.HandlerFunc(h.Delete)))
	mux.HandleFunc("GET /api/channels/{channel}/content", h.Channel)
}

// =============================================================================
// POST /api/accounts/{id}/events
// =============================================================================

// Create reserves an event slot and stores the event as a draft.
// Responds 201 with the item, or 402 with the quota decision.
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "ContentHandler.Create"

	accountID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var draft domain.ContentDraft
	if err := decodeJSON(w, r, op, &draft); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	item, decision, err := h.content.CreateContentWithDistribution(r.Context(), auth.GetActorFromRequest(r), accountID, draft)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusPaymentRequired, newQuotaDeniedView(decision))
		return
	}

	writeJSON(w, http.StatusCreated, CreatedContentView{
		Content: newContentView(*item),
		Quota:   newDecisionView(decision),
	})
}

// ListAccount lists an account's content, newest first.
func (h *ContentHandler) ListAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items, err := h.content.ListAccount(r.Context(), auth.GetActorFromRequest(r), accountID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newContentViews(items))
}

// Show returns one content item.
func (h *ContentHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	item, err := h.content.Get(r.Context(), auth.GetActorFromRequest(r), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newContentView(*item))
}

// =============================================================================
// POST /api/content/{id}/transitions
// =============================================================================

// TransitionRequest is the body of POST /api/content/{id}/transitions.
type TransitionRequest struct {
	State string `json:"state"`
}

// Transition moves an item to another moderation state.
func (h *ContentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	const op = "ContentHandler.Transition"

	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req TransitionRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	item, err := h.content.TransitionModeration(r.Context(), id, domain.ModerationState(req.State), auth.GetActorFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newContentView(*item))
}

// Delete removes an item. The quota slot it used is not refunded.
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.content.Delete(r.Context(), auth.GetActorFromRequest(r), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// GET /api/channels/{channel}/content
// =============================================================================

// Channel lists published content entitled to a channel, soonest first.
// The optional limit query parameter is capped by the service.
func (h *ContentHandler) Channel(w http.ResponseWriter, r *http.Request) {
	const op = "ContentHandler.Channel"

	channel, err := domain.ParseChannel(r.PathValue("channel"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "limit must be a positive integer"))
			return
		}
	}

	items, err := h.content.ListChannel(r.Context(), channel, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newContentViews(items))
}
