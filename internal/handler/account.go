// Package handler contains the HTTP handlers of the quota and distribution API.
//
// This file implements plan catalog and account quota handlers.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/auth"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/service"
)

// AccountHandler handles plan and quota requests.
type AccountHandler struct {
	accounts service.AccountService
	content  service.ContentService
	logger   *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts service.AccountService, content service.ContentService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		content:  content,
		logger:   logger,
	}
}

// RegisterRoutes registers all account routes with the provided mux.
// Every route except the plan catalog goes through protect.
//
// Routes:
// - GET  /api/plans                -> Plans
// - POST /api/accounts             -> Register (moderator)
// - GET  /api/accounts/{id}/quota  -> Quota
// - GET  /api/accounts/{id}/usage  -> Usage
// - PUT  /api/accounts/{id}/plan   -> ChangePlan (moderator)
func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/plans", h.Plans)
	mux.Handle("POST /api/accounts", protect(http.HandlerFunc(h.Register)))
	mux.Handle("GET /api/accounts/{id}/quota", protect(http.HandlerFunc(h.Quota)))
	mux.Handle("GET /api/accounts/{id}/usage", protect(http.HandlerFunc(h.Usage)))
	mux.Handle("PUT /api/accounts/{id}/plan", protect(http.HandlerFunc(h.ChangePlan)))
}

// Plans lists the plan catalog.
func (h *AccountHandler) Plans(w http.ResponseWriter, r *http.Request) {
	plans := domain.Plans()
	out := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		out = append(out, newPlanView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// RegisterRequest is the body of POST /api/accounts.
type RegisterRequest struct {
	ID   uuid.UUID `json:"id"`
	Plan string    `json:"plan"`
}

// Register creates an account on a plan. The account's usage periods are
// anchored on the registration date.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "AccountHandler.Register"

	actor := auth.GetActorFromRequest(r)
	if !actor.Moderator {
		ErrorResponse(w, r, h.logger, domain.Forbidden(op, "only a moderator may register accounts"))
		return
	}

	var req RegisterRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	planID, err := domain.ParsePlanID(req.Plan)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Unknown plan "+strconv.Quote(req.Plan)))
		return
	}

	account, err := h.accounts.Register(r.Context(), req.ID, planID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountView(*account))
}

// Quota reports whether the account may perform an action now, without
// consuming anything.
//
// Query parameters:
// - action: create_event (default), upload_photo or consume_storage
// - listing_id: required for upload_photo
// - bytes: required for consume_storage
func (h *AccountHandler) Quota(w http.ResponseWriter, r *http.Request) {
	const op = "AccountHandler.Quota"

	accountID, ok := h.ownAccount(w, r, op)
	if !ok {
		return
	}

	action, err := parseAction(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	decision, err := h.content.CheckQuota(r.Context(), accountID, action)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newDecisionView(decision))
}

// Usage returns the current period summary and the history inside the
// plan's statistics window.
func (h *AccountHandler) Usage(w http.ResponseWriter, r *http.Request) {
	const op = "AccountHandler.Usage"

	accountID, ok := h.ownAccount(w, r, op)
	if !ok {
		return
	}

	summary, err := h.accounts.Summary(r.Context(), accountID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	history, err := h.accounts.History(r.Context(), accountID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryView(*summary, history))
}

// ChangePlanRequest is the body of PUT /api/accounts/{id}/plan.
type ChangePlanRequest struct {
	Plan string `json:"plan"`
}

// ChangePlan moves an account to another plan.
func (h *AccountHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	const op = "AccountHandler.ChangePlan"

	accountID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req ChangePlanRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	planID, err := domain.ParsePlanID(req.Plan)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Unknown plan "+strconv.Quote(req.Plan)))
		return
	}

	account, err := h.accounts.ChangePlan(r.Context(), auth.GetActorFromRequest(r), accountID, planID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(*account))
}

// ownAccount parses the account id and checks that the actor owns it or
// is a moderator.
func (h *AccountHandler) ownAccount(w http.ResponseWriter, r *http.Request, op string) (uuid.UUID, bool) {
	accountID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return uuid.Nil, false
	}
	if len(auth.GetActorFromRequest(r).RolesFor(accountID)) == 0 {
		ErrorResponse(w, r, h.logger, domain.Forbidden(op, "You don't have access to this account"))
		return uuid.Nil, false
	}
	return accountID, true
}

func parseAction(r *http.Request, op string) (domain.Action, error) {
	q := r.URL.Query()

	switch domain.ActionKind(q.Get("action")) {
	case "", domain.ActionCreateEvent:
		return domain.CreateEvent(), nil

	case domain.ActionUploadPhoto:
		listingID, err := uuid.Parse(q.Get("listing_id"))
		if err != nil {
			return domain.Action{}, domain.Invalid(op, "listing_id must be a valid UUID")
		}
		return domain.UploadPhoto(listingID), nil

	case domain.ActionConsumeStorage:
		n, err := strconv.ParseInt(q.Get("bytes"), 10, 64)
		if err != nil || n <= 0 {
			return domain.Action{}, domain.Invalid(op, "bytes must be a positive integer")
		}
		return domain.ConsumeStorage(n), nil
	}
	return domain.Action{}, domain.Invalid(op, "unknown action "+q.Get("action"))
}
