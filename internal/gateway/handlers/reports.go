package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
	"github.com/go-chi/chi/v5"
)

// HandleDailyCosts handles GET /v1/costs/daily?date=YYYY-MM-DD
func (h *ChatHandler) HandleDailyCosts(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := APIKeyFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	summary, err := h.svc.DailyCostSummary(r.Context(), apiKey.CallerID, r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleSuggestions handles GET /v1/costs/suggestions
func (h *ChatHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := APIKeyFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	suggestions, err := h.svc.CostOptimizationSuggestions(r.Context(), apiKey.CallerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// HandleGetConversation handles GET /v1/conversations/{id}
func (h *ChatHandler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := APIKeyFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	conv, err := h.svc.Conversation(r.Context(), apiKey.CallerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// HandleDeleteConversation handles DELETE /v1/conversations/{id}
func (h *ChatHandler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := APIKeyFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	if err := h.svc.DeleteConversation(r.Context(), apiKey.CallerID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleForgetCaller handles DELETE /v1/me/cache. It erases every rate
// window, cost summary and conversation of the caller.
func (h *ChatHandler) HandleForgetCaller(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := APIKeyFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	if err := h.svc.ForgetCaller(r.Context(), apiKey.CallerID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler serves liveness and store checks.
type HealthHandler struct {
	store kvstore.Store
}

func NewHealthHandler(store kvstore.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// HandleHealth handles GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStoreHealth handles GET /health/store
func (h *HealthHandler) HandleStoreHealth(w http.ResponseWriter, r *http.Request) {
	pinger, ok := h.store.(kvstore.Pinger)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": "unchecked"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := pinger.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": "connected"})
}
