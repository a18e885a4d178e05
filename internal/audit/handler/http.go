// Package handler serves the audit history over HTTP.
package handler

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"docaudit/internal/audit/domain"
	"docaudit/internal/audit/repository"
)

const (
	bearerPrefix = "bearer "
	defaultLimit = 50
	maxLimit     = 500
)

// TokenVerifier validates a bearer token and returns its subject (e.g. *security.Verifier).
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Handler exposes read access to audit records.
type Handler struct {
	repo     repository.Repository
	verifier TokenVerifier
}

// NewHandler returns a Handler over repo. If verifier is nil, requests are not authenticated.
func NewHandler(repo repository.Repository, verifier TokenVerifier) *Handler {
	return &Handler{repo: repo, verifier: verifier}
}

// NewRouter returns a router serving healthz (unauthenticated) and the audit routes.
func NewRouter(h *Handler, healthz http.Handler) *mux.Router {
	r := mux.NewRouter()
	if healthz != nil {
		r.Handle("/healthz", healthz).Methods(http.MethodGet)
	}
	h.Register(r)
	return r
}

// Register adds the audit routes to r behind bearer authentication.
func (h *Handler) Register(r *mux.Router) {
	api := r.NewRoute().Subrouter()
	api.Use(h.authenticate)
	api.HandleFunc("/audits/{id}", h.GetAudit).Methods(http.MethodGet)
	api.HandleFunc("/items/{itemName}/{itemId}/audits", h.ListItemAudits).Methods(http.MethodGet)
}

// GET /audits/{id}
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		log.Printf("audit: get %s: %v", id, err)
		writeError(w, "failed to load audit", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		writeError(w, "audit not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type listResponse struct {
	Audits []*domain.AuditRecord `json:"audits"`
	Limit  int32                 `json:"limit"`
	Offset int32                 `json:"offset"`
}

// GET /items/{itemName}/{itemId}/audits?limit=&offset=
func (h *Handler) ListItemAudits(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit <= 0 || limit > maxLimit {
		writeError(w, "limit must be between 1 and "+strconv.Itoa(maxLimit), http.StatusBadRequest)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, "offset must be a non-negative integer", http.StatusBadRequest)
		return
	}

	recs, err := h.repo.ListByItem(r.Context(), vars["itemName"], vars["itemId"], limit, offset)
	if err != nil {
		log.Printf("audit: list %s %s: %v", vars["itemName"], vars["itemId"], err)
		writeError(w, "failed to list audits", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []*domain.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{Audits: recs, Limit: limit, Offset: offset})
}

// authenticate rejects requests without a valid Bearer token.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}
		token := extractBearer(r)
		if token == "" {
			writeError(w, "missing or invalid authorization", http.StatusUnauthorized)
			return
		}
		if _, err := h.verifier.Verify(token); err != nil {
			writeError(w, "missing or invalid authorization", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func queryInt(r *http.Request, key string, def int32) (int32, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("audit: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
