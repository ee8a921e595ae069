// Package handlers provides the HTTP handlers and middleware for kinstory.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/kinstory/internal/engine"
	"github.com/scrypster/kinstory/internal/extraction"
	"github.com/scrypster/kinstory/internal/storage"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// OwnerHeader carries the owner key. The owner_id query parameter is the fallback.
const OwnerHeader = "X-Owner-ID"

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	engine *engine.Engine
	log    *zap.Logger
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(eng *engine.Engine, log *zap.Logger) *APIHandlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIHandlers{engine: eng, log: log}
}

// Register mounts every API route on mux.
func (h *APIHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/people", h.ListPeople)
	mux.HandleFunc("POST /api/people", h.CreatePerson)
	mux.HandleFunc("GET /api/people/{id}", h.GetPerson)
	mux.HandleFunc("PATCH /api/people/{id}", h.UpdatePerson)
	mux.HandleFunc("DELETE /api/people/{id}", h.DeletePerson)
	mux.HandleFunc("PATCH /api/people/{id}/name", h.RenamePerson)
	mux.HandleFunc("POST /api/people/{id}/nicknames", h.AddNickname)
	mux.HandleFunc("DELETE /api/people/{id}/nicknames", h.RemoveNickname)
	mux.HandleFunc("GET /api/people/{id}/friends", h.Friends)

	mux.HandleFunc("GET /api/locations", h.ListLocations)
	mux.HandleFunc("POST /api/locations", h.CreateLocation)
	mux.HandleFunc("GET /api/locations/{id}", h.GetLocation)

	mux.HandleFunc("GET /api/relationships", h.ListRelationships)
	mux.HandleFunc("POST /api/relationships", h.AddRelationship)
	mux.HandleFunc("DELETE /api/relationships", h.DeleteRelationship)
	mux.HandleFunc("GET /api/friendships", h.ListFriendships)
	mux.HandleFunc("POST /api/friendships", h.AddFriendship)
	mux.HandleFunc("DELETE /api/friendships", h.DeleteFriendship)
	mux.HandleFunc("GET /api/family-tree", h.FamilyTree)

	mux.HandleFunc("GET /api/stories", h.ListStories)
	mux.HandleFunc("POST /api/stories", h.CreateStory)
	mux.HandleFunc("GET /api/stories/{id}", h.GetStory)
	mux.HandleFunc("DELETE /api/stories/{id}", h.DeleteStory)
	mux.HandleFunc("PATCH /api/stories/{id}/title", h.UpdateStoryTitle)
	mux.HandleFunc("PATCH /api/stories/{id}/date", h.UpdateStoryDate)
	mux.HandleFunc("PATCH /api/stories/{id}/people", h.UpdateStoryPeople)
	mux.HandleFunc("PATCH /api/stories/{id}/location", h.UpdateStoryLocation)

	mux.HandleFunc("POST /api/resolve/people", h.ResolvePeople)
	mux.HandleFunc("POST /api/resolve/location", h.ResolveLocation)
}

// Health handles GET /api/health.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unavailable", err)
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: Version})
}

// owner returns the caller's owner key or writes a 400.
func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	o := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if o == "" {
		o = strings.TrimSpace(r.URL.Query().Get("owner_id"))
	}
	if o == "" {
		respondError(w, http.StatusBadRequest, "owner is required", nil)
		return "", false
	}
	return o, true
}

// pathID parses the {key} path value.
func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	return parseID(w, key, r.PathValue(key))
}

// queryID parses a required id query parameter.
func queryID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	return parseID(w, key, r.URL.Query().Get(key))
}

func parseID(w http.ResponseWriter, key, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", key), nil)
		return 0, false
	}
	return id, true
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// decode reads a JSON body into v or writes a 400.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent, so an encoding failure has nowhere to go.
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]any{"error": err.Error()}
	}
	respondJSON(w, statusCode, errResp)
}

// fail maps an engine error onto its HTTP status.
func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, storage.ErrConflict):
		respondError(w, http.StatusConflict, "already exists", err)
	case errors.Is(err, storage.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid input", err)
	case errors.Is(err, extraction.ErrCircuitOpen):
		respondError(w, http.StatusServiceUnavailable, "entity extraction unavailable", nil)
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
