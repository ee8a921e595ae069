package handlers

import (
	"net/http"

	"github.com/scrypster/kinstory/pkg/types"
)

// ListPeople handles GET /api/people.
func (h *APIHandlers) ListPeople(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	people, err := h.engine.ListPeople(r.Context(), o)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, people)
}

// CreatePerson handles POST /api/people.
func (h *APIHandlers) CreatePerson(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var in types.NewPerson
	if !decode(w, r, &in) {
		return
	}
	p, err := h.engine.CreatePerson(r.Context(), o, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// GetPerson handles GET /api/people/{id}.
func (h *APIHandlers) GetPerson(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.engine.GetPerson(r.Context(), o, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdatePerson handles PATCH /api/people/{id}. Only the attributes present
// in the body change.
func (h *APIHandlers) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var attrs types.PersonAttributes
	if !decode(w, r, &attrs) {
		return
	}
	p, err := h.engine.UpdatePersonAttributes(r.Context(), o, id, attrs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// RenamePerson handles PATCH /api/people/{id}/name.
func (h *APIHandlers) RenamePerson(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req RenameRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.engine.RenamePerson(r.Context(), o, id, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// AddNickname handles POST /api/people/{id}/nicknames.
func (h *APIHandlers) AddNickname(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req NicknameRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.engine.AddNickname(r.Context(), o, id, req.Nickname)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// RemoveNickname handles DELETE /api/people/{id}/nicknames. The nickname
// comes from the body or the nickname query parameter.
func (h *APIHandlers) RemoveNickname(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req := NicknameRequest{Nickname: r.URL.Query().Get("nickname")}
	if req.Nickname == "" && !decode(w, r, &req) {
		return
	}
	p, err := h.engine.RemoveNickname(r.Context(), o, id, req.Nickname)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeletePerson handles DELETE /api/people/{id}.
func (h *APIHandlers) DeletePerson(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.engine.DeletePerson(r.Context(), o, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Friends handles GET /api/people/{id}/friends.
func (h *APIHandlers) Friends(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	friends, err := h.engine.Friends(r.Context(), o, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, friends)
}

// ListLocations handles GET /api/locations.
func (h *APIHandlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	locations, err := h.engine.ListLocations(r.Context(), o)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, locations)
}

// CreateLocation handles POST /api/locations.
func (h *APIHandlers) CreateLocation(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var in types.NewLocation
	if !decode(w, r, &in) {
		return
	}
	l, err := h.engine.CreateLocation(r.Context(), o, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, l)
}

// GetLocation handles GET /api/locations/{id}.
func (h *APIHandlers) GetLocation(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	l, err := h.engine.GetLocation(r.Context(), o, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}
