package handlers

import (
	"net/http"

	"github.com/scrypster/kinstory/pkg/types"
)

// ListRelationships handles GET /api/relationships.
func (h *APIHandlers) ListRelationships(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	edges, err := h.engine.ListRelationships(r.Context(), o)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, edges)
}

// AddRelationship handles POST /api/relationships.
func (h *APIHandlers) AddRelationship(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req RelationshipRequest
	if !decode(w, r, &req) {
		return
	}
	edge, err := h.engine.AddRelationship(r.Context(), o, req.Parent, req.Child, req.Type)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, edge)
}

// DeleteRelationship handles DELETE /api/relationships?parent_id=&child_id=.
func (h *APIHandlers) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	parent, ok := queryID(w, r, "parent_id")
	if !ok {
		return
	}
	child, ok := queryID(w, r, "child_id")
	if !ok {
		return
	}
	if err := h.engine.DeleteRelationship(r.Context(), o, parent, child); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFriendships handles GET /api/friendships.
func (h *APIHandlers) ListFriendships(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	edges, err := h.engine.ListFriendships(r.Context(), o)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, edges)
}

// AddFriendship handles POST /api/friendships.
func (h *APIHandlers) AddFriendship(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req FriendshipRequest
	if !decode(w, r, &req) {
		return
	}
	edge, err := h.engine.AddFriendship(r.Context(), o, req.Person1, req.Person2)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, edge)
}

// DeleteFriendship handles DELETE /api/friendships?person1_id=&person2_id=.
// The pair may be given in either order.
func (h *APIHandlers) DeleteFriendship(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	a, ok := queryID(w, r, "person1_id")
	if !ok {
		return
	}
	b, ok := queryID(w, r, "person2_id")
	if !ok {
		return
	}
	if err := h.engine.DeleteFriendship(r.Context(), o, a, b); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FamilyTree handles GET /api/family-tree.
func (h *APIHandlers) FamilyTree(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	tree, err := h.engine.FamilyTree(r.Context(), o)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tree)
}

// ResolvePeople handles POST /api/resolve/people.
func (h *APIHandlers) ResolvePeople(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req ResolvePeopleRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := h.engine.ResolvePeople(r.Context(), o, req.People, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ResolvePeopleResponse{PersonIDs: ids})
}

// ResolveLocation handles POST /api/resolve/location.
func (h *APIHandlers) ResolveLocation(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req ResolveLocationRequest
	if !decode(w, r, &req) {
		return
	}
	ref := types.NewLocationRef(req.LocationID, req.LocationName)
	id, err := h.engine.ResolveLocation(r.Context(), o, ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ResolveLocationResponse{LocationID: id})
}
