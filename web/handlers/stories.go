package handlers

import (
	"net/http"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

// ListStories handles GET /api/stories?limit=&offset=&sort_order=.
func (h *APIHandlers) ListStories(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	opts := storage.ListOptions{
		Limit:     parseInt(q.Get("limit"), 50),
		Offset:    parseInt(q.Get("offset"), 0),
		SortOrder: q.Get("sort_order"),
	}
	stories, err := h.engine.ListStories(r.Context(), o, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stories)
}

// CreateStory handles POST /api/stories.
func (h *APIHandlers) CreateStory(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var in types.StoryInput
	if !decode(w, r, &in) {
		return
	}
	s, err := h.engine.CreateStory(r.Context(), o, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s)
}

// GetStory handles GET /api/stories/{id}.
func (h *APIHandlers) GetStory(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	s, err := h.engine.GetStory(r.Context(), o, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// DeleteStory handles DELETE /api/stories/{id}.
func (h *APIHandlers) DeleteStory(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.engine.DeleteStory(r.Context(), o, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// storyUpdate decodes a T and applies it with fn, answering with the updated story.
func storyUpdate[T any](h *APIHandlers, w http.ResponseWriter, r *http.Request,
	fn func(h *APIHandlers, r *http.Request, owner string, id int64, u T) (*types.Story, error)) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var u T
	if !decode(w, r, &u) {
		return
	}
	s, err := fn(h, r, o, id, u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// UpdateStoryTitle handles PATCH /api/stories/{id}/title.
func (h *APIHandlers) UpdateStoryTitle(w http.ResponseWriter, r *http.Request) {
	storyUpdate(h, w, r, func(h *APIHandlers, r *http.Request, owner string, id int64, u types.StoryTitleUpdate) (*types.Story, error) {
		return h.engine.UpdateStoryTitle(r.Context(), owner, id, u)
	})
}

// UpdateStoryDate handles PATCH /api/stories/{id}/date.
func (h *APIHandlers) UpdateStoryDate(w http.ResponseWriter, r *http.Request) {
	storyUpdate(h, w, r, func(h *APIHandlers, r *http.Request, owner string, id int64, u types.StoryDateUpdate) (*types.Story, error) {
		return h.engine.UpdateStoryDate(r.Context(), owner, id, u)
	})
}

// UpdateStoryPeople handles PATCH /api/stories/{id}/people.
func (h *APIHandlers) UpdateStoryPeople(w http.ResponseWriter, r *http.Request) {
	storyUpdate(h, w, r, func(h *APIHandlers, r *http.Request, owner string, id int64, u types.StoryPeopleUpdate) (*types.Story, error) {
		return h.engine.UpdateStoryPeople(r.Context(), owner, id, u)
	})
}

// UpdateStoryLocation handles PATCH /api/stories/{id}/location.
func (h *APIHandlers) UpdateStoryLocation(w http.ResponseWriter, r *http.Request) {
	storyUpdate(h, w, r, func(h *APIHandlers, r *http.Request, owner string, id int64, u types.StoryLocationUpdate) (*types.Story, error) {
		return h.engine.UpdateStoryLocation(r.Context(), owner, id, u)
	})
}
