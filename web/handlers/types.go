package handlers

import "github.com/scrypster/kinstory/pkg/types"

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// RenameRequest is the body of PATCH /api/people/{id}/name.
type RenameRequest struct {
	Name string `json:"name"`
}

// NicknameRequest is the body of POST and DELETE /api/people/{id}/nicknames.
type NicknameRequest struct {
	Nickname string `json:"nickname"`
}

// RelationshipRequest is the body of POST /api/relationships. Parent and
// child are person ids or names.
type RelationshipRequest struct {
	Parent types.PersonRef `json:"parent"`
	Child  types.PersonRef `json:"child"`
	Type   string          `json:"relationship_type,omitempty"`
}

// FriendshipRequest is the body of POST /api/friendships.
type FriendshipRequest struct {
	Person1 types.PersonRef `json:"person1"`
	Person2 types.PersonRef `json:"person2"`
}

// ResolvePeopleRequest is the body of POST /api/resolve/people.
type ResolvePeopleRequest struct {
	People []types.PersonRef `json:"people"`
	Text   string            `json:"text"`
}

// ResolvePeopleResponse lists the resolved person ids.
type ResolvePeopleResponse struct {
	PersonIDs []int64 `json:"person_ids"`
}

// ResolveLocationRequest is the body of POST /api/resolve/location.
type ResolveLocationRequest struct {
	LocationID   *int64 `json:"location_id,omitempty"`
	LocationName string `json:"location_name,omitempty"`
}

// ResolveLocationResponse carries the resolved id, null when no location was given.
type ResolveLocationResponse struct {
	LocationID *int64 `json:"location_id"`
}
