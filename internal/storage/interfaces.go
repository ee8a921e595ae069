// Package storage provides the owner-scoped repository interfaces for kinstory.
//
// Every method takes the owner key; no method reads or writes across owners
// except the maintenance queries, which accept an empty owner to mean all.
package storage

import (
	"context"

	"github.com/scrypster/kinstory/pkg/types"
)

// PersonStore provides person records and their aliases.
type PersonStore interface {
	// CreatePerson inserts a person with its nicknames.
	// Returns ErrConflict if the canonical name or a nickname is taken.
	CreatePerson(ctx context.Context, owner string, p types.NewPerson) (*types.Person, error)

	// GetPerson returns ErrNotFound if the id is not in the owner's scope.
	GetPerson(ctx context.Context, owner string, id int64) (*types.Person, error)

	// ListPeople returns the owner's people ordered by name.
	ListPeople(ctx context.Context, owner string) ([]types.Person, error)

	// PersonExists reports whether the id is in the owner's scope.
	PersonExists(ctx context.Context, owner string, id int64) (bool, error)

	// FindPersonByName exact-matches a canonical name.
	// Returns ErrNotFound when nothing matches.
	FindPersonByName(ctx context.Context, owner, name string) (int64, error)

	// FindPersonByAlias exact-matches a nickname.
	// Returns ErrNotFound when nothing matches.
	FindPersonByAlias(ctx context.Context, owner, alias string) (int64, error)

	// GetOrCreatePerson atomically returns the person with this canonical
	// name, inserting it first when absent. created reports the insert.
	GetOrCreatePerson(ctx context.Context, owner, name string) (id int64, created bool, err error)

	UpdatePersonAttributes(ctx context.Context, owner string, id int64, attrs types.PersonAttributes) (*types.Person, error)
	RenamePerson(ctx context.Context, owner string, id int64, name string) (*types.Person, error)

	// AddNickname returns ErrConflict if the alias already maps to a person.
	AddNickname(ctx context.Context, owner string, id int64, nickname string) (*types.Person, error)

	// RemoveNickname returns ErrNotFound if the person has no such nickname.
	RemoveNickname(ctx context.Context, owner string, id int64, nickname string) (*types.Person, error)

	// DeletePerson removes the person and its aliases. Edges that reference
	// the person are left in place.
	DeletePerson(ctx context.Context, owner string, id int64) error
}

// LocationStore provides location records.
type LocationStore interface {
	CreateLocation(ctx context.Context, owner string, l types.NewLocation) (*types.Location, error)
	GetLocation(ctx context.Context, owner string, id int64) (*types.Location, error)
	ListLocations(ctx context.Context, owner string) ([]types.Location, error)

	// GetOrCreateLocation atomically returns the location with this exact
	// name, inserting it first when absent.
	GetOrCreateLocation(ctx context.Context, owner, name string) (id int64, created bool, err error)
}

// EdgeStore provides relationship and friendship edges.
type EdgeStore interface {
	// CreateRelationship returns ErrConflict for a duplicate (owner, parent, child).
	CreateRelationship(ctx context.Context, owner string, parentID, childID int64, relType string) (*types.RelationshipEdge, error)
	ListRelationships(ctx context.Context, owner string) ([]types.RelationshipEdge, error)
	// DeleteRelationship returns the id of the removed edge.
	DeleteRelationship(ctx context.Context, owner string, parentID, childID int64) (int64, error)

	// CreateFriendship returns ErrConflict when the pair exists in either order.
	CreateFriendship(ctx context.Context, owner string, a, b int64) (*types.FriendshipEdge, error)
	ListFriendships(ctx context.Context, owner string) ([]types.FriendshipEdge, error)
	FriendshipsOf(ctx context.Context, owner string, personID int64) ([]types.FriendshipEdge, error)

	// DeleteFriendship matches the pair in either order and returns the id
	// of the removed edge.
	DeleteFriendship(ctx context.Context, owner string, a, b int64) (int64, error)
}

// StoryStore provides stories and their person and location links.
type StoryStore interface {
	CreateStory(ctx context.Context, s *types.Story) (*types.Story, error)
	GetStory(ctx context.Context, owner string, id int64) (*types.Story, error)
	ListStories(ctx context.Context, owner string, opts ListOptions) ([]types.Story, error)
	UpdateStoryTitle(ctx context.Context, owner string, id int64, title string) error
	UpdateStoryDate(ctx context.Context, owner string, id int64, date string) error
	SetStoryPeople(ctx context.Context, owner string, id int64, people []int64) error
	SetStoryLocation(ctx context.Context, owner string, id int64, locationID *int64) error
	DeleteStory(ctx context.Context, owner string, id int64) error
}

// MaintenanceStore backs the repair tooling. An empty owner means every owner.
type MaintenanceStore interface {
	Owners(ctx context.Context) ([]string, error)
	DuplicatePeople(ctx context.Context, owner string) ([]DuplicateGroup, error)

	// MergePeople re-points edges, story links and aliases from drop to keep,
	// then deletes the dropped people. Edges that would become duplicates are removed.
	MergePeople(ctx context.Context, owner string, keep int64, drop []int64) error

	DanglingRelationships(ctx context.Context, owner string) ([]types.RelationshipEdge, error)
	DanglingFriendships(ctx context.Context, owner string) ([]types.FriendshipEdge, error)
	DeleteRelationshipByID(ctx context.Context, owner string, id int64) error
	DeleteFriendshipByID(ctx context.Context, owner string, id int64) error
}

// Repository is the full owner-scoped record set.
type Repository interface {
	PersonStore
	LocationStore
	EdgeStore
	StoryStore
	MaintenanceStore
}

// Store is a Repository that can open transactions.
type Store interface {
	Repository

	// InTx runs fn against a transaction-bound Repository. The transaction
	// commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}
