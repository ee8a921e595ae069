// Package types defines the core data structures for kinstory.
// These types represent owner-scoped people, locations, stories and the
// relationship and friendship edges between people.
package types

import "time"

// DefaultRelationshipType is applied when a relationship is created without a type.
const DefaultRelationshipType = "parent-child"

// Gender values accepted on a Person.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// Mention labels produced by entity extraction.
const (
	// LabelPerson marks a person mention. It is the only label the identity
	// resolver consumes.
	LabelPerson = "PER"

	// LabelLocation marks a place mention.
	LabelLocation = "LOC"
)

// Person is a canonical identity within one owner scope.
type Person struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Nicknames []string  `json:"nicknames"`
	Picture   *string   `json:"picture,omitempty"`
	BirthDate *string   `json:"birth_date,omitempty"`
	DeathDate *string   `json:"death_date,omitempty"`
	Gender    *string   `json:"gender,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is a canonical place within one owner scope.
type Location struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Picture   *string   `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RelationshipEdge is a directed parent to child link.
type RelationshipEdge struct {
	ID       int64  `json:"id"`
	OwnerID  string `json:"owner_id"`
	ParentID int64  `json:"parent_id"`
	ChildID  int64  `json:"child_id"`
	Type     string `json:"relationship_type"`
}

// FriendshipEdge is an unordered link between two people.
type FriendshipEdge struct {
	ID        int64  `json:"id"`
	OwnerID   string `json:"owner_id"`
	Person1ID int64  `json:"person1_id"`
	Person2ID int64  `json:"person2_id"`
}

// Involves reports whether id is either member of the pair.
func (f FriendshipEdge) Involves(id int64) bool {
	return f.Person1ID == id || f.Person2ID == id
}

// Other returns the member of the pair that is not id.
// For a self-pair it returns id.
func (f FriendshipEdge) Other(id int64) int64 {
	if f.Person1ID == id {
		return f.Person2ID
	}
	return f.Person1ID
}

// Matches reports whether the edge joins a and b in either order.
func (f FriendshipEdge) Matches(a, b int64) bool {
	return (f.Person1ID == a && f.Person2ID == b) || (f.Person1ID == b && f.Person2ID == a)
}

// Story is a narrative record. Only PeopleIDs and LocationID take part in the graph.
type Story struct {
	ID           int64     `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Date         string    `json:"date"`
	LocationID   *int64    `json:"location_id,omitempty"`
	LocationName string    `json:"location_name,omitempty"`
	PeopleIDs    []int64   `json:"people_ids"`
	Photos       []string  `json:"photos"`
	CreatedAt    time.Time `json:"created_at"`
}

// Mention is a raw (text, label) pair produced by entity extraction.
// Mentions are never persisted.
type Mention struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float32 `json:"score,omitempty"`
}

// TreeNode is one person's view in the family tree.
type TreeNode struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Nicknames []string `json:"nicknames,omitempty"`
	Picture   *string  `json:"picture,omitempty"`
	BirthDate *string  `json:"birth_date,omitempty"`
	DeathDate *string  `json:"death_date,omitempty"`
	Gender    *string  `json:"gender,omitempty"`
	Children  []int64  `json:"children"`
	Parents   []int64  `json:"parents"`
}
