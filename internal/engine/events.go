package engine

import "time"

// EventType names a change.
type EventType string

// Event types published after a successful mutation.
const (
	PersonCreated       EventType = "person.created"
	PersonUpdated       EventType = "person.updated"
	PersonDeleted       EventType = "person.deleted"
	LocationCreated     EventType = "location.created"
	RelationshipCreated EventType = "relationship.created"
	RelationshipDeleted EventType = "relationship.deleted"
	FriendshipCreated   EventType = "friendship.created"
	FriendshipDeleted   EventType = "friendship.deleted"
	StoryCreated        EventType = "story.created"
	StoryUpdated        EventType = "story.updated"
	StoryDeleted        EventType = "story.deleted"
)

// Event describes one committed change.
type Event struct {
	Type    EventType `json:"type"`
	OwnerID string    `json:"owner_id"`
	ID      int64     `json:"id"`
	At      time.Time `json:"at"`
}

// EventPublisher receives events. Publish must not block.
type EventPublisher interface {
	Publish(Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) {}

func (e *Engine) publish(t EventType, owner string, id int64) {
	e.events.Publish(Event{Type: t, OwnerID: owner, ID: id, At: e.now().UTC()})
}
