package types

import (
	"errors"
	"fmt"
	"strings"
)

// PersonAttributes is a partial update of a person's optional attributes.
// Nil fields are left unchanged.
type PersonAttributes struct {
	Picture   *string `json:"picture,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
	DeathDate *string `json:"death_date,omitempty"`
	Gender    *string `json:"gender,omitempty"`
}

// IsEmpty reports whether no attribute is set.
func (a PersonAttributes) IsEmpty() bool {
	return a.Picture == nil && a.BirthDate == nil && a.DeathDate == nil && a.Gender == nil
}

// Validate checks that at least one attribute is present and that gender is known.
func (a PersonAttributes) Validate() error {
	if a.IsEmpty() {
		return errors.New("at least one attribute is required")
	}
	return ValidateGender(a.Gender)
}

// ValidateGender accepts nil, "M" or "F".
func ValidateGender(g *string) error {
	if g == nil {
		return nil
	}
	switch *g {
	case GenderMale, GenderFemale:
		return nil
	}
	return fmt.Errorf("gender must be %q or %q, got %q", GenderMale, GenderFemale, *g)
}

// NewPerson is the payload for explicit person creation.
type NewPerson struct {
	Name      string   `json:"name"`
	Nicknames []string `json:"nicknames"`
	PersonAttributes
}

// Validate checks the required name and the optional attributes.
func (p NewPerson) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	for _, n := range p.Nicknames {
		if strings.TrimSpace(n) == "" {
			return errors.New("nicknames must not be blank")
		}
	}
	return ValidateGender(p.Gender)
}

// NewLocation is the payload for explicit location creation.
type NewLocation struct {
	Name    string  `json:"name"`
	Picture *string `json:"picture,omitempty"`
}

// Validate checks the required name.
func (l NewLocation) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

// StoryInput is the payload for story creation.
type StoryInput struct {
	Content      string      `json:"content"`
	People       []PersonRef `json:"people"`
	LocationID   *int64      `json:"location_id,omitempty"`
	LocationName string      `json:"location_name,omitempty"`
	Photos       []string    `json:"photos"`
	Date         string      `json:"date,omitempty"`
}

// Validate checks the required content.
func (s StoryInput) Validate() error {
	if strings.TrimSpace(s.Content) == "" {
		return errors.New("content is required")
	}
	return nil
}

// Location returns the location reference carried by the input.
func (s StoryInput) Location() LocationRef {
	return NewLocationRef(s.LocationID, s.LocationName)
}

// StoryTitleUpdate replaces a story's title.
type StoryTitleUpdate struct {
	Title string `json:"title"`
}

// Validate rejects a blank title.
func (u StoryTitleUpdate) Validate() error {
	if strings.TrimSpace(u.Title) == "" {
		return errors.New("title is required")
	}
	return nil
}

// StoryDateUpdate replaces a story's date.
type StoryDateUpdate struct {
	Date string `json:"date"`
}

// Validate rejects a blank date.
func (u StoryDateUpdate) Validate() error {
	if strings.TrimSpace(u.Date) == "" {
		return errors.New("date is required")
	}
	return nil
}

// StoryPeopleUpdate replaces the set of people linked to a story.
type StoryPeopleUpdate struct {
	People []PersonRef `json:"people"`
}

// StoryLocationUpdate replaces or clears a story's location. Both fields
// empty clears it.
type StoryLocationUpdate struct {
	LocationID   *int64 `json:"location_id,omitempty"`
	LocationName string `json:"location_name,omitempty"`
}

// Location returns the reference carried by the update.
func (u StoryLocationUpdate) Location() LocationRef {
	return NewLocationRef(u.LocationID, u.LocationName)
}
