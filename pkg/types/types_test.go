package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestPersonRefJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  PersonRef
	}{
		{"number is an identity", `7`, ByIdentity(7)},
		{"string is a name", `"Ann"`, ByName("Ann")},
		{"numeric string stays a name", `"42"`, ByName("42")},
		{"escaped string", `"Zoë"`, ByName("Zoë")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got PersonRef
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var ref PersonRef
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &ref))
	assert.Error(t, json.Unmarshal([]byte(`{"id":1}`), &ref))
}

func TestPersonRefListEncoding(t *testing.T) {
	var in struct {
		People []PersonRef `json:"people"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"people":[3,"Bob","3"]}`), &in))
	require.Len(t, in.People, 3)
	assert.True(t, in.People[0].IsIdentity())
	assert.Equal(t, int64(3), in.People[0].ID())
	assert.False(t, in.People[2].IsIdentity())
	assert.Equal(t, "3", in.People[2].Name())

	out, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"people":[3,"Bob","3"]}`, string(out))

	assert.Equal(t, `#3`, in.People[0].String())
	assert.Equal(t, `"Bob"`, in.People[1].String())
}

func TestLocationRef(t *testing.T) {
	id := int64(9)

	assert.True(t, LocationRef{}.IsNone())
	assert.True(t, NewLocationRef(nil, "").IsNone())

	byName := NewLocationRef(nil, "Lisbon")
	assert.False(t, byName.IsNone())
	assert.False(t, byName.IsIdentity())
	assert.Equal(t, "Lisbon", byName.Name())

	byID := NewLocationRef(&id, "Lisbon")
	assert.True(t, byID.IsIdentity())
	assert.Equal(t, int64(9), byID.ID())

	assert.True(t, StoryInput{LocationName: "Porto"}.Location() == LocationByName("Porto"))
	assert.True(t, StoryLocationUpdate{}.Location().IsNone())
}

func TestFriendshipEdge(t *testing.T) {
	e := FriendshipEdge{Person1ID: 1, Person2ID: 2}
	assert.True(t, e.Involves(2))
	assert.False(t, e.Involves(3))
	assert.Equal(t, int64(2), e.Other(1))
	assert.Equal(t, int64(1), e.Other(2))
	assert.True(t, e.Matches(2, 1))
	assert.False(t, e.Matches(1, 3))

	self := FriendshipEdge{Person1ID: 4, Person2ID: 4}
	assert.Equal(t, int64(4), self.Other(4))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		v    interface{ Validate() error }
		ok   bool
	}{
		{"person", NewPerson{Name: "Ann"}, true},
		{"person blank name", NewPerson{Name: "  "}, false},
		{"person blank nickname", NewPerson{Name: "Ann", Nicknames: []string{""}}, false},
		{"person bad gender", NewPerson{Name: "Ann", PersonAttributes: PersonAttributes{Gender: strPtr("X")}}, false},
		{"attributes empty", PersonAttributes{}, false},
		{"attributes gender", PersonAttributes{Gender: strPtr(GenderFemale)}, true},
		{"attributes picture", PersonAttributes{Picture: strPtr("a.png")}, true},
		{"location", NewLocation{Name: "Home"}, true},
		{"location blank", NewLocation{}, false},
		{"story", StoryInput{Content: "We went out."}, true},
		{"story blank", StoryInput{Content: "\n"}, false},
		{"title", StoryTitleUpdate{Title: "Trip"}, true},
		{"title blank", StoryTitleUpdate{}, false},
		{"date", StoryDateUpdate{Date: "1999-01-01"}, true},
		{"date blank", StoryDateUpdate{Date: " "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
