// Package storagetest holds behaviour tests shared by every storage.Store
// backend.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Store

// Run exercises the full storage.Store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"PersonLifecycle", testPersonLifecycle},
		{"CanonicalNameUnique", testCanonicalNameUnique},
		{"NicknameUniquePerOwner", testNicknameUniquePerOwner},
		{"GetOrCreatePerson", testGetOrCreatePerson},
		{"OwnerIsolation", testOwnerIsolation},
		{"Locations", testLocations},
		{"Relationships", testRelationships},
		{"FriendshipsUnordered", testFriendshipsUnordered},
		{"DeletePersonLeavesEdges", testDeletePersonLeavesEdges},
		{"Stories", testStories},
		{"TransactionRollback", testTransactionRollback},
		{"MergePeople", testMergePeople},
		{"DuplicatePeopleFoldsUnicode", testDuplicatePeopleFoldsUnicode},
		{"MergeDropsEdgesBetweenMerged", testMergeDropsEdgesBetweenMerged},
		{"ListStoriesPagePeople", testListStoriesPagePeople},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

const owner = "owner-a"

func strPtr(s string) *string { return &s }

func mustPerson(t *testing.T, s storage.Store, name string, nicknames ...string) *types.Person {
	t.Helper()
	p, err := s.CreatePerson(context.Background(), owner, types.NewPerson{Name: name, Nicknames: nicknames})
	require.NoError(t, err)
	return p
}

func testPersonLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p, err := s.CreatePerson(ctx, owner, types.NewPerson{
		Name:      "Robert Smith",
		Nicknames: []string{"Bob"},
		PersonAttributes: types.PersonAttributes{
			BirthDate: strPtr("1950-02-01"),
			Gender:    strPtr(types.GenderMale),
		},
	})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, []string{"Bob"}, p.Nicknames)

	got, err := s.GetPerson(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Robert Smith", got.Name)
	require.NotNil(t, got.BirthDate)
	assert.Equal(t, "1950-02-01", *got.BirthDate)
	assert.Nil(t, got.DeathDate)

	got, err = s.UpdatePersonAttributes(ctx, owner, p.ID, types.PersonAttributes{DeathDate: strPtr("2020-03-04")})
	require.NoError(t, err)
	require.NotNil(t, got.DeathDate)
	assert.Equal(t, "2020-03-04", *got.DeathDate)
	require.NotNil(t, got.BirthDate, "unset attributes are left alone")

	got, err = s.RenamePerson(ctx, owner, p.ID, "Rob Smith")
	require.NoError(t, err)
	assert.Equal(t, "Rob Smith", got.Name)

	got, err = s.AddNickname(ctx, owner, p.ID, "Bobby")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Bob", "Bobby"}, got.Nicknames)

	got, err = s.RemoveNickname(ctx, owner, p.ID, "Bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bobby"}, got.Nicknames)

	_, err = s.RemoveNickname(ctx, owner, p.ID, "Nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	id, err := s.FindPersonByAlias(ctx, owner, "Bobby")
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	require.NoError(t, s.DeletePerson(ctx, owner, p.ID))
	_, err = s.GetPerson(ctx, owner, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.FindPersonByAlias(ctx, owner, "Bobby")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeletePerson(ctx, owner, p.ID), storage.ErrNotFound)
}

func testCanonicalNameUnique(t *testing.T, s storage.Store) {
	mustPerson(t, s, "Alice")
	_, err := s.CreatePerson(context.Background(), owner, types.NewPerson{Name: "Alice"})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func testNicknameUniquePerOwner(t *testing.T, s storage.Store) {
	ctx := context.Background()
	mustPerson(t, s, "Robert", "Bob")
	other := mustPerson(t, s, "Roberta")

	_, err := s.AddNickname(ctx, owner, other.ID, "Bob")
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.AddNickname(ctx, owner, 999999, "Bobbie")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A different owner may reuse the alias.
	p, err := s.CreatePerson(ctx, "owner-b", types.NewPerson{Name: "Robert", Nicknames: []string{"Bob"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, p.Nicknames)
}

func testGetOrCreatePerson(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id, created, err := s.GetOrCreatePerson(ctx, owner, "Carol")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.GetOrCreatePerson(ctx, owner, "Carol")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)

	exists, err := s.PersonExists(ctx, owner, id)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.PersonExists(ctx, "owner-b", id)
	require.NoError(t, err)
	assert.False(t, exists)
}

func testOwnerIsolation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustPerson(t, s, "Dana")
	b, err := s.CreatePerson(ctx, "owner-b", types.NewPerson{Name: "Dana"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = s.GetPerson(ctx, "owner-b", a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	people, err := s.ListPeople(ctx, "owner-b")
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, b.ID, people[0].ID)

	owners, err := s.Owners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner-a", "owner-b"}, owners)
}

func testLocations(t *testing.T, s storage.Store) {
	ctx := context.Background()
	l, err := s.CreateLocation(ctx, owner, types.NewLocation{Name: "Paris"})
	require.NoError(t, err)

	_, err = s.CreateLocation(ctx, owner, types.NewLocation{Name: "Paris"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	id, created, err := s.GetOrCreateLocation(ctx, owner, "Paris")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, l.ID, id)

	id, created, err = s.GetOrCreateLocation(ctx, owner, "Lyon")
	require.NoError(t, err)
	assert.True(t, created)

	got, err := s.GetLocation(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, "Lyon", got.Name)

	all, err := s.ListLocations(ctx, owner)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Lyon", all[0].Name)
}

func testRelationships(t *testing.T, s storage.Store) {
	ctx := context.Background()
	parent := mustPerson(t, s, "Parent")
	child := mustPerson(t, s, "Child")

	e, err := s.CreateRelationship(ctx, owner, parent.ID, child.ID, types.DefaultRelationshipType)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, e.ParentID)
	assert.Equal(t, types.DefaultRelationshipType, e.Type)

	_, err = s.CreateRelationship(ctx, owner, parent.ID, child.ID, "adoptive")
	assert.ErrorIs(t, err, storage.ErrConflict)

	// The reverse direction is a distinct edge.
	_, err = s.CreateRelationship(ctx, owner, child.ID, parent.ID, types.DefaultRelationshipType)
	require.NoError(t, err)

	edges, err := s.ListRelationships(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	deletedID, err := s.DeleteRelationship(ctx, owner, parent.ID, child.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, deletedID)
	_, err = s.DeleteRelationship(ctx, owner, parent.ID, child.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testFriendshipsUnordered(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustPerson(t, s, "A")
	b := mustPerson(t, s, "B")
	c := mustPerson(t, s, "C")

	ab, err := s.CreateFriendship(ctx, owner, a.ID, b.ID)
	require.NoError(t, err)
	_, err = s.CreateFriendship(ctx, owner, b.ID, a.ID)
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = s.CreateFriendship(ctx, owner, c.ID, a.ID)
	require.NoError(t, err)

	of, err := s.FriendshipsOf(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Len(t, of, 2)

	deletedID, err := s.DeleteFriendship(ctx, owner, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ab.ID, deletedID)
	_, err = s.DeleteFriendship(ctx, owner, a.ID, b.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	all, err := s.ListFriendships(ctx, owner)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Matches(a.ID, c.ID))
}

func testDeletePersonLeavesEdges(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustPerson(t, s, "A")
	b := mustPerson(t, s, "B")
	_, err := s.CreateRelationship(ctx, owner, a.ID, b.ID, types.DefaultRelationshipType)
	require.NoError(t, err)
	_, err = s.CreateFriendship(ctx, owner, a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeletePerson(ctx, owner, b.ID))

	rels, err := s.DanglingRelationships(ctx, owner)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	friends, err := s.DanglingFriendships(ctx, owner)
	require.NoError(t, err)
	require.Len(t, friends, 1)

	require.NoError(t, s.DeleteRelationshipByID(ctx, owner, rels[0].ID))
	require.NoError(t, s.DeleteFriendshipByID(ctx, owner, friends[0].ID))
	rels, err = s.DanglingRelationships(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func testStories(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustPerson(t, s, "A")
	b := mustPerson(t, s, "B")
	loc, err := s.CreateLocation(ctx, owner, types.NewLocation{Name: "Rome"})
	require.NoError(t, err)

	story, err := s.CreateStory(ctx, &types.Story{
		OwnerID:    owner,
		Title:      "Trip",
		Content:    "Trip. Then more.",
		Date:       "2024-05-06",
		LocationID: &loc.ID,
		PeopleIDs:  []int64{b.ID, a.ID},
		Photos:     []string{"p1.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID, a.ID}, story.PeopleIDs)
	assert.Equal(t, "Rome", story.LocationName)
	assert.Equal(t, []string{"p1.jpg"}, story.Photos)

	require.NoError(t, s.UpdateStoryTitle(ctx, owner, story.ID, "New"))
	require.NoError(t, s.UpdateStoryDate(ctx, owner, story.ID, "2024-01-01"))
	require.NoError(t, s.SetStoryPeople(ctx, owner, story.ID, []int64{a.ID}))
	require.NoError(t, s.SetStoryLocation(ctx, owner, story.ID, nil))

	got, err := s.GetStory(ctx, owner, story.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "2024-01-01", got.Date)
	assert.Equal(t, []int64{a.ID}, got.PeopleIDs)
	assert.Nil(t, got.LocationID)
	assert.Empty(t, got.LocationName)

	_, err = s.CreateStory(ctx, &types.Story{OwnerID: owner, Title: "Second", Content: "Second."})
	require.NoError(t, err)
	list, err := s.ListStories(ctx, owner, storage.ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = s.ListStories(ctx, owner, storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.DeleteStory(ctx, owner, story.ID))
	_, err = s.GetStory(ctx, owner, story.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.SetStoryPeople(ctx, owner, story.ID, nil), storage.ErrNotFound)
}

func testTransactionRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	err := s.InTx(ctx, func(r storage.Repository) error {
		if _, _, err := r.GetOrCreatePerson(ctx, owner, "Ghost"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindPersonByName(ctx, owner, "Ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.InTx(ctx, func(r storage.Repository) error {
		_, _, err := r.GetOrCreatePerson(ctx, owner, "Kept")
		return err
	})
	require.NoError(t, err)
	_, err = s.FindPersonByName(ctx, owner, "Kept")
	assert.NoError(t, err)
}

func testMergePeople(t *testing.T, s storage.Store) {
	ctx := context.Background()
	keep := mustPerson(t, s, "John")
	drop := mustPerson(t, s, "john", "Johnny")
	kid := mustPerson(t, s, "Kid")
	friend := mustPerson(t, s, "Friend")

	_, err := s.CreateRelationship(ctx, owner, keep.ID, kid.ID, types.DefaultRelationshipType)
	require.NoError(t, err)
	_, err = s.CreateRelationship(ctx, owner, drop.ID, kid.ID, types.DefaultRelationshipType)
	require.NoError(t, err)
	_, err = s.CreateFriendship(ctx, owner, friend.ID, drop.ID)
	require.NoError(t, err)

	groups, err := s.DuplicatePeople(ctx, owner)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []int64{keep.ID, drop.ID}, groups[0].IDs)

	require.NoError(t, s.MergePeople(ctx, owner, keep.ID, []int64{drop.ID}))

	rels, err := s.ListRelationships(ctx, owner)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, keep.ID, rels[0].ParentID)

	friends, err := s.FriendshipsOf(ctx, owner, keep.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.True(t, friends[0].Matches(keep.ID, friend.ID))

	got, err := s.GetPerson(ctx, owner, keep.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"john", "Johnny"}, got.Nicknames)

	groups, err = s.DuplicatePeople(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func testDuplicatePeopleFoldsUnicode(t *testing.T, s storage.Store) {
	upper := mustPerson(t, s, "Émile")
	mustPerson(t, s, "Öz")
	lower := mustPerson(t, s, "émile")

	groups, err := s.DuplicatePeople(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Émile", groups[0].Name)
	assert.Equal(t, []int64{upper.ID, lower.ID}, groups[0].IDs)
}

func testMergeDropsEdgesBetweenMerged(t *testing.T, s storage.Store) {
	ctx := context.Background()
	keep := mustPerson(t, s, "Ann")
	drop := mustPerson(t, s, "ann")
	other := mustPerson(t, s, "Other")

	_, err := s.CreateRelationship(ctx, owner, keep.ID, drop.ID, types.DefaultRelationshipType)
	require.NoError(t, err)
	_, err = s.CreateRelationship(ctx, owner, drop.ID, other.ID, types.DefaultRelationshipType)
	require.NoError(t, err)
	_, err = s.CreateFriendship(ctx, owner, drop.ID, keep.ID)
	require.NoError(t, err)

	require.NoError(t, s.MergePeople(ctx, owner, keep.ID, []int64{drop.ID}))

	rels, err := s.ListRelationships(ctx, owner)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, keep.ID, rels[0].ParentID)
	assert.Equal(t, other.ID, rels[0].ChildID)

	friends, err := s.ListFriendships(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func testListStoriesPagePeople(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustPerson(t, s, "A")
	b := mustPerson(t, s, "B")

	first, err := s.CreateStory(ctx, &types.Story{OwnerID: owner, Title: "One", Content: "One.", PeopleIDs: []int64{a.ID}})
	require.NoError(t, err)
	second, err := s.CreateStory(ctx, &types.Story{OwnerID: owner, Title: "Two", Content: "Two.", PeopleIDs: []int64{b.ID, a.ID}})
	require.NoError(t, err)
	_, err = s.CreateStory(ctx, &types.Story{OwnerID: owner, Title: "Three", Content: "Three."})
	require.NoError(t, err)

	page, err := s.ListStories(ctx, owner, storage.ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, second.ID, page[0].ID)
	assert.Equal(t, []int64{b.ID, a.ID}, page[0].PeopleIDs)
	assert.Equal(t, first.ID, page[1].ID)
	assert.Equal(t, []int64{a.ID}, page[1].PeopleIDs)

	empty, err := s.ListStories(ctx, owner, storage.ListOptions{Limit: 5, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
