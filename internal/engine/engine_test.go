package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/internal/storage/sqlite"
	"github.com/scrypster/kinstory/pkg/types"
)

const owner = "owner-1"

var fixedNow = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

// stubExtractor returns fixed mentions, or err when set.
type stubExtractor struct {
	mentions []types.Mention
	err      error
	calls    int
}

func (s *stubExtractor) Extract(context.Context, string) ([]types.Mention, error) {
	s.calls++
	return s.mentions, s.err
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

type testEngine struct {
	*Engine
	store     *sqlite.Store
	extractor *stubExtractor
	events    *recorder
}

// newTestEngine creates an Engine over an in-memory SQLite store with a stub
// extractor and a fixed clock.
func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	store, err := sqlite.Open(context.Background(), ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ext := &stubExtractor{}
	rec := &recorder{}
	eng, err := New(store, Options{
		Extractor: ext,
		Events:    rec,
		Logger:    zaptest.NewLogger(t),
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	return &testEngine{Engine: eng, store: store, extractor: ext, events: rec}
}

func mustPerson(t *testing.T, te *testEngine, name string, nicknames ...string) *types.Person {
	t.Helper()
	p, err := te.CreatePerson(context.Background(), owner, types.NewPerson{Name: name, Nicknames: nicknames})
	require.NoError(t, err)
	return p
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
}

func TestResolvePeople_AliasAndNewName(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	robert := mustPerson(t, te, "Robert", "Bob")

	ids, err := te.ResolvePeople(ctx, owner, []types.PersonRef{types.ByName("Bob"), types.ByName("Alice")}, "")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, robert.ID, ids[0])

	people, err := te.ListPeople(ctx, owner)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "Alice", people[0].Name)
	assert.Equal(t, ids[1], people[0].ID)
}

func TestResolvePeople_MergesMentionsWithExplicit(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	jane := mustPerson(t, te, "Jane")

	te.extractor.mentions = []types.Mention{
		{Text: "John Smith", Label: types.LabelPerson},
		{Text: "John", Label: types.LabelPerson},
		{Text: "Jane", Label: types.LabelPerson},
		{Text: "Paris", Label: types.LabelLocation},
	}

	ids, err := te.ResolvePeople(ctx, owner, []types.PersonRef{types.ByIdentity(jane.ID)},
		"John Smith met Jane in Paris. John was late.")
	require.NoError(t, err)
	assert.Equal(t, 1, te.extractor.calls)

	people, err := te.ListPeople(ctx, owner)
	require.NoError(t, err)
	names := make([]string, len(people))
	for i, p := range people {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"Jane", "John Smith"}, names)

	require.Len(t, ids, 2)
	assert.Equal(t, jane.ID, ids[0])
}

func TestResolvePeople_SameNameTwiceOnce(t *testing.T) {
	te := newTestEngine(t)

	ids, err := te.ResolvePeople(context.Background(), owner,
		[]types.PersonRef{types.ByName("Ada"), types.ByName("Ada")}, "")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestResolvePeople_ExtractionFailureWritesNothing(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.extractor.err = errors.New("model unavailable")

	_, err := te.ResolvePeople(ctx, owner, []types.PersonRef{types.ByName("Ada")}, "Ada went home")
	require.Error(t, err)

	people, err := te.ListPeople(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, people)
}

func TestResolvePeople_RollsBackOnInvalidReference(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	_, err := te.ResolvePeople(ctx, owner, []types.PersonRef{types.ByName("Ada"), types.ByName("  ")}, "")
	require.ErrorIs(t, err, storage.ErrInvalidInput)

	people, err := te.ListPeople(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, people, "people created earlier in a failed batch must be rolled back")
}

func TestRequireOwner(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	_, err := te.ResolvePeople(ctx, " ", nil, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	_, err = te.FamilyTree(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	err = te.DeleteStory(ctx, "", 1)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestResolveLocation(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	none, err := te.ResolveLocation(ctx, owner, types.LocationRef{})
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := te.ResolveLocation(ctx, owner, types.LocationByName("Lisbon"))
	require.NoError(t, err)
	require.NotNil(t, first)

	again, err := te.ResolveLocation(ctx, owner, types.LocationByName("Lisbon"))
	require.NoError(t, err)
	assert.Equal(t, *first, *again)

	byID, err := te.ResolveLocation(ctx, owner, types.LocationByIdentity(*first))
	require.NoError(t, err)
	assert.Equal(t, *first, *byID)

	locations, err := te.ListLocations(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, locations, 1)
}

func TestAddRelationship(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate is a conflict", func(t *testing.T) {
		te := newTestEngine(t)
		p1 := mustPerson(t, te, "P1")
		p2 := mustPerson(t, te, "P2")

		edge, err := te.AddRelationship(ctx, owner, types.ByIdentity(p1.ID), types.ByIdentity(p2.ID), "parent-child")
		require.NoError(t, err)
		assert.Equal(t, p1.ID, edge.ParentID)
		assert.Equal(t, p2.ID, edge.ChildID)

		_, err = te.AddRelationship(ctx, owner, types.ByIdentity(p1.ID), types.ByIdentity(p2.ID), "parent-child")
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("type defaults", func(t *testing.T) {
		te := newTestEngine(t)
		edge, err := te.AddRelationship(ctx, owner, types.ByName("Mum"), types.ByName("Kid"), "")
		require.NoError(t, err)
		assert.Equal(t, types.DefaultRelationshipType, edge.Type)

		people, err := te.ListPeople(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, people, 2)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		te := newTestEngine(t)
		_, err := te.AddRelationship(ctx, owner, types.ByName("Mum"), types.ByIdentity(999), "")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		people, err := te.ListPeople(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, people)
	})

	t.Run("ids from another owner are not found", func(t *testing.T) {
		te := newTestEngine(t)
		p := mustPerson(t, te, "Someone")
		_, err := te.AddRelationship(ctx, "owner-2", types.ByIdentity(p.ID), types.ByName("Kid"), "")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		te := newTestEngine(t)
		edge, err := te.AddRelationship(ctx, owner, types.ByName("A"), types.ByName("B"), "")
		require.NoError(t, err)

		require.NoError(t, te.DeleteRelationship(ctx, owner, edge.ParentID, edge.ChildID))
		ev := te.events.last()
		assert.Equal(t, RelationshipDeleted, ev.Type)
		assert.Equal(t, edge.ID, ev.ID)
		assert.ErrorIs(t, te.DeleteRelationship(ctx, owner, edge.ParentID, edge.ChildID), storage.ErrNotFound)

		edges, err := te.ListRelationships(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, edges)
	})
}

func TestFriendships(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	a := mustPerson(t, te, "A")
	b := mustPerson(t, te, "B")
	c := mustPerson(t, te, "C")

	ab, err := te.AddFriendship(ctx, owner, types.ByIdentity(a.ID), types.ByIdentity(b.ID))
	require.NoError(t, err)
	_, err = te.AddFriendship(ctx, owner, types.ByIdentity(b.ID), types.ByIdentity(a.ID))
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = te.AddFriendship(ctx, owner, types.ByIdentity(c.ID), types.ByIdentity(a.ID))
	require.NoError(t, err)

	friends, err := te.Friends(ctx, owner, a.ID)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, b.ID, friends[0].ID)
	assert.Equal(t, c.ID, friends[1].ID)

	friends, err = te.Friends(ctx, owner, b.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, a.ID, friends[0].ID)

	require.NoError(t, te.DeleteFriendship(ctx, owner, b.ID, a.ID))
	ev := te.events.last()
	assert.Equal(t, FriendshipDeleted, ev.Type)
	assert.Equal(t, ab.ID, ev.ID)
	edges, err := te.ListFriendships(ctx, owner)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].Matches(a.ID, c.ID))

	_, err = te.Friends(ctx, owner, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFriends_SkipsDeletedPeople(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	a := mustPerson(t, te, "A")
	b := mustPerson(t, te, "B")

	_, err := te.AddFriendship(ctx, owner, types.ByIdentity(a.ID), types.ByIdentity(b.ID))
	require.NoError(t, err)
	require.NoError(t, te.DeletePerson(ctx, owner, b.ID))

	friends, err := te.Friends(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestFamilyTree(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	p1 := mustPerson(t, te, "P1")
	p2 := mustPerson(t, te, "P2")
	p3 := mustPerson(t, te, "P3")

	_, err := te.AddRelationship(ctx, owner, types.ByIdentity(p1.ID), types.ByIdentity(p2.ID), "")
	require.NoError(t, err)
	_, err = te.AddRelationship(ctx, owner, types.ByIdentity(p2.ID), types.ByIdentity(p3.ID), "")
	require.NoError(t, err)

	tree, err := te.FamilyTree(ctx, owner)
	require.NoError(t, err)
	require.Len(t, tree, 3)

	nodes := make(map[int64]types.TreeNode)
	for _, n := range tree {
		nodes[n.ID] = n
	}
	assert.Equal(t, []int64{p2.ID}, nodes[p1.ID].Children)
	assert.Empty(t, nodes[p1.ID].Parents)
	assert.Equal(t, []int64{p3.ID}, nodes[p2.ID].Children)
	assert.Equal(t, []int64{p1.ID}, nodes[p2.ID].Parents)
	assert.Empty(t, nodes[p3.ID].Children)
	assert.Equal(t, []int64{p2.ID}, nodes[p3.ID].Parents)

	// Deleting P2 leaves both edges dangling; the tree ignores them.
	require.NoError(t, te.DeletePerson(ctx, owner, p2.ID))
	tree, err = te.FamilyTree(ctx, owner)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	for _, n := range tree {
		assert.Empty(t, n.Children)
		assert.Empty(t, n.Parents)
	}
}

func TestPeopleCRUD(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	_, err := te.CreatePerson(ctx, owner, types.NewPerson{Name: " "})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	p := mustPerson(t, te, " Robert ", "Bob")
	assert.Equal(t, "Robert", p.Name)

	_, err = te.CreatePerson(ctx, owner, types.NewPerson{Name: "Robert"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = te.UpdatePersonAttributes(ctx, owner, p.ID, types.PersonAttributes{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	bad := "X"
	_, err = te.UpdatePersonAttributes(ctx, owner, p.ID, types.PersonAttributes{Gender: &bad})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	born := "1950-02-01"
	male := types.GenderMale
	updated, err := te.UpdatePersonAttributes(ctx, owner, p.ID, types.PersonAttributes{BirthDate: &born, Gender: &male})
	require.NoError(t, err)
	require.NotNil(t, updated.BirthDate)
	assert.Equal(t, born, *updated.BirthDate)

	renamed, err := te.RenamePerson(ctx, owner, p.ID, "Rob")
	require.NoError(t, err)
	assert.Equal(t, "Rob", renamed.Name)
	assert.Equal(t, born, *renamed.BirthDate)

	withNick, err := te.AddNickname(ctx, owner, p.ID, "Bobby")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Bobby"}, withNick.Nicknames)

	other := mustPerson(t, te, "Other")
	_, err = te.AddNickname(ctx, owner, other.ID, "Bob")
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = te.RemoveNickname(ctx, owner, p.ID, "Nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	withoutNick, err := te.RemoveNickname(ctx, owner, p.ID, "Bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bobby"}, withoutNick.Nicknames)

	require.NoError(t, te.DeletePerson(ctx, owner, p.ID))
	_, err = te.GetPerson(ctx, owner, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, te.DeletePerson(ctx, owner, p.ID), storage.ErrNotFound)

	assert.Contains(t, te.events.types(), PersonDeleted)
}

func TestStoryTitle(t *testing.T) {
	long := strings.Repeat("a", 56) + "  bbbbbbbbbb"
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"first sentence", "We went to the lake. It rained.", "We went to the lake"},
		{"no period", "  Grandpa's boat  ", "Grandpa's boat"},
		{"exactly sixty", strings.Repeat("x", 60) + ". more", strings.Repeat("x", 60)},
		{"long is cut", strings.Repeat("y", 80), strings.Repeat("y", 57) + "..."},
		{"cut trims trailing space", long, strings.Repeat("a", 56) + "..."},
		{"multibyte", strings.Repeat("é", 61), strings.Repeat("é", 57) + "..."},
		{"leading period", ".hidden", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StoryTitle(tt.content))
		})
	}
}

func TestCreateStory(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	robert := mustPerson(t, te, "Robert", "Bob")

	te.extractor.mentions = []types.Mention{
		{Text: "Bob", Label: types.LabelPerson},
		{Text: "Alice", Label: types.LabelPerson},
		{Text: "Skye", Label: types.LabelLocation},
	}

	s, err := te.CreateStory(ctx, owner, types.StoryInput{
		Content:      "Bob and Alice sailed to Skye. The wind was fierce.",
		People:       []types.PersonRef{types.ByIdentity(robert.ID)},
		LocationName: "Skye",
		Photos:       []string{"boat.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob and Alice sailed to Skye", s.Title)
	assert.Equal(t, "2024-05-17", s.Date)
	assert.Equal(t, "Skye", s.LocationName)
	assert.Equal(t, []string{"boat.jpg"}, s.Photos)
	require.Len(t, s.PeopleIDs, 2)
	assert.Equal(t, robert.ID, s.PeopleIDs[0])

	got, err := te.GetStory(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.PeopleIDs, got.PeopleIDs)

	stories, err := te.ListStories(ctx, owner, storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, stories, 1)

	assert.Contains(t, te.events.types(), StoryCreated)
}

func TestCreateStory_ExplicitDateAndValidation(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	_, err := te.CreateStory(ctx, owner, types.StoryInput{Content: "   "})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	s, err := te.CreateStory(ctx, owner, types.StoryInput{Content: "Old times.", Date: "1969-07-20"})
	require.NoError(t, err)
	assert.Equal(t, "1969-07-20", s.Date)
	assert.Nil(t, s.LocationID)
	assert.Empty(t, s.PeopleIDs)
}

func TestCreateStory_FailedResolutionRollsBack(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	_, err := te.CreateStory(ctx, owner, types.StoryInput{
		Content:      "Picnic.",
		People:       []types.PersonRef{types.ByName("Ada"), types.ByName("")},
		LocationName: "Park",
	})
	require.ErrorIs(t, err, storage.ErrInvalidInput)

	people, err := te.ListPeople(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, people)
	stories, err := te.ListStories(ctx, owner, storage.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, stories)
	locations, err := te.ListLocations(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, locations)
}

func TestStoryUpdates(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	s, err := te.CreateStory(ctx, owner, types.StoryInput{Content: "A day out."})
	require.NoError(t, err)

	_, err = te.UpdateStoryTitle(ctx, owner, s.ID, types.StoryTitleUpdate{Title: " "})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	s, err = te.UpdateStoryTitle(ctx, owner, s.ID, types.StoryTitleUpdate{Title: "Day out"})
	require.NoError(t, err)
	assert.Equal(t, "Day out", s.Title)

	_, err = te.UpdateStoryDate(ctx, owner, s.ID, types.StoryDateUpdate{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	s, err = te.UpdateStoryDate(ctx, owner, s.ID, types.StoryDateUpdate{Date: "2001-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "2001-01-01", s.Date)

	s, err = te.UpdateStoryPeople(ctx, owner, s.ID, types.StoryPeopleUpdate{
		People: []types.PersonRef{types.ByName("Ann"), types.ByName("Ben"), types.ByName("Ann")},
	})
	require.NoError(t, err)
	assert.Len(t, s.PeopleIDs, 2)

	s, err = te.UpdateStoryLocation(ctx, owner, s.ID, types.StoryLocationUpdate{LocationName: "Beach"})
	require.NoError(t, err)
	assert.Equal(t, "Beach", s.LocationName)

	s, err = te.UpdateStoryLocation(ctx, owner, s.ID, types.StoryLocationUpdate{})
	require.NoError(t, err)
	assert.Nil(t, s.LocationID)

	_, err = te.UpdateStoryPeople(ctx, owner, 999, types.StoryPeopleUpdate{People: []types.PersonRef{types.ByName("Zed")}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = te.store.FindPersonByName(ctx, owner, "Zed")
	assert.ErrorIs(t, err, storage.ErrNotFound, "a failed update must not leave people behind")

	require.NoError(t, te.DeleteStory(ctx, owner, s.ID))
	ev := te.events.last()
	assert.Equal(t, StoryDeleted, ev.Type)
	assert.Equal(t, s.ID, ev.ID)
	_, err = te.GetStory(ctx, owner, s.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, te.DeleteStory(ctx, owner, s.ID), storage.ErrNotFound)
	assert.Equal(t, ev, te.events.last(), "failed delete publishes nothing")
}

func TestConcurrentResolutionCreatesOnePerson(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([][]int64, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = te.ResolvePeople(ctx, owner, []types.PersonRef{types.ByName("Newcomer")}, "")
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	people, err := te.ListPeople(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, people, 1)
}
