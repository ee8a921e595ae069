package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

const storySelect = `
	SELECT s.id, s.owner_id, s.title, s.content, s.story_date, s.location_id,
	       COALESCE(l.name, ''), s.photos, s.created_at
	FROM stories s
	LEFT JOIN locations l ON l.id = s.location_id AND l.owner_id = s.owner_id`

func scanStory(row rowScanner) (*types.Story, error) {
	var s types.Story
	var location sql.NullInt64
	var photos string
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Content, &s.Date,
		&location, &s.LocationName, &photos, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.LocationID = int64Ptr(location)
	s.Photos = []string{}
	if photos != "" {
		if err := json.Unmarshal([]byte(photos), &s.Photos); err != nil {
			return nil, fmt.Errorf("decode photos of story %d: %w", s.ID, err)
		}
	}
	s.PeopleIDs = []int64{}
	return &s, nil
}

func encodePhotos(photos []string) (string, error) {
	if photos == nil {
		photos = []string{}
	}
	b, err := json.Marshal(photos)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateStory inserts the story and its ordered person links.
func (r *repo) CreateStory(ctx context.Context, in *types.Story) (*types.Story, error) {
	photos, err := encodePhotos(in.Photos)
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}

	var id int64
	err = r.queryRow(ctx, `
		INSERT INTO stories (owner_id, title, content, story_date, location_id, photos)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		in.OwnerID, in.Title, in.Content, in.Date, nullableInt(in.LocationID), photos).Scan(&id)
	if err != nil {
		return nil, r.fail("create story", err)
	}

	if err := r.insertStoryPeople(ctx, id, in.PeopleIDs); err != nil {
		return nil, err
	}
	return r.GetStory(ctx, in.OwnerID, id)
}

func (r *repo) insertStoryPeople(ctx context.Context, storyID int64, people []int64) error {
	for i, personID := range people {
		if _, err := r.exec(ctx,
			`INSERT INTO story_people (story_id, person_id, position) VALUES (?, ?, ?)`,
			storyID, personID, i); err != nil {
			return r.fail("link story person", err)
		}
	}
	return nil
}

// GetStory returns one story with its people and location name.
func (r *repo) GetStory(ctx context.Context, owner string, id int64) (*types.Story, error) {
	s, err := scanStory(r.queryRow(ctx, storySelect+` WHERE s.id = ? AND s.owner_id = ?`, id, owner))
	if err != nil {
		return nil, r.fail("get story", err)
	}

	links, err := r.storyPeople(ctx, `WHERE sp.story_id = ?`, id)
	if err != nil {
		return nil, err
	}
	if ids, ok := links[id]; ok {
		s.PeopleIDs = ids
	}
	return s, nil
}

// ListStories returns a page of the owner's stories.
func (r *repo) ListStories(ctx context.Context, owner string, opts storage.ListOptions) ([]types.Story, error) {
	opts.Normalize()
	order := "DESC"
	if opts.SortOrder == "asc" {
		order = "ASC"
	}

	rows, err := r.query(ctx, storySelect+`
		WHERE s.owner_id = ?
		ORDER BY s.created_at `+order+`, s.id `+order+`
		LIMIT ? OFFSET ?`, owner, opts.Limit, opts.Offset)
	if err != nil {
		return nil, r.fail("list stories", err)
	}

	stories := []types.Story{}
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			rows.Close()
			return nil, r.fail("scan story", err)
		}
		stories = append(stories, *s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, r.fail("list stories", err)
	}

	if len(stories) == 0 {
		return stories, nil
	}
	ids := make([]any, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	links, err := r.storyPeople(ctx, `WHERE sp.story_id IN (`+placeholders+`)`, ids...)
	if err != nil {
		return nil, err
	}
	for i := range stories {
		if ids, ok := links[stories[i].ID]; ok {
			stories[i].PeopleIDs = ids
		}
	}
	return stories, nil
}

func (r *repo) storyPeople(ctx context.Context, where string, args ...any) (map[int64][]int64, error) {
	rows, err := r.query(ctx,
		`SELECT sp.story_id, sp.person_id FROM story_people sp `+where+` ORDER BY sp.story_id, sp.position`, args...)
	if err != nil {
		return nil, r.fail("list story people", err)
	}
	defer rows.Close()

	links := make(map[int64][]int64)
	for rows.Next() {
		var storyID, personID int64
		if err := rows.Scan(&storyID, &personID); err != nil {
			return nil, r.fail("scan story person", err)
		}
		links[storyID] = append(links[storyID], personID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list story people", err)
	}
	return links, nil
}

// UpdateStoryTitle replaces the title.
func (r *repo) UpdateStoryTitle(ctx context.Context, owner string, id int64, title string) error {
	res, err := r.exec(ctx, `UPDATE stories SET title = ? WHERE id = ? AND owner_id = ?`, title, id, owner)
	if err != nil {
		return r.fail("update story title", err)
	}
	return r.expectRow("update story title", res)
}

// UpdateStoryDate replaces the date.
func (r *repo) UpdateStoryDate(ctx context.Context, owner string, id int64, date string) error {
	res, err := r.exec(ctx, `UPDATE stories SET story_date = ? WHERE id = ? AND owner_id = ?`, date, id, owner)
	if err != nil {
		return r.fail("update story date", err)
	}
	return r.expectRow("update story date", res)
}

// SetStoryPeople replaces the story's person links.
func (r *repo) SetStoryPeople(ctx context.Context, owner string, id int64, people []int64) error {
	var one int
	if err := r.queryRow(ctx, `SELECT 1 FROM stories WHERE id = ? AND owner_id = ?`, id, owner).Scan(&one); err != nil {
		return r.fail("set story people", err)
	}
	if _, err := r.exec(ctx, `DELETE FROM story_people WHERE story_id = ?`, id); err != nil {
		return r.fail("clear story people", err)
	}
	return r.insertStoryPeople(ctx, id, people)
}

// SetStoryLocation replaces or clears the location.
func (r *repo) SetStoryLocation(ctx context.Context, owner string, id int64, locationID *int64) error {
	res, err := r.exec(ctx, `UPDATE stories SET location_id = ? WHERE id = ? AND owner_id = ?`,
		nullableInt(locationID), id, owner)
	if err != nil {
		return r.fail("update story location", err)
	}
	return r.expectRow("update story location", res)
}

// DeleteStory removes the story and its person links.
func (r *repo) DeleteStory(ctx context.Context, owner string, id int64) error {
	res, err := r.exec(ctx, `DELETE FROM stories WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return r.fail("delete story", err)
	}
	if err := r.expectRow("delete story", res); err != nil {
		return err
	}
	if _, err := r.exec(ctx, `DELETE FROM story_people WHERE story_id = ?`, id); err != nil {
		return r.fail("delete story people", err)
	}
	return nil
}
