package engine

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/scrypster/kinstory/internal/identity"
	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

const (
	maxTitleRunes = 60
	dateLayout    = "2006-01-02"
)

// StoryTitle derives a title from the first sentence of content. Sentences
// longer than 60 characters are cut to 57 and suffixed with "...".
func StoryTitle(content string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(content), ".")
	if utf8.RuneCountInString(first) <= maxTitleRunes {
		return first
	}
	runes := []rune(first)
	return strings.TrimRightFunc(string(runes[:maxTitleRunes-3]), unicode.IsSpace) + "..."
}

// CreateStory stores a story. People are the explicit references plus
// every person mentioned in the content; the location is resolved from the
// input's id or name. Nothing is written if any resolution fails.
func (e *Engine) CreateStory(ctx context.Context, owner string, in types.StoryInput) (*types.Story, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, invalid("create story: %v", err)
	}

	names, err := e.mentionedPeople(ctx, in.Content)
	if err != nil {
		return nil, err
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = e.now().Format(dateLayout)
	}
	story := &types.Story{
		OwnerID: owner,
		Title:   StoryTitle(in.Content),
		Content: in.Content,
		Date:    date,
		Photos:  in.Photos,
	}

	var created *types.Story
	err = e.withOwner(ctx, owner, func(repo storage.Repository) error {
		ids, err := e.resolvePeople(ctx, repo, owner, in.People, names)
		if err != nil {
			return err
		}
		story.PeopleIDs = ids

		story.LocationID, err = e.places.Resolve(ctx, repo, owner, in.Location())
		if err != nil {
			return err
		}

		created, err = repo.CreateStory(ctx, story)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("story created",
		zap.String("owner", owner),
		zap.Int64("story_id", created.ID),
		zap.Int("people", len(created.PeopleIDs)))
	e.publish(StoryCreated, owner, created.ID)
	return created, nil
}

// GetStory returns one story with its people and location name.
func (e *Engine) GetStory(ctx context.Context, owner string, id int64) (*types.Story, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.store.GetStory(ctx, owner, id)
}

// ListStories returns a page of the owner's stories, newest first by default.
func (e *Engine) ListStories(ctx context.Context, owner string, opts storage.ListOptions) ([]types.Story, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.store.ListStories(ctx, owner, opts)
}

// UpdateStoryTitle replaces the title.
func (e *Engine) UpdateStoryTitle(ctx context.Context, owner string, id int64, u types.StoryTitleUpdate) (*types.Story, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, invalid("update story title: %v", err)
	}
	return e.updateStory(ctx, owner, id, func(repo storage.Repository) error {
		return repo.UpdateStoryTitle(ctx, owner, id, strings.TrimSpace(u.Title))
	})
}

// UpdateStoryDate replaces the date.
func (e *Engine) UpdateStoryDate(ctx context.Context, owner string, id int64, u types.StoryDateUpdate) (*types.Story, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, invalid("update story date: %v", err)
	}
	return e.updateStory(ctx, owner, id, func(repo storage.Repository) error {
		return repo.UpdateStoryDate(ctx, owner, id, strings.TrimSpace(u.Date))
	})
}

// UpdateStoryPeople resolves the references and replaces the story's people.
// An empty list unlinks everybody.
func (e *Engine) UpdateStoryPeople(ctx context.Context, owner string, id int64, u types.StoryPeopleUpdate) (*types.Story, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.updateStory(ctx, owner, id, func(repo storage.Repository) error {
		if _, err := repo.GetStory(ctx, owner, id); err != nil {
			return err
		}
		ids, err := e.people.ResolveRefs(ctx, repo, owner, u.People)
		if err != nil {
			return err
		}
		return repo.SetStoryPeople(ctx, owner, id, identity.MergeIDs(ids))
	})
}

// UpdateStoryLocation resolves the reference and replaces or clears the
// story's location.
func (e *Engine) UpdateStoryLocation(ctx context.Context, owner string, id int64, u types.StoryLocationUpdate) (*types.Story, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.updateStory(ctx, owner, id, func(repo storage.Repository) error {
		if _, err := repo.GetStory(ctx, owner, id); err != nil {
			return err
		}
		loc, err := e.places.Resolve(ctx, repo, owner, u.Location())
		if err != nil {
			return err
		}
		return repo.SetStoryLocation(ctx, owner, id, loc)
	})
}

func (e *Engine) updateStory(ctx context.Context, owner string, id int64, fn func(storage.Repository) error) (*types.Story, error) {
	var s *types.Story
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		if err := fn(repo); err != nil {
			return err
		}
		var err error
		s, err = repo.GetStory(ctx, owner, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(StoryUpdated, owner, id)
	return s, nil
}

// DeleteStory removes the story and its person links.
func (e *Engine) DeleteStory(ctx context.Context, owner string, id int64) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		return repo.DeleteStory(ctx, owner, id)
	}); err != nil {
		return err
	}
	e.publish(StoryDeleted, owner, id)
	return nil
}
