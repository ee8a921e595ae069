package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

// CreatePerson adds a person explicitly. It returns ErrConflict when the
// canonical name or one of the nicknames is already taken for the owner.
func (e *Engine) CreatePerson(ctx context.Context, owner string, in types.NewPerson) (*types.Person, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, invalid("create person: %v", err)
	}
	for i := range in.Nicknames {
		in.Nicknames[i] = strings.TrimSpace(in.Nicknames[i])
	}

	var p *types.Person
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		var err error
		p, err = repo.CreatePerson(ctx, owner, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("person created", zap.String("owner", owner), zap.Int64("person_id", p.ID))
	e.publish(PersonCreated, owner, p.ID)
	return p, nil
}

// GetPerson returns one person.
func (e *Engine) GetPerson(ctx context.Context, owner string, id int64) (*types.Person, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.store.GetPerson(ctx, owner, id)
}

// ListPeople returns the owner's people ordered by name.
func (e *Engine) ListPeople(ctx context.Context, owner string) ([]types.Person, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.store.ListPeople(ctx, owner)
}

// UpdatePersonAttributes sets the attributes present in attrs.
func (e *Engine) UpdatePersonAttributes(ctx context.Context, owner string, id int64, attrs types.PersonAttributes) (*types.Person, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if err := attrs.Validate(); err != nil {
		return nil, invalid("update person: %v", err)
	}

	p, err := e.store.UpdatePersonAttributes(ctx, owner, id, attrs)
	if err != nil {
		return nil, err
	}
	e.publish(PersonUpdated, owner, id)
	return p, nil
}

// RenamePerson changes the canonical name. Renaming onto a name another
// person already holds is a conflict.
func (e *Engine) RenamePerson(ctx context.Context, owner string, id int64, name string) (*types.Person, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("rename person: name is required")
	}

	var p *types.Person
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		var err error
		p, err = repo.RenamePerson(ctx, owner, id, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(PersonUpdated, owner, id)
	return p, nil
}

// AddNickname maps nickname to the person.
func (e *Engine) AddNickname(ctx context.Context, owner string, id int64, nickname string) (*types.Person, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, invalid("add nickname: nickname is required")
	}

	var p *types.Person
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		var err error
		p, err = repo.AddNickname(ctx, owner, id, nickname)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(PersonUpdated, owner, id)
	return p, nil
}

// RemoveNickname unmaps nickname from the person.
func (e *Engine) RemoveNickname(ctx context.Context, owner string, id int64, nickname string) (*types.Person, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, invalid("remove nickname: nickname is required")
	}

	p, err := e.store.RemoveNickname(ctx, owner, id, nickname)
	if err != nil {
		return nil, err
	}
	e.publish(PersonUpdated, owner, id)
	return p, nil
}

// DeletePerson removes the person and its nicknames. Relationship and
// friendship edges that mention the person stay behind; the family tree
// skips them.
func (e *Engine) DeletePerson(ctx context.Context, owner string, id int64) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		return repo.DeletePerson(ctx, owner, id)
	}); err != nil {
		return err
	}

	e.log.Info("person deleted", zap.String("owner", owner), zap.Int64("person_id", id))
	e.publish(PersonDeleted, owner, id)
	return nil
}

// CreateLocation adds a location explicitly.
func (e *Engine) CreateLocation(ctx context.Context, owner string, in types.NewLocation) (*types.Location, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, invalid("create location: %v", err)
	}

	var l *types.Location
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		var err error
		l, err = repo.CreateLocation(ctx, owner, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(LocationCreated, owner, l.ID)
	return l, nil
}

// GetLocation returns one location.
func (e *Engine) GetLocation(ctx context.Context, owner string, id int64) (*types.Location, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.store.GetLocation(ctx, owner, id)
}

// ListLocations returns the owner's locations ordered by name.
func (e *Engine) ListLocations(ctx context.Context, owner string) ([]types.Location, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.store.ListLocations(ctx, owner)
}
