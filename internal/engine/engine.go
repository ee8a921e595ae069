// Package engine is the entry point for every kinstory operation. It
// orchestrates extraction, identity resolution and storage, serialising
// resolution per owner and running each batch in one transaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/kinstory/internal/extraction"
	"github.com/scrypster/kinstory/internal/identity"
	"github.com/scrypster/kinstory/internal/lock"
	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

// Options holds the engine's optional collaborators. Zero values select
// no extraction, an in-process lock, no events and a no-op logger.
type Options struct {
	Extractor extraction.Extractor
	Locker    lock.Locker
	Events    EventPublisher
	Logger    *zap.Logger

	// PersonLabels are the mention labels resolved as people (default: PER).
	PersonLabels []string

	// Now is the clock used for default story dates.
	Now func() time.Time
}

// Engine implements the owner-scoped operations.
type Engine struct {
	store        storage.Store
	extractor    extraction.Extractor
	locker       lock.Locker
	events       EventPublisher
	people       *identity.Resolver
	places       *identity.LocationResolver
	personLabels []string
	log          *zap.Logger
	now          func() time.Time
}

// New creates an engine over store.
func New(store storage.Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine: store is required")
	}
	if opts.Extractor == nil {
		opts.Extractor = extraction.Nop{}
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	if opts.Events == nil {
		opts.Events = NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.PersonLabels) == 0 {
		opts.PersonLabels = []string{types.LabelPerson}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		store:        store,
		extractor:    opts.Extractor,
		locker:       opts.Locker,
		events:       opts.Events,
		people:       identity.NewResolver(opts.Logger),
		places:       identity.NewLocationResolver(opts.Logger),
		personLabels: opts.PersonLabels,
		log:          opts.Logger,
		now:          opts.Now,
	}, nil
}

// Ping checks the store.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// withOwner runs fn in one transaction while holding the owner's lock.
func (e *Engine) withOwner(ctx context.Context, owner string, fn func(storage.Repository) error) error {
	unlock, err := e.locker.Lock(ctx, owner)
	if err != nil {
		return fmt.Errorf("lock owner: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			e.log.Warn("failed to release owner lock", zap.String("owner", owner), zap.Error(err))
		}
	}()
	return e.store.InTx(ctx, fn)
}

// mentionedPeople runs extraction and returns the maximal person names.
func (e *Engine) mentionedPeople(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	mentions, err := e.extractor.Extract(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extract mentions: %w", err)
	}
	return identity.DeduplicateMentions(identity.PersonNames(mentions, e.personLabels...)), nil
}

// ResolvePeople extracts person mentions from rawText, resolves them and the
// explicit references for owner, and returns the union of the ids. The
// resolution runs as one transaction under the owner lock, so a failure
// creates nobody.
func (e *Engine) ResolvePeople(ctx context.Context, owner string, explicit []types.PersonRef, rawText string) ([]int64, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	names, err := e.mentionedPeople(ctx, rawText)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = e.withOwner(ctx, owner, func(repo storage.Repository) error {
		var err error
		ids, err = e.resolvePeople(ctx, repo, owner, explicit, names)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (e *Engine) resolvePeople(ctx context.Context, repo storage.Repository, owner string, explicit []types.PersonRef, names []string) ([]int64, error) {
	explicitIDs, err := e.people.ResolveRefs(ctx, repo, owner, explicit)
	if err != nil {
		return nil, err
	}
	mentionIDs, err := e.people.ResolveNames(ctx, repo, owner, names)
	if err != nil {
		return nil, err
	}
	return identity.MergeIDs(explicitIDs, mentionIDs), nil
}

// ResolveLocation returns the location id for ref, creating a named location
// on first sight. An empty reference yields nil.
func (e *Engine) ResolveLocation(ctx context.Context, owner string, ref types.LocationRef) (*int64, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if ref.IsNone() {
		return nil, nil
	}

	var id *int64
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		var err error
		id, err = e.places.Resolve(ctx, repo, owner, ref)
		return err
	})
	return id, err
}

func requireOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("owner is required: %w", storage.ErrInvalidInput)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), storage.ErrInvalidInput)
}
