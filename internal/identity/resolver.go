// Package identity turns name mentions into owner-scoped canonical identities
// and assembles the relationship graph from stored edges.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

// PersonStore is what the Resolver needs from storage. Pass the transaction
// bound storage.Repository to make a whole batch atomic.
type PersonStore interface {
	FindPersonByName(ctx context.Context, owner, name string) (int64, error)
	FindPersonByAlias(ctx context.Context, owner, alias string) (int64, error)
	GetOrCreatePerson(ctx context.Context, owner, name string) (int64, bool, error)
}

// Resolver maps person references to canonical person ids.
//
// A name is matched, in order, against the owner's canonical names, then
// the owner's aliases, and is otherwise created as a new person. Identity
// references are accepted without an existence check.
type Resolver struct {
	log *zap.Logger
}

// NewResolver creates a Resolver. A nil logger discards output.
func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{log: log}
}

// ResolveRefs returns one canonical id per reference, in input order. The
// same name appearing twice in refs resolves once and yields the same id.
// Name references are trimmed; a blank name is ErrInvalidInput.
func (r *Resolver) ResolveRefs(ctx context.Context, store PersonStore, owner string, refs []types.PersonRef) ([]int64, error) {
	ids := make([]int64, len(refs))
	batch := make(map[string]int64)

	for i, ref := range refs {
		if ref.IsIdentity() {
			ids[i] = ref.ID()
			personResolutions.WithLabelValues(OutcomeIdentity).Inc()
			continue
		}

		name := strings.TrimSpace(ref.Name())
		if name == "" {
			return nil, fmt.Errorf("resolve person %d: blank name: %w", i, storage.ErrInvalidInput)
		}
		if id, ok := batch[name]; ok {
			ids[i] = id
			continue
		}

		id, outcome, err := r.resolveName(ctx, store, owner, name)
		if err != nil {
			return nil, fmt.Errorf("resolve person %q: %w", name, err)
		}
		personResolutions.WithLabelValues(outcome).Inc()
		r.log.Debug("resolved person",
			zap.String("owner", owner),
			zap.String("name", name),
			zap.Int64("person_id", id),
			zap.String("outcome", outcome))

		batch[name] = id
		ids[i] = id
	}
	return ids, nil
}

// ResolveNames resolves plain names. See ResolveRefs.
func (r *Resolver) ResolveNames(ctx context.Context, store PersonStore, owner string, names []string) ([]int64, error) {
	refs := make([]types.PersonRef, len(names))
	for i, n := range names {
		refs[i] = types.ByName(n)
	}
	return r.ResolveRefs(ctx, store, owner, refs)
}

// ResolveRef resolves a single reference.
func (r *Resolver) ResolveRef(ctx context.Context, store PersonStore, owner string, ref types.PersonRef) (int64, error) {
	ids, err := r.ResolveRefs(ctx, store, owner, []types.PersonRef{ref})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

func (r *Resolver) resolveName(ctx context.Context, store PersonStore, owner, name string) (int64, string, error) {
	id, err := store.FindPersonByName(ctx, owner, name)
	if err == nil {
		return id, OutcomeCanonical, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, "", err
	}

	id, err = store.FindPersonByAlias(ctx, owner, name)
	if err == nil {
		return id, OutcomeAlias, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, "", err
	}

	// Another request may have inserted the name since the lookup; the
	// store then hands back the existing row.
	id, created, err := store.GetOrCreatePerson(ctx, owner, name)
	if err != nil {
		return 0, "", err
	}
	if !created {
		return id, OutcomeCanonical, nil
	}
	return id, OutcomeCreated, nil
}

// MergeIDs unions the lists into one set, keeping first-appearance order.
func MergeIDs(lists ...[]int64) []int64 {
	out := []int64{}
	seen := make(map[int64]struct{})
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
