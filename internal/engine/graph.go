package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scrypster/kinstory/internal/identity"
	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

// endpoint resolves one side of an edge. Names resolve like mentions and may
// create a person; ids must already exist.
func (e *Engine) endpoint(ctx context.Context, repo storage.Repository, owner string, ref types.PersonRef) (int64, error) {
	if !ref.IsIdentity() {
		return e.people.ResolveRef(ctx, repo, owner, ref)
	}
	ok, err := repo.PersonExists(ctx, owner, ref.ID())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("person %d: %w", ref.ID(), storage.ErrNotFound)
	}
	return ref.ID(), nil
}

// AddRelationship links parent to child. An empty relType means
// types.DefaultRelationshipType. A second edge for the same pair is a
// conflict and leaves no people behind.
func (e *Engine) AddRelationship(ctx context.Context, owner string, parent, child types.PersonRef, relType string) (*types.RelationshipEdge, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	relType = strings.TrimSpace(relType)
	if relType == "" {
		relType = types.DefaultRelationshipType
	}

	var edge *types.RelationshipEdge
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		parentID, err := e.endpoint(ctx, repo, owner, parent)
		if err != nil {
			return fmt.Errorf("resolve parent: %w", err)
		}
		childID, err := e.endpoint(ctx, repo, owner, child)
		if err != nil {
			return fmt.Errorf("resolve child: %w", err)
		}
		edge, err = repo.CreateRelationship(ctx, owner, parentID, childID, relType)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("relationship added",
		zap.String("owner", owner),
		zap.Int64("parent_id", edge.ParentID),
		zap.Int64("child_id", edge.ChildID))
	e.publish(RelationshipCreated, owner, edge.ID)
	return edge, nil
}

// DeleteRelationship removes the parent to child edge.
func (e *Engine) DeleteRelationship(ctx context.Context, owner string, parentID, childID int64) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	var edgeID int64
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		var err error
		edgeID, err = repo.DeleteRelationship(ctx, owner, parentID, childID)
		return err
	})
	if err != nil {
		return err
	}
	e.publish(RelationshipDeleted, owner, edgeID)
	return nil
}

// ListRelationships returns every relationship edge of the owner.
func (e *Engine) ListRelationships(ctx context.Context, owner string) ([]types.RelationshipEdge, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.store.ListRelationships(ctx, owner)
}

// AddFriendship links a and b. The pair is unordered: adding (b, a) after
// (a, b) is a conflict.
func (e *Engine) AddFriendship(ctx context.Context, owner string, a, b types.PersonRef) (*types.FriendshipEdge, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}

	var edge *types.FriendshipEdge
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		aID, err := e.endpoint(ctx, repo, owner, a)
		if err != nil {
			return fmt.Errorf("resolve first person: %w", err)
		}
		bID, err := e.endpoint(ctx, repo, owner, b)
		if err != nil {
			return fmt.Errorf("resolve second person: %w", err)
		}
		edge, err = repo.CreateFriendship(ctx, owner, aID, bID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(FriendshipCreated, owner, edge.ID)
	return edge, nil
}

// DeleteFriendship removes the pair in either order.
func (e *Engine) DeleteFriendship(ctx context.Context, owner string, a, b int64) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	var edgeID int64
	err := e.withOwner(ctx, owner, func(repo storage.Repository) error {
		var err error
		edgeID, err = repo.DeleteFriendship(ctx, owner, a, b)
		return err
	})
	if err != nil {
		return err
	}
	e.publish(FriendshipDeleted, owner, edgeID)
	return nil
}

// ListFriendships returns every friendship edge of the owner.
func (e *Engine) ListFriendships(ctx context.Context, owner string) ([]types.FriendshipEdge, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return e.store.ListFriendships(ctx, owner)
}

// Friends returns the people befriended with id. Friends that no longer
// exist are omitted.
func (e *Engine) Friends(ctx context.Context, owner string, id int64) ([]types.Person, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if _, err := e.store.GetPerson(ctx, owner, id); err != nil {
		return nil, err
	}

	var (
		edges  []types.FriendshipEdge
		people []types.Person
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		edges, err = e.store.FriendshipsOf(gctx, owner, id)
		return err
	})
	g.Go(func() error {
		var err error
		people, err = e.store.ListPeople(gctx, owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]types.Person, len(people))
	for _, p := range people {
		byID[p.ID] = p
	}
	friends := []types.Person{}
	for _, fid := range identity.FriendsOf(id, edges) {
		if p, ok := byID[fid]; ok {
			friends = append(friends, p)
		}
	}
	return friends, nil
}

// FamilyTree returns one node per person of the owner with parent and child
// links drawn from the relationship edges.
func (e *Engine) FamilyTree(ctx context.Context, owner string) ([]types.TreeNode, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}

	var (
		people []types.Person
		edges  []types.RelationshipEdge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		people, err = e.store.ListPeople(gctx, owner)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = e.store.ListRelationships(gctx, owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load family tree: %w", err)
	}
	return identity.BuildFamilyTree(people, edges), nil
}
