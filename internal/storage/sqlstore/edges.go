package sqlstore

import (
	"context"

	"github.com/scrypster/kinstory/pkg/types"
)

const (
	relationshipColumns = `id, owner_id, parent_id, child_id, relationship_type`
	friendshipColumns   = `id, owner_id, person1_id, person2_id`
)

func scanRelationship(row rowScanner) (*types.RelationshipEdge, error) {
	var e types.RelationshipEdge
	if err := row.Scan(&e.ID, &e.OwnerID, &e.ParentID, &e.ChildID, &e.Type); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanFriendship(row rowScanner) (*types.FriendshipEdge, error) {
	var e types.FriendshipEdge
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Person1ID, &e.Person2ID); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateRelationship inserts a parent to child edge. The unique index on
// (owner_id, parent_id, child_id) turns a duplicate into ErrConflict.
func (r *repo) CreateRelationship(ctx context.Context, owner string, parentID, childID int64, relType string) (*types.RelationshipEdge, error) {
	e, err := scanRelationship(r.queryRow(ctx, `
		INSERT INTO relationships (owner_id, parent_id, child_id, relationship_type)
		VALUES (?, ?, ?, ?)
		RETURNING `+relationshipColumns, owner, parentID, childID, relType))
	if err != nil {
		return nil, r.fail("create relationship", err)
	}
	return e, nil
}

// ListRelationships returns every relationship edge for the owner.
func (r *repo) ListRelationships(ctx context.Context, owner string) ([]types.RelationshipEdge, error) {
	return r.listRelationships(ctx, "list relationships",
		`SELECT `+relationshipColumns+` FROM relationships WHERE owner_id = ? ORDER BY id`, owner)
}

func (r *repo) listRelationships(ctx context.Context, op, query string, args ...any) ([]types.RelationshipEdge, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, r.fail(op, err)
	}
	defer rows.Close()

	edges := []types.RelationshipEdge{}
	for rows.Next() {
		e, err := scanRelationship(rows)
		if err != nil {
			return nil, r.fail(op, err)
		}
		edges = append(edges, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(op, err)
	}
	return edges, nil
}

// DeleteRelationship removes the (parent, child) edge.
func (r *repo) DeleteRelationship(ctx context.Context, owner string, parentID, childID int64) (int64, error) {
	var id int64
	err := r.queryRow(ctx,
		`DELETE FROM relationships WHERE owner_id = ? AND parent_id = ? AND child_id = ? RETURNING id`,
		owner, parentID, childID).Scan(&id)
	if err != nil {
		return 0, r.fail("delete relationship", err)
	}
	return id, nil
}

// CreateFriendship inserts the pair as given. The unique index over the
// ordered (min, max) pair makes the reversed pair a conflict too.
func (r *repo) CreateFriendship(ctx context.Context, owner string, a, b int64) (*types.FriendshipEdge, error) {
	e, err := scanFriendship(r.queryRow(ctx, `
		INSERT INTO friendships (owner_id, person1_id, person2_id)
		VALUES (?, ?, ?)
		RETURNING `+friendshipColumns, owner, a, b))
	if err != nil {
		return nil, r.fail("create friendship", err)
	}
	return e, nil
}

// ListFriendships returns every friendship edge for the owner.
func (r *repo) ListFriendships(ctx context.Context, owner string) ([]types.FriendshipEdge, error) {
	return r.listFriendships(ctx, "list friendships",
		`SELECT `+friendshipColumns+` FROM friendships WHERE owner_id = ? ORDER BY id`, owner)
}

// FriendshipsOf returns the edges where the person is either member.
func (r *repo) FriendshipsOf(ctx context.Context, owner string, personID int64) ([]types.FriendshipEdge, error) {
	return r.listFriendships(ctx, "list friendships of person", `
		SELECT `+friendshipColumns+` FROM friendships
		WHERE owner_id = ? AND (person1_id = ? OR person2_id = ?)
		ORDER BY id`, owner, personID, personID)
}

func (r *repo) listFriendships(ctx context.Context, op, query string, args ...any) ([]types.FriendshipEdge, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, r.fail(op, err)
	}
	defer rows.Close()

	edges := []types.FriendshipEdge{}
	for rows.Next() {
		e, err := scanFriendship(rows)
		if err != nil {
			return nil, r.fail(op, err)
		}
		edges = append(edges, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(op, err)
	}
	return edges, nil
}

// DeleteFriendship removes the pair regardless of argument order.
func (r *repo) DeleteFriendship(ctx context.Context, owner string, a, b int64) (int64, error) {
	var id int64
	err := r.queryRow(ctx, `
		DELETE FROM friendships
		WHERE owner_id = ?
		  AND ((person1_id = ? AND person2_id = ?) OR (person1_id = ? AND person2_id = ?))
		RETURNING id`,
		owner, a, b, b, a).Scan(&id)
	if err != nil {
		return 0, r.fail("delete friendship", err)
	}
	return id, nil
}
