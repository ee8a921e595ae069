package sqlstore

import (
	"context"
	"strings"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

// Owners lists every owner that has at least one person.
func (r *repo) Owners(ctx context.Context) ([]string, error) {
	rows, err := r.query(ctx, `SELECT DISTINCT owner_id FROM people ORDER BY owner_id`)
	if err != nil {
		return nil, r.fail("list owners", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, r.fail("scan owner", err)
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list owners", err)
	}
	return owners, nil
}

// DuplicatePeople groups people whose canonical names are equal ignoring
// case. The exact (owner, name) pair is unique, so only case variants and
// rows written before that constraint existed show up here. Names are folded
// in Go because SQLite's LOWER only folds ASCII.
func (r *repo) DuplicatePeople(ctx context.Context, owner string) ([]storage.DuplicateGroup, error) {
	rows, err := r.query(ctx, `
		SELECT owner_id, name, id FROM people
		WHERE ? = '' OR owner_id = ?
		ORDER BY owner_id, id`, owner, owner)
	if err != nil {
		return nil, r.fail("find duplicate people", err)
	}
	defer rows.Close()

	var order []string
	byKey := make(map[string]*storage.DuplicateGroup)
	for rows.Next() {
		var o, name string
		var id int64
		if err := rows.Scan(&o, &name, &id); err != nil {
			return nil, r.fail("scan duplicate person", err)
		}
		key := o + "\x00" + strings.ToLower(name)
		if g, ok := byKey[key]; ok {
			g.IDs = append(g.IDs, id)
			continue
		}
		byKey[key] = &storage.DuplicateGroup{OwnerID: o, Name: name, IDs: []int64{id}}
		order = append(order, key)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("find duplicate people", err)
	}

	var groups []storage.DuplicateGroup
	for _, key := range order {
		if g := byKey[key]; len(g.IDs) > 1 {
			groups = append(groups, *g)
		}
	}
	return groups, nil
}

// MergePeople folds every id in drop into keep. Each dropped canonical name
// becomes a nickname of keep so later resolutions still land on it.
func (r *repo) MergePeople(ctx context.Context, owner string, keep int64, drop []int64) error {
	for _, d := range drop {
		if d == keep {
			continue
		}

		var name string
		if err := r.queryRow(ctx, `SELECT name FROM people WHERE id = ? AND owner_id = ?`, d, owner).Scan(&name); err != nil {
			return r.fail("merge people", err)
		}

		steps := []struct {
			op    string
			query string
			args  []any
		}{
			// Edges between the two would become self-loops.
			{"drop relationships between merged people", `
				DELETE FROM relationships
				WHERE owner_id = ?
				  AND ((parent_id = ? AND child_id = ?) OR (parent_id = ? AND child_id = ?))`,
				[]any{owner, keep, d, d, keep}},
			{"drop friendships between merged people", `
				DELETE FROM friendships
				WHERE owner_id = ?
				  AND ((person1_id = ? AND person2_id = ?) OR (person1_id = ? AND person2_id = ?))`,
				[]any{owner, keep, d, d, keep}},
			{"repoint parent edges", `
				UPDATE relationships SET parent_id = ?
				WHERE owner_id = ? AND parent_id = ?
				  AND NOT EXISTS (SELECT 1 FROM relationships r2
				                  WHERE r2.owner_id = relationships.owner_id
				                    AND r2.parent_id = ? AND r2.child_id = relationships.child_id)`,
				[]any{keep, owner, d, keep}},
			{"drop duplicate parent edges", `DELETE FROM relationships WHERE owner_id = ? AND parent_id = ?`,
				[]any{owner, d}},
			{"repoint child edges", `
				UPDATE relationships SET child_id = ?
				WHERE owner_id = ? AND child_id = ?
				  AND NOT EXISTS (SELECT 1 FROM relationships r2
				                  WHERE r2.owner_id = relationships.owner_id
				                    AND r2.child_id = ? AND r2.parent_id = relationships.parent_id)`,
				[]any{keep, owner, d, keep}},
			{"drop duplicate child edges", `DELETE FROM relationships WHERE owner_id = ? AND child_id = ?`,
				[]any{owner, d}},
			{"repoint friendships", `
				UPDATE friendships SET person1_id = ?
				WHERE owner_id = ? AND person1_id = ?
				  AND NOT EXISTS (SELECT 1 FROM friendships f2
				                  WHERE f2.owner_id = friendships.owner_id AND f2.id <> friendships.id
				                    AND ((f2.person1_id = ? AND f2.person2_id = friendships.person2_id)
				                      OR (f2.person2_id = ? AND f2.person1_id = friendships.person2_id)))`,
				[]any{keep, owner, d, keep, keep}},
			{"repoint friendships", `
				UPDATE friendships SET person2_id = ?
				WHERE owner_id = ? AND person2_id = ?
				  AND NOT EXISTS (SELECT 1 FROM friendships f2
				                  WHERE f2.owner_id = friendships.owner_id AND f2.id <> friendships.id
				                    AND ((f2.person2_id = ? AND f2.person1_id = friendships.person1_id)
				                      OR (f2.person1_id = ? AND f2.person2_id = friendships.person1_id)))`,
				[]any{keep, owner, d, keep, keep}},
			{"drop duplicate friendships", `
				DELETE FROM friendships WHERE owner_id = ? AND (person1_id = ? OR person2_id = ?)`,
				[]any{owner, d, d}},
			{"repoint story people", `
				UPDATE story_people SET person_id = ?
				WHERE person_id = ?
				  AND story_id IN (SELECT id FROM stories WHERE owner_id = ?)
				  AND NOT EXISTS (SELECT 1 FROM story_people s2
				                  WHERE s2.story_id = story_people.story_id AND s2.person_id = ?)`,
				[]any{keep, d, owner, keep}},
			{"drop duplicate story people", `
				DELETE FROM story_people
				WHERE person_id = ? AND story_id IN (SELECT id FROM stories WHERE owner_id = ?)`,
				[]any{d, owner}},
			{"repoint nicknames", `UPDATE person_aliases SET person_id = ? WHERE owner_id = ? AND person_id = ?`,
				[]any{keep, owner, d}},
			{"delete merged person", `DELETE FROM people WHERE id = ? AND owner_id = ?`,
				[]any{d, owner}},
			{"keep merged name", `
				INSERT INTO person_aliases (owner_id, alias, person_id) VALUES (?, ?, ?)
				ON CONFLICT (owner_id, alias) DO NOTHING`,
				[]any{owner, name, keep}},
		}
		for _, step := range steps {
			if _, err := r.exec(ctx, step.query, step.args...); err != nil {
				return r.fail(step.op, err)
			}
		}
	}
	return nil
}

// DanglingRelationships returns edges whose parent or child no longer exists.
func (r *repo) DanglingRelationships(ctx context.Context, owner string) ([]types.RelationshipEdge, error) {
	return r.listRelationships(ctx, "find dangling relationships", `
		SELECT `+relationshipColumns+` FROM relationships e
		WHERE (? = '' OR e.owner_id = ?)
		  AND (NOT EXISTS (SELECT 1 FROM people p WHERE p.id = e.parent_id AND p.owner_id = e.owner_id)
		    OR NOT EXISTS (SELECT 1 FROM people p WHERE p.id = e.child_id AND p.owner_id = e.owner_id))
		ORDER BY e.owner_id, e.id`, owner, owner)
}

// DanglingFriendships returns edges where either member no longer exists.
func (r *repo) DanglingFriendships(ctx context.Context, owner string) ([]types.FriendshipEdge, error) {
	return r.listFriendships(ctx, "find dangling friendships", `
		SELECT `+friendshipColumns+` FROM friendships e
		WHERE (? = '' OR e.owner_id = ?)
		  AND (NOT EXISTS (SELECT 1 FROM people p WHERE p.id = e.person1_id AND p.owner_id = e.owner_id)
		    OR NOT EXISTS (SELECT 1 FROM people p WHERE p.id = e.person2_id AND p.owner_id = e.owner_id))
		ORDER BY e.owner_id, e.id`, owner, owner)
}

// DeleteRelationshipByID removes one relationship edge.
func (r *repo) DeleteRelationshipByID(ctx context.Context, owner string, id int64) error {
	res, err := r.exec(ctx, `DELETE FROM relationships WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return r.fail("delete relationship", err)
	}
	return r.expectRow("delete relationship", res)
}

// DeleteFriendshipByID removes one friendship edge.
func (r *repo) DeleteFriendshipByID(ctx context.Context, owner string, id int64) error {
	res, err := r.exec(ctx, `DELETE FROM friendships WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return r.fail("delete friendship", err)
	}
	return r.expectRow("delete friendship", res)
}
