package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/scrypster/kinstory/pkg/types"
)

const locationColumns = `id, owner_id, name, picture, created_at`

func scanLocation(row rowScanner) (*types.Location, error) {
	var l types.Location
	var picture sql.NullString
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Name, &picture, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Picture = stringPtr(picture)
	return &l, nil
}

// CreateLocation inserts a location. Returns ErrConflict when the name is taken.
func (r *repo) CreateLocation(ctx context.Context, owner string, in types.NewLocation) (*types.Location, error) {
	var id int64
	err := r.queryRow(ctx, `
		INSERT INTO locations (owner_id, name, picture) VALUES (?, ?, ?)
		RETURNING id`, owner, in.Name, nullableString(in.Picture)).Scan(&id)
	if err != nil {
		return nil, r.fail("create location", err)
	}
	return r.GetLocation(ctx, owner, id)
}

// GetLocation returns one location.
func (r *repo) GetLocation(ctx context.Context, owner string, id int64) (*types.Location, error) {
	l, err := scanLocation(r.queryRow(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = ? AND owner_id = ?`, id, owner))
	if err != nil {
		return nil, r.fail("get location", err)
	}
	return l, nil
}

// ListLocations returns the owner's locations ordered by name.
func (r *repo) ListLocations(ctx context.Context, owner string) ([]types.Location, error) {
	rows, err := r.query(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE owner_id = ? ORDER BY name, id`, owner)
	if err != nil {
		return nil, r.fail("list locations", err)
	}
	defer rows.Close()

	locations := []types.Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, r.fail("scan location", err)
		}
		locations = append(locations, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list locations", err)
	}
	return locations, nil
}

// GetOrCreateLocation mirrors GetOrCreatePerson for places.
func (r *repo) GetOrCreateLocation(ctx context.Context, owner, name string) (int64, bool, error) {
	var id int64
	err := r.queryRow(ctx, `
		INSERT INTO locations (owner_id, name) VALUES (?, ?)
		ON CONFLICT (owner_id, name) DO NOTHING
		RETURNING id`, owner, name).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, r.fail("get or create location", err)
	}

	err = r.queryRow(ctx,
		`SELECT id FROM locations WHERE owner_id = ? AND name = ?`, owner, name).Scan(&id)
	if err != nil {
		return 0, false, r.fail("find location by name", err)
	}
	return id, false, nil
}
