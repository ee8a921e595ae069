package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/pkg/types"
)

const personColumns = `id, owner_id, name, picture, birth_date, death_date, gender, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*types.Person, error) {
	var p types.Person
	var picture, birth, death, genderCol sql.NullString
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &picture, &birth, &death, &genderCol, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Picture = stringPtr(picture)
	p.BirthDate = stringPtr(birth)
	p.DeathDate = stringPtr(death)
	p.Gender = stringPtr(genderCol)
	p.Nicknames = []string{}
	return &p, nil
}

// CreatePerson inserts a person and its nicknames.
func (r *repo) CreatePerson(ctx context.Context, owner string, in types.NewPerson) (*types.Person, error) {
	var id int64
	err := r.queryRow(ctx, `
		INSERT INTO people (owner_id, name, picture, birth_date, death_date, gender)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		owner, in.Name, nullableString(in.Picture), nullableString(in.BirthDate),
		nullableString(in.DeathDate), nullableString(in.Gender)).Scan(&id)
	if err != nil {
		return nil, r.fail("create person", err)
	}

	for _, nick := range in.Nicknames {
		if _, err := r.exec(ctx,
			`INSERT INTO person_aliases (owner_id, alias, person_id) VALUES (?, ?, ?)`,
			owner, nick, id); err != nil {
			return nil, r.fail("create person nickname", err)
		}
	}
	return r.GetPerson(ctx, owner, id)
}

// GetPerson returns one person with nicknames.
func (r *repo) GetPerson(ctx context.Context, owner string, id int64) (*types.Person, error) {
	p, err := scanPerson(r.queryRow(ctx,
		`SELECT `+personColumns+` FROM people WHERE id = ? AND owner_id = ?`, id, owner))
	if err != nil {
		return nil, r.fail("get person", err)
	}

	rows, err := r.query(ctx,
		`SELECT alias FROM person_aliases WHERE owner_id = ? AND person_id = ? ORDER BY alias`, owner, id)
	if err != nil {
		return nil, r.fail("get person nicknames", err)
	}
	defer rows.Close()
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, r.fail("scan nickname", err)
		}
		p.Nicknames = append(p.Nicknames, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("get person nicknames", err)
	}
	return p, nil
}

// ListPeople returns the owner's people ordered by name.
func (r *repo) ListPeople(ctx context.Context, owner string) ([]types.Person, error) {
	rows, err := r.query(ctx,
		`SELECT `+personColumns+` FROM people WHERE owner_id = ? ORDER BY name, id`, owner)
	if err != nil {
		return nil, r.fail("list people", err)
	}

	people := []types.Person{}
	index := make(map[int64]int)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			rows.Close()
			return nil, r.fail("scan person", err)
		}
		index[p.ID] = len(people)
		people = append(people, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, r.fail("list people", err)
	}

	aliases, err := r.query(ctx,
		`SELECT person_id, alias FROM person_aliases WHERE owner_id = ? ORDER BY alias`, owner)
	if err != nil {
		return nil, r.fail("list nicknames", err)
	}
	defer aliases.Close()
	for aliases.Next() {
		var (
			personID int64
			alias    string
		)
		if err := aliases.Scan(&personID, &alias); err != nil {
			return nil, r.fail("scan nickname", err)
		}
		if i, ok := index[personID]; ok {
			people[i].Nicknames = append(people[i].Nicknames, alias)
		}
	}
	if err := aliases.Err(); err != nil {
		return nil, r.fail("list nicknames", err)
	}
	return people, nil
}

// PersonExists reports whether id is in the owner's scope.
func (r *repo) PersonExists(ctx context.Context, owner string, id int64) (bool, error) {
	var one int
	err := r.queryRow(ctx, `SELECT 1 FROM people WHERE id = ? AND owner_id = ?`, id, owner).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, r.fail("check person", err)
	}
	return true, nil
}

// FindPersonByName exact-matches a canonical name.
func (r *repo) FindPersonByName(ctx context.Context, owner, name string) (int64, error) {
	var id int64
	err := r.queryRow(ctx, `SELECT id FROM people WHERE owner_id = ? AND name = ?`, owner, name).Scan(&id)
	if err != nil {
		return 0, r.fail("find person by name", err)
	}
	return id, nil
}

// FindPersonByAlias exact-matches a nickname.
func (r *repo) FindPersonByAlias(ctx context.Context, owner, alias string) (int64, error) {
	var id int64
	err := r.queryRow(ctx,
		`SELECT person_id FROM person_aliases WHERE owner_id = ? AND alias = ?`, owner, alias).Scan(&id)
	if err != nil {
		return 0, r.fail("find person by alias", err)
	}
	return id, nil
}

// GetOrCreatePerson inserts the name unless (owner, name) already exists, in
// which case the existing row wins and is returned.
func (r *repo) GetOrCreatePerson(ctx context.Context, owner, name string) (int64, bool, error) {
	var id int64
	err := r.queryRow(ctx, `
		INSERT INTO people (owner_id, name) VALUES (?, ?)
		ON CONFLICT (owner_id, name) DO NOTHING
		RETURNING id`, owner, name).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, r.fail("get or create person", err)
	}

	id, err = r.FindPersonByName(ctx, owner, name)
	if err != nil {
		return 0, false, err
	}
	return id, false, nil
}

// UpdatePersonAttributes sets the non-nil attributes in one statement.
func (r *repo) UpdatePersonAttributes(ctx context.Context, owner string, id int64, a types.PersonAttributes) (*types.Person, error) {
	res, err := r.exec(ctx, `
		UPDATE people SET
			picture = COALESCE(?, picture),
			birth_date = COALESCE(?, birth_date),
			death_date = COALESCE(?, death_date),
			gender = COALESCE(?, gender)
		WHERE id = ? AND owner_id = ?`,
		nullableString(a.Picture), nullableString(a.BirthDate),
		nullableString(a.DeathDate), nullableString(a.Gender), id, owner)
	if err != nil {
		return nil, r.fail("update person", err)
	}
	if err := r.expectRow("update person", res); err != nil {
		return nil, err
	}
	return r.GetPerson(ctx, owner, id)
}

// RenamePerson changes the canonical name.
func (r *repo) RenamePerson(ctx context.Context, owner string, id int64, name string) (*types.Person, error) {
	res, err := r.exec(ctx, `UPDATE people SET name = ? WHERE id = ? AND owner_id = ?`, name, id, owner)
	if err != nil {
		return nil, r.fail("rename person", err)
	}
	if err := r.expectRow("rename person", res); err != nil {
		return nil, err
	}
	return r.GetPerson(ctx, owner, id)
}

// AddNickname maps a new alias to the person.
func (r *repo) AddNickname(ctx context.Context, owner string, id int64, nickname string) (*types.Person, error) {
	ok, err := r.PersonExists(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("add nickname: person %d: %w", id, storage.ErrNotFound)
	}

	if _, err := r.exec(ctx,
		`INSERT INTO person_aliases (owner_id, alias, person_id) VALUES (?, ?, ?)`,
		owner, nickname, id); err != nil {
		return nil, r.fail("add nickname", err)
	}
	return r.GetPerson(ctx, owner, id)
}

// RemoveNickname unmaps an alias from the person.
func (r *repo) RemoveNickname(ctx context.Context, owner string, id int64, nickname string) (*types.Person, error) {
	ok, err := r.PersonExists(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("remove nickname: person %d: %w", id, storage.ErrNotFound)
	}

	res, err := r.exec(ctx,
		`DELETE FROM person_aliases WHERE owner_id = ? AND person_id = ? AND alias = ?`, owner, id, nickname)
	if err != nil {
		return nil, r.fail("remove nickname", err)
	}
	if err := r.expectRow("remove nickname", res); err != nil {
		return nil, err
	}
	return r.GetPerson(ctx, owner, id)
}

// DeletePerson removes the person and its aliases only.
func (r *repo) DeletePerson(ctx context.Context, owner string, id int64) error {
	res, err := r.exec(ctx, `DELETE FROM people WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return r.fail("delete person", err)
	}
	if err := r.expectRow("delete person", res); err != nil {
		return err
	}
	if _, err := r.exec(ctx,
		`DELETE FROM person_aliases WHERE owner_id = ? AND person_id = ?`, owner, id); err != nil {
		return r.fail("delete person nicknames", err)
	}
	return nil
}
