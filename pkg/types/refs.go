package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PersonRef refers to a person either by canonical id or by free-text name.
// The zero value is invalid; build refs with ByIdentity or ByName.
type PersonRef struct {
	id   int64
	name string
	byID bool
}

// ByIdentity returns a reference to an already canonical person id.
func ByIdentity(id int64) PersonRef {
	return PersonRef{id: id, byID: true}
}

// ByName returns a reference that must be resolved from a name.
func ByName(name string) PersonRef {
	return PersonRef{name: name}
}

// IsIdentity reports whether the reference carries a canonical id.
func (r PersonRef) IsIdentity() bool { return r.byID }

// ID returns the canonical id. It is zero for name references.
func (r PersonRef) ID() int64 { return r.id }

// Name returns the free-text name. It is empty for identity references.
func (r PersonRef) Name() string { return r.name }

func (r PersonRef) String() string {
	if r.byID {
		return "#" + strconv.FormatInt(r.id, 10)
	}
	return strconv.Quote(r.name)
}

// MarshalJSON encodes identity references as numbers and names as strings.
func (r PersonRef) MarshalJSON() ([]byte, error) {
	if r.byID {
		return []byte(strconv.FormatInt(r.id, 10)), nil
	}
	return json.Marshal(r.name)
}

// UnmarshalJSON accepts a JSON number as an identity and a JSON string as a name.
// A string that happens to contain digits stays a name.
func (r *PersonRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = ByName(name)
		return nil
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("person reference must be an integer id or a name: %s", data)
	}
	*r = ByIdentity(id)
	return nil
}

// LocationRef refers to a location by id, by name, or not at all (zero value).
type LocationRef struct {
	id   int64
	name string
	kind uint8
}

const (
	locationNone uint8 = iota
	locationByID
	locationByName
)

// LocationByIdentity returns a reference to an existing location id.
func LocationByIdentity(id int64) LocationRef {
	return LocationRef{id: id, kind: locationByID}
}

// LocationByName returns a reference resolved by exact name. An empty name is no location.
func LocationByName(name string) LocationRef {
	if name == "" {
		return LocationRef{}
	}
	return LocationRef{name: name, kind: locationByName}
}

// IsNone reports whether the reference names no location.
func (r LocationRef) IsNone() bool { return r.kind == locationNone }

// IsIdentity reports whether the reference carries a location id.
func (r LocationRef) IsIdentity() bool { return r.kind == locationByID }

// ID returns the location id for identity references.
func (r LocationRef) ID() int64 { return r.id }

// Name returns the location name for name references.
func (r LocationRef) Name() string { return r.name }

// NewLocationRef picks the reference from the optional id and name a request carries.
// An id takes precedence over a name.
func NewLocationRef(id *int64, name string) LocationRef {
	if id != nil {
		return LocationByIdentity(*id)
	}
	return LocationByName(name)
}
