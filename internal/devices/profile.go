package devices

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Well-known profile fields.
const (
	FieldName             = "name"
	FieldUUID             = "uuid"
	FieldLastSelectedDate = "lastSelectedDate"
)

// Profile is one enrolled OATH device. Only name, uuid and
// lastSelectedDate are interpreted; every other field is carried as raw
// JSON and written back unchanged.
type Profile struct {
	fields map[string]json.RawMessage
}

// ParseProfile decodes a JSON object into a Profile.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// UUID returns the device id, or "" when the profile has none.
func (p Profile) UUID() string { return p.getString(FieldUUID) }

// Name returns the display name.
func (p Profile) Name() string { return p.getString(FieldName) }

// LastSelectedDate returns the time the device was last used to log in.
// The stored value is milliseconds since the epoch.
func (p Profile) LastSelectedDate() (time.Time, bool) {
	var ms int64
	if ok, err := p.Field(FieldLastSelectedDate, &ms); !ok || err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// Field decodes the raw value of key into v. It reports false when the
// field is absent.
func (p Profile) Field(key string, v any) (bool, error) {
	raw, ok := p.fields[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Clone returns a copy that shares no map with p.
func (p Profile) Clone() Profile {
	c := Profile{fields: make(map[string]json.RawMessage, len(p.fields))}
	maps.Copy(c.fields, p.fields)
	return c
}

// MarshalJSON writes the profile as a JSON object.
func (p Profile) MarshalJSON() ([]byte, error) {
	if p.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.fields)
}

// UnmarshalJSON reads a JSON object. Anything else is an error.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding device profile: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("decoding device profile: not an object")
	}
	p.fields = fields
	return nil
}

func (p Profile) getString(key string) string {
	var s string
	if _, err := p.Field(key, &s); err != nil {
		return ""
	}
	return s
}

func (p *Profile) setString(key, value string) {
	if p.fields == nil {
		p.fields = make(map[string]json.RawMessage)
	}
	raw, _ := json.Marshal(value) //nolint:errcheck // strings always encode
	p.fields[key] = raw
}

// AssignMissingUUIDs returns a copy of profiles in which every profile
// without a uuid has been given a new random one.
func AssignMissingUUIDs(profiles []Profile) []Profile {
	out := make([]Profile, len(profiles))
	for i, p := range profiles {
		if p.UUID() != "" {
			out[i] = p
			continue
		}
		c := p.Clone()
		c.setString(FieldUUID, uuid.NewString())
		out[i] = c
	}
	return out
}

// removeByUUID splits profiles into the one with uuid id and the rest,
// keeping order. found is false when no profile matches.
func removeByUUID(profiles []Profile, id string) (removed Profile, rest []Profile, found bool) {
	rest = make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		if !found && id != "" && p.UUID() == id {
			removed = p
			found = true
			continue
		}
		rest = append(rest, p)
	}
	return removed, rest, found
}

func encodeProfiles(profiles []Profile) ([]byte, error) {
	if profiles == nil {
		profiles = []Profile{}
	}
	b, err := json.Marshal(profiles)
	if err != nil {
		return nil, fmt.Errorf("encoding device profiles: %w", err)
	}
	return b, nil
}

func decodeProfiles(data []byte) ([]Profile, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding device profiles: %w", err)
	}
	profiles := make([]Profile, 0, len(raw))
	for i, r := range raw {
		p, err := ParseProfile(r)
		if err != nil {
			return nil, fmt.Errorf("device profile %d: %w", i, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
