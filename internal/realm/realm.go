// Package realm models the hierarchical tenant paths that scope users and
// their devices.
//
// A realm is an absolute slash-separated path. The root realm is "/";
// child realms look like "/customers" or "/customers/eu".
package realm

import (
	"errors"
	"fmt"
	"strings"
)

// RootSegment is the URL segment that names the root realm.
const RootSegment = "root"

// ErrInvalid is returned for malformed realm paths.
var ErrInvalid = errors.New("invalid realm")

// Realm is a normalised absolute realm path. The zero value is the root realm.
type Realm struct {
	path string
}

// Root returns the root realm.
func Root() Realm {
	return Realm{}
}

// Parse normalises path into a Realm. A missing leading slash is added
// and a trailing slash is dropped. Empty inner segments, "." and ".."
// are rejected.
func Parse(path string) (Realm, error) {
	p := strings.TrimSpace(path)
	if p == "" || p == "/" {
		return Root(), nil
	}
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")

	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".", "..":
			return Realm{}, fmt.Errorf("%w: %q", ErrInvalid, path)
		}
	}
	return Realm{path: "/" + p}, nil
}

// FromSegment maps a single URL path segment to a realm: "root" is the
// root realm, anything else is a direct child of root.
func FromSegment(seg string) (Realm, error) {
	if seg == RootSegment || seg == "" {
		return Root(), nil
	}
	if strings.Contains(seg, "/") {
		return Realm{}, fmt.Errorf("%w: segment %q contains a slash", ErrInvalid, seg)
	}
	return Parse("/" + seg)
}

// IsRoot reports whether r is the root realm.
func (r Realm) IsRoot() bool {
	return r.path == ""
}

// Parent returns the enclosing realm. The parent of root is root.
func (r Realm) Parent() Realm {
	i := strings.LastIndex(r.path, "/")
	if i <= 0 {
		return Root()
	}
	return Realm{path: r.path[:i]}
}

// Name returns the last path segment, or "root" for the root realm.
func (r Realm) Name() string {
	if r.IsRoot() {
		return RootSegment
	}
	return r.path[strings.LastIndex(r.path, "/")+1:]
}

// Contains reports whether other is r or one of its descendants.
func (r Realm) Contains(other Realm) bool {
	if r.IsRoot() || r == other {
		return true
	}
	return strings.HasPrefix(other.path, r.path+"/")
}

// String returns the absolute path form.
func (r Realm) String() string {
	if r.IsRoot() {
		return "/"
	}
	return r.path
}

// MarshalText implements encoding.TextMarshaler.
func (r Realm) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Realm) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
