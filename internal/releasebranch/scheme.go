// Package releasebranch provides parsing and stepping of release branch
// names.
//
// A release branch name denotes a position in a sequence of periodically
// created branches. A Cursor represents that position and can be moved
// forward and backward through the sequence. The naming scheme is
// exchangeable, the only implementation is the DateScheme.
package releasebranch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalidBranchFormat = errors.New("invalid branch format")

var ErrUnknownScheme = errors.New("unknown release branch scheme")

// Cursor points to a release branch in a sequence of release branches.
// Next and Previous modify the cursor in place.
type Cursor interface {
	Next()
	Previous()
	// String returns the branch name the cursor points to.
	String() string
	// Copy returns an independent cursor at the same position.
	Copy() Cursor
}

// Scheme creates cursors from release branch names.
type Scheme interface {
	Name() string
	Parse(branch string) (Cursor, error)
}

var schemes = map[string]Scheme{
	DateSchemeName: DateScheme{},
}

// SchemeByName returns the scheme registered with name.
// An empty name returns the DateScheme.
func SchemeByName(name string) (Scheme, error) {
	if name == "" {
		name = DateSchemeName
	}

	s, exist := schemes[name]
	if !exist {
		return nil, fmt.Errorf("%w: %q, supported: %s", ErrUnknownScheme, name, strings.Join(SchemeNames(), ", "))
	}

	return s, nil
}

// SchemeNames returns the sorted names of all supported schemes.
func SchemeNames() []string {
	result := make([]string, 0, len(schemes))
	for name := range schemes {
		result = append(result, name)
	}

	sort.Strings(result)

	return result
}
