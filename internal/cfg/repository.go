package cfg

import (
	"errors"
	"fmt"
	"strings"
)

// RepositoryKind describes how the working copies of a build are
// configured.
type RepositoryKind int

const (
	RepositoryUndefined RepositoryKind = iota
	// RepositorySingle is a build with a single working copy.
	RepositorySingle
	// RepositoryComposite is a build with multiple named working copies.
	RepositoryComposite
)

var ErrUnknownRepository = errors.New("unknown repository")

// Repository is either a single working copy (Path) or a list of named
// working copies (Composite). Exactly one of both must be set.
type Repository struct {
	Path      string             `toml:"path" yaml:"path"`
	Composite []*NamedRepository `toml:"composite" yaml:"composite"`
}

type NamedRepository struct {
	Name string `toml:"name" yaml:"name"`
	Path string `toml:"path" yaml:"path"`
}

func (r *Repository) Kind() RepositoryKind {
	switch {
	case r.Path != "" && len(r.Composite) == 0:
		return RepositorySingle
	case r.Path == "" && len(r.Composite) > 0:
		return RepositoryComposite
	default:
		return RepositoryUndefined
	}
}

func (r *Repository) validate() error {
	if r.Path != "" && len(r.Composite) > 0 {
		return errors.New("path and composite are mutually exclusive")
	}

	names := make(map[string]struct{}, len(r.Composite))
	for i, nr := range r.Composite {
		if nr.Name == "" || nr.Path == "" {
			return fmt.Errorf("composite[%d]: name and path must be set", i)
		}

		if _, exists := names[nr.Name]; exists {
			return fmt.Errorf("composite[%d]: name %q is not unique", i, nr.Name)
		}
		names[nr.Name] = struct{}{}
	}

	return nil
}

// Resolve returns the path of the working copy the build operates on.
// For a composite configuration name selects the repository, it can be
// empty if only one is configured. For a single configuration name must be
// empty.
// If no repository is configured, defaultPath is returned.
func (r *Repository) Resolve(name, defaultPath string) (string, error) {
	switch r.Kind() {
	case RepositorySingle:
		if name != "" {
			return "", fmt.Errorf("%w: %q, only a single repository is configured", ErrUnknownRepository, name)
		}

		return r.Path, nil

	case RepositoryComposite:
		if name == "" {
			if len(r.Composite) == 1 {
				return r.Composite[0].Path, nil
			}

			return "", fmt.Errorf("multiple repositories are configured, one must be selected: %s", strings.Join(r.Names(), ", "))
		}

		for _, nr := range r.Composite {
			if nr.Name == name {
				return nr.Path, nil
			}
		}

		return "", fmt.Errorf("%w: %q", ErrUnknownRepository, name)

	default:
		if name != "" {
			return "", fmt.Errorf("%w: %q, no repositories are configured", ErrUnknownRepository, name)
		}

		return defaultPath, nil
	}
}

// Names returns the names of the composite repositories.
func (r *Repository) Names() []string {
	result := make([]string, 0, len(r.Composite))
	for _, nr := range r.Composite {
		result = append(result, nr.Name)
	}

	return result
}
