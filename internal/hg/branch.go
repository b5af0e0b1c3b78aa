package hg

import (
	"fmt"
	"strconv"
	"strings"
)

// Branch is an entry of the hg branches output.
type Branch struct {
	Name     string
	Revision int
	Hash     string
}

// BranchList is a list of branches.
type BranchList []*Branch

// Contains returns true if a branch with the name exists in the list.
func (l BranchList) Contains(name string) bool {
	for _, b := range l {
		if b.Name == name {
			return true
		}
	}

	return false
}

// Names returns the names of all branches in the list.
func (l BranchList) Names() []string {
	result := make([]string, 0, len(l))
	for _, b := range l {
		result = append(result, b.Name)
	}

	return result
}

// ParseBranches parses the output of hg branches.
// Each line has the format: <name> <revision>:<hash> [(inactive)].
// Lines that can not be parsed are skipped, an error for each of them is
// returned.
func ParseBranches(output string) (BranchList, []error) {
	var result BranchList
	var errs []error

	for i, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		b, err := parseBranchLine(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}

		result = append(result, b)
	}

	return result, errs
}

func parseBranchLine(line string) (*Branch, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("expected >=2 whitespace separated fields, got %d: %q", len(fields), line)
	}

	revStr, hash, found := strings.Cut(fields[1], ":")
	if !found {
		return nil, fmt.Errorf("revision field %q does not have the format <revision>:<hash>", fields[1])
	}

	rev, err := strconv.Atoi(revStr)
	if err != nil {
		return nil, fmt.Errorf("revision %q is not a number: %w", revStr, err)
	}

	if hash == "" {
		return nil, fmt.Errorf("hash in revision field %q is empty", fields[1])
	}

	return &Branch{
		Name:     fields[0],
		Revision: rev,
		Hash:     hash,
	}, nil
}
