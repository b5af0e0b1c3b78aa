package releasebranch

import (
	"fmt"
	"regexp"
	"strconv"
)

var featureBranchRe = regexp.MustCompile(`^c([0-9]+)$`)

// Feature is a feature branch, named after the case it implements.
type Feature struct {
	CaseID int
	name   string
}

// ParseFeature parses a branch name of the form c<caseID>.
func ParseFeature(branch string) (*Feature, error) {
	matches := featureBranchRe.FindStringSubmatch(branch)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q is not a feature branch name (c<caseID>)", ErrInvalidBranchFormat, branch)
	}

	id, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("%w: case id of %q: %s", ErrInvalidBranchFormat, branch, err)
	}

	return &Feature{CaseID: id, name: branch}, nil
}

// IsFeature returns true if branch is a valid feature branch name.
func IsFeature(branch string) bool {
	_, err := ParseFeature(branch)
	return err == nil
}

// String returns the branch name the feature was parsed from, leading zeros
// of the case id are preserved.
func (f *Feature) String() string {
	if f.name == "" {
		return fmt.Sprintf("c%d", f.CaseID)
	}

	return f.name
}
