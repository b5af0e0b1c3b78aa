package releasebranch

import "fmt"

// Kind is the type of a branch.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindFeature
	KindRelease
)

func (k Kind) String() string {
	switch k {
	case KindFeature:
		return "feature"
	case KindRelease:
		return "release"
	default:
		return "undefined"
	}
}

// KindOf returns the kind of the branch name.
// ErrInvalidBranchFormat is returned if it is neither a feature nor a
// release branch.
func KindOf(branch string) (Kind, error) {
	if IsFeature(branch) {
		return KindFeature, nil
	}

	if IsRelease(branch) {
		return KindRelease, nil
	}

	return KindUndefined, fmt.Errorf("%w: %q is neither a feature nor a release branch", ErrInvalidBranchFormat, branch)
}
