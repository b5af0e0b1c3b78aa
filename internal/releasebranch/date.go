package releasebranch

import (
	"fmt"
	"regexp"
	"strconv"
)

const DateSchemeName = "date"

const (
	periodStep = 2
	maxPeriod  = 52
)

var releaseBranchRe = regexp.MustCompile(`^r([0-9]{2})([0-9]{2})$`)

// DateScheme is the scheme for release branches named r<YY><PP>, where YY
// is a 2-digit year and PP the period in the year.
// Stepping moves the period by 2, no calendar arithmetic is done.
type DateScheme struct{}

func (DateScheme) Name() string {
	return DateSchemeName
}

func (DateScheme) Parse(branch string) (Cursor, error) {
	return ParseRelease(branch)
}

// Release is a Cursor for release branches of the DateScheme.
type Release struct {
	Year   int
	Period int
}

// ParseRelease parses a branch name of the form r<YY><PP>.
func ParseRelease(branch string) (*Release, error) {
	matches := releaseBranchRe.FindStringSubmatch(branch)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q is not a release branch name (r<YY><PP>)", ErrInvalidBranchFormat, branch)
	}

	// the regex ensures that both are numbers
	year, _ := strconv.Atoi(matches[1])
	period, _ := strconv.Atoi(matches[2])

	if period > maxPeriod {
		return nil, fmt.Errorf("%w: period of release branch %q is >%d", ErrInvalidBranchFormat, branch, maxPeriod)
	}

	return &Release{Year: year, Period: period}, nil
}

// IsRelease returns true if branch is a valid release branch name.
func IsRelease(branch string) bool {
	_, err := ParseRelease(branch)
	return err == nil
}

func (r *Release) Next() {
	r.Period += periodStep
	if r.Period > maxPeriod {
		r.Period = 0
		r.Year++
	}
}

func (r *Release) Previous() {
	r.Period -= periodStep
	if r.Period < 0 {
		r.Period = maxPeriod
		r.Year--
	}
}

func (r *Release) String() string {
	return fmt.Sprintf("r%02d%02d", r.Year, r.Period)
}

func (r *Release) Copy() Cursor {
	c := *r
	return &c
}
