package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureBranchName(t *testing.T) {
	c := Case{ID: 42, FeatureBranch: "proj#c42"}

	branch, err := c.FeatureBranchName()
	require.NoError(t, err)
	assert.Equal(t, "c42", branch)
}

func TestFeatureBranchNameWithoutDelimiter(t *testing.T) {
	for _, val := range []string{"c42", "", "proj#", "proj#  "} {
		c := Case{ID: 42, FeatureBranch: val}

		_, err := c.FeatureBranchName()
		assert.ErrorIs(t, err, ErrDataFormat, val)
	}
}

func TestCaseNotFoundIsLookupFailure(t *testing.T) {
	assert.ErrorIs(t, ErrCaseNotFound, ErrCaseLookupFailed)
}

func TestTags(t *testing.T) {
	c := Case{Tags: []string{"a", "b"}}
	c.AddTag("b")
	c.AddTag("merged")

	assert.Equal(t, "a,b,merged", c.TagsCSV())
}

func TestAssignToOpener(t *testing.T) {
	c := Case{OpenedBy: "7", AssignedTo: "1"}
	c.AssignToOpener()
	assert.Equal(t, "7", c.AssignedTo)
}
