package hg

import "strings"

// Markers that hg prints when an operation fails.
// hg does not use distinct exit codes for these conditions, the messages
// are the only way to tell them apart.
const (
	markerAbort              = "abort:"
	markerUnknownRevision    = "abort: unknown revision"
	markerNothingChanged     = "nothing changed"
	markerMergeAbort         = "abort: merging"
	markerMergeHasNoEffect   = "has no effect"
	markerCreatesNewRemoteHd = "abort: push creates new remote head"
)

type classifier func(output string) error

func classifyUpdate(output string) error {
	if strings.Contains(output, markerUnknownRevision) {
		return ErrUnknownRevision
	}

	return classifyAbort(output)
}

func classifyCommit(output string) error {
	if strings.Contains(output, markerNothingChanged) {
		return ErrNothingToCommit
	}

	return classifyAbort(output)
}

func classifyMerge(output string) error {
	if strings.Contains(output, markerMergeAbort) && strings.Contains(output, markerMergeHasNoEffect) {
		return ErrMergeHasNoEffect
	}

	return classifyAbort(output)
}

func classifyPush(output string) error {
	if strings.Contains(output, markerCreatesNewRemoteHd) {
		return ErrCreatesNewRemoteHead
	}

	return classifyAbort(output)
}

func classifyAbort(output string) error {
	if strings.Contains(output, markerAbort) {
		return ErrOperationAborted
	}

	return nil
}
