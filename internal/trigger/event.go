// Package trigger receives case events from the issue tracker and runs the
// actions of the rules that match them, e.g. to start the CI job that
// integrates the feature branch of the case.
package trigger

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/tracker"
)

// Event is processed by the event-loop and used for templating actions.
// Its public fields are accessible via template statements defined in the
// configuration file, the JSON representation is evaluated by the filter
// queries of the rules.
type Event struct {
	JSON     []byte `json:"-"`
	Provider string `json:"provider"`

	CaseID     int      `json:"case_id"`
	Title      string   `json:"title"`
	IsOpen     bool     `json:"is_open"`
	Tags       []string `json:"tags"`
	OpenedBy   string   `json:"opened_by"`
	AssignedTo string   `json:"assigned_to"`
	// FeatureBranch is the unmodified feature branch field of the case,
	// Repository and Branch are its parts.
	FeatureBranch  string `json:"feature_branch"`
	Repository     string `json:"repository"`
	Branch         string `json:"branch"`
	OriginalBranch string `json:"original_branch"`
	TargetBranch   string `json:"target_branch"`

	LogFields []zap.Field `json:"-"`
}

func (e *Event) String() string {
	return fmt.Sprintf("%s/case %d", e.Provider, e.CaseID)
}

// EventFromCase creates an event for a case of the tracker named provider.
// If the feature branch field of the case is malformed,
// tracker.ErrDataFormat is returned.
func EventFromCase(provider string, c *tracker.Case) (*Event, error) {
	branch, err := c.FeatureBranchName()
	if err != nil {
		return nil, err
	}

	repo, _, _ := strings.Cut(c.FeatureBranch, tracker.FeatureBranchDelimiter)

	ev := Event{
		Provider:       provider,
		CaseID:         c.ID,
		Title:          c.Title,
		IsOpen:         c.IsOpen,
		Tags:           c.Tags,
		OpenedBy:       c.OpenedBy,
		AssignedTo:     c.AssignedTo,
		FeatureBranch:  c.FeatureBranch,
		Repository:     strings.TrimSpace(repo),
		Branch:         branch,
		OriginalBranch: c.OriginalBranch,
		TargetBranch:   c.TargetBranch,
	}

	if ev.Tags == nil {
		ev.Tags = []string{}
	}

	ev.JSON, err = json.Marshal(&ev)
	if err != nil {
		return nil, fmt.Errorf("marshaling event to json failed: %w", err)
	}

	ev.LogFields = []zap.Field{
		logfields.EventProvider(provider),
		logfields.CaseID(c.ID),
		logfields.FeatureBranch(branch),
		logfields.TargetBranch(c.TargetBranch),
	}

	return &ev, nil
}
