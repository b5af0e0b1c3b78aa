package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/itchyny/gojq"

	"github.com/simplesurance/mergekeeper/internal/cfg"
	"github.com/simplesurance/mergekeeper/internal/stringutils"
	"github.com/simplesurance/mergekeeper/internal/trigger/action"
	"github.com/simplesurance/mergekeeper/internal/trigger/action/httprequest"
)

// ActionConfig is an interface for an action that is executed as part of a Rule.
type ActionConfig interface {
	// Render runs renderFunc for all configuration options of the
	// action that are templated and returns a runnable action.
	Render(renderFunc func(string) (string, error)) (action.Runner, error)
	// String returns a short representation of the ActionConfig
	String() string
	// DetailedString returns a formatted detailed description.
	DetailedString() string
}

// Rule defines the condition that must apply for an event and the actions that
// are run when conditions match.
type Rule struct {
	name        string
	eventSource string
	filterQuery *gojq.Query
	actions     []ActionConfig
}

// NewRule creates a rule.
// If eventSource is empty, events of all providers are evaluated.
func NewRule(name, eventSource, jqQuery string, actions []ActionConfig) (*Rule, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, err
	}

	return &Rule{
		name:        name,
		eventSource: eventSource,
		filterQuery: query,
		actions:     actions,
	}, nil
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errs []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errs
		}

		if err, isErr := res.(error); isErr {
			errs = append(errs, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}

// Match returns Match if the event provider matches the event source of the
// rule and the filter-query of the rule evaluates to true for the JSON
// representation of the event.
func (r *Rule) Match(ctx context.Context, event *Event) (MatchResult, error) {
	var evUn any

	if r.eventSource != "" && r.eventSource != event.Provider {
		return EventSourceMismatch, nil
	}

	if len(event.JSON) == 0 {
		return MatchResultUndefined, errors.New("json field of event is empty")
	}

	err := json.Unmarshal(event.JSON, &evUn)
	if err != nil {
		return MatchResultUndefined, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errs := goJQIterToSlice(r.filterQuery.RunWithContext(ctx, evUn))
	if len(errs) != 0 {
		return MatchResultUndefined, fmt.Errorf("json query returned errors, query: %q, errors: %s", r.filterQuery.String(), errString(errs))
	}

	if len(result) == 0 {
		return MatchResultUndefined, fmt.Errorf("json query returned 0 results, expected 1, query: %q", r.filterQuery.String())
	}

	if len(result) > 1 {
		return MatchResultUndefined, fmt.Errorf("json query returned multiple results, expected 1, query: %q, result: '%+v'", r.filterQuery.String(), result)
	}

	val, ok := result[0].(bool)
	if !ok {
		return MatchResultUndefined, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], r.filterQuery.String(),
		)
	}

	if val {
		return Match, nil
	}

	return RuleMismatch, nil
}

func templateFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["queryescape"] = url.QueryEscape

	return funcs
}

// templateContext is the data that is passed to action templates.
type templateContext struct {
	Event *Event
	// Job is the name of the CI job that is configured to be triggered.
	Job string
}

func renderFunc(event *Event, job string) func(in string) (string, error) {
	return func(text string) (string, error) {
		templ, err := template.New("action").Funcs(templateFuncs()).Parse(text)
		if err != nil {
			return "", err
		}

		var out bytes.Buffer

		err = templ.Execute(&out, &templateContext{Event: event, Job: job})
		if err != nil {
			return "", err
		}

		return out.String(), nil
	}
}

// TemplateActions renders the action definitions of the rule for the
// specific event.
func (r *Rule) TemplateActions(event *Event, job string) ([]action.Runner, error) {
	result := make([]action.Runner, 0, len(r.actions))

	for _, actionDef := range r.actions {
		runner, err := actionDef.Render(renderFunc(event, job))
		if err != nil {
			return nil, fmt.Errorf("templating action definition %q failed: %w", actionDef, err)
		}

		result = append(result, runner)
	}

	return result, nil
}

// RulesFromCfg instantiates Rules from the trigger rules configuration.
func RulesFromCfg(rules []*cfg.Rule, actionOpts ...func(*httprequest.Config)) (Rules, error) {
	result := make([]*Rule, 0, len(rules))
	names := make(map[string]struct{}, len(rules))

	for _, cfgRule := range rules {
		var actions []ActionConfig

		if cfgRule.Name == "" {
			return nil, errors.New("rule: missing field: 'name'")
		}

		if _, exists := names[cfgRule.Name]; exists {
			return nil, fmt.Errorf("rule %s: name is not unique", cfgRule.Name)
		}
		names[cfgRule.Name] = struct{}{}

		if len(cfgRule.Actions) == 0 {
			return nil, fmt.Errorf("rule %s: missing array field: 'action'", cfgRule.Name)
		}

		for _, cfgAction := range cfgRule.Actions {
			val, ok := cfgAction["action"]
			if !ok {
				return nil, fmt.Errorf("rule %s: action: missing string field 'action'", cfgRule.Name)
			}

			actionName, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("rule %s: action: action field is not a string field", cfgRule.Name)
			}

			switch strings.ToLower(actionName) {
			case "httprequest":
				actionCfg, err := httprequest.NewConfigFromMap(cfgAction, actionOpts...)
				if err != nil {
					return nil, fmt.Errorf(
						"rule %s: action %s: httprequest: parsing failed: %w",
						cfgRule.Name, actionName, err,
					)
				}

				actions = append(actions, actionCfg)

			default:
				return nil, fmt.Errorf("rule %s: unsupported action: %q", cfgRule.Name, actionName)
			}
		}

		rule, err := NewRule(cfgRule.Name, cfgRule.EventSource, cfgRule.FilterQuery, actions)
		if err != nil {
			return nil, fmt.Errorf("rule %s: parsing filter query failed: %w", cfgRule.Name, err)
		}

		result = append(result, rule)
	}

	return result, nil
}

func (r *Rule) String() string {
	return r.name
}

func (r *Rule) DetailedString() string {
	var result strings.Builder

	result.WriteString(fmt.Sprintf("Name: %s\nEventSource: %s\nFilterQuery: %s\n", r.name, r.eventSource, r.filterQuery))

	for i, a := range r.actions {
		if i == 0 {
			result.WriteString("Actions:\n")
		}

		result.WriteString(stringutils.IndentString(a.DetailedString(), "  "))
	}

	return result.String()
}
