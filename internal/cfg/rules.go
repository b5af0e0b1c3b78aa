package cfg

// Rule defines when actions are run for an issue tracker event.
type Rule struct {
	Name string `toml:"name" yaml:"name"`
	// EventSource restricts the rule to events of a tracker backend, if it
	// is empty the rule applies to all events.
	EventSource string `toml:"event_source" yaml:"event_source"`
	FilterQuery string `toml:"filter_query" yaml:"filter_query"`
	// Actions are the configurations of the actions, the "action" key
	// specifies the type.
	Actions []map[string]any `toml:"action" yaml:"action"`
}
