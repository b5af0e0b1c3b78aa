// Package cfg loads the mergekeeper configuration file.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/simplesurance/mergekeeper/internal/releasebranch"
)

const (
	DefHgExecutable         = "hg"
	DefHgCommandTimeout     = 5 * time.Minute
	DefReleaseBranchScheme  = "date"
	DefLogFormat            = "logfmt"
	DefLogLevel             = "info"
	DefLogTimeKey           = "time_iso8601"
	DefLedgerTTL            = time.Hour
	DefMaxConsecutiveMisses = 5
	DefLockTimeout          = time.Minute
	DefTriggerEndpoint      = "/trigger"
	DefTriggerRetryTimeout  = 2 * time.Hour
	DefDefaultAssignee      = "1"
)

const (
	TrackerBackendFogbugz = "fogbugz"
	TrackerBackendJira    = "jira"

	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

type Config struct {
	HgExecutable        string        `toml:"hg_executable" yaml:"hg_executable"`
	HgCommandTimeout    time.Duration `toml:"hg_command_timeout" yaml:"hg_command_timeout"`
	ReleaseBranchScheme string        `toml:"release_branch_scheme" yaml:"release_branch_scheme"`
	LedgerTTL           time.Duration `toml:"ledger_ttl" yaml:"ledger_ttl"`

	LogFormat  string `toml:"log_format" yaml:"log_format"`
	LogTimeKey string `toml:"log_time_key" yaml:"log_time_key"`
	LogLevel   string `toml:"log_level" yaml:"log_level"`

	Repository Repository `toml:"repository" yaml:"repository"`
	Tracker    Tracker    `toml:"tracker" yaml:"tracker"`
	Store      Store      `toml:"store" yaml:"store"`
	Gatekeeper Gatekeeper `toml:"gatekeeper" yaml:"gatekeeper"`
	Upmerge    Upmerge    `toml:"upmerge" yaml:"upmerge"`
	Workspace  Workspace  `toml:"workspace" yaml:"workspace"`
	Trigger    Trigger    `toml:"trigger" yaml:"trigger"`
	Metrics    Metrics    `toml:"metrics" yaml:"metrics"`
}

type Tracker struct {
	Backend             string `toml:"backend" yaml:"backend"`
	URL                 string `toml:"url" yaml:"url"`
	Token               string `toml:"token" yaml:"token"`
	Username            string `toml:"username" yaml:"username"`
	Project             string `toml:"project" yaml:"project"`
	Cloud               bool   `toml:"cloud" yaml:"cloud"`
	FeatureBranchField  string `toml:"feature_branch_field" yaml:"feature_branch_field"`
	OriginalBranchField string `toml:"original_branch_field" yaml:"original_branch_field"`
	TargetBranchField   string `toml:"target_branch_field" yaml:"target_branch_field"`
	DefaultAssignee     string `toml:"default_assignee" yaml:"default_assignee"`
	SuccessTemplate     string `toml:"success_template" yaml:"success_template"`
	FailureTemplate     string `toml:"failure_template" yaml:"failure_template"`
}

type Store struct {
	Backend       string `toml:"backend" yaml:"backend"`
	RedisAddr     string `toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int    `toml:"redis_db" yaml:"redis_db"`
}

type Gatekeeper struct {
	// Pull is nil when it is not set in the config file.
	Pull *bool `toml:"pull" yaml:"pull"`
}

// PullEnabled returns if changes are pulled before merging, it defaults to
// true.
func (g *Gatekeeper) PullEnabled() bool {
	return g.Pull == nil || *g.Pull
}

type Upmerge struct {
	MaxConsecutiveMisses int `toml:"max_consecutive_misses" yaml:"max_consecutive_misses"`
}

type Workspace struct {
	LockTimeout time.Duration `toml:"lock_timeout" yaml:"lock_timeout"`
}

type Trigger struct {
	HTTPListenAddr string        `toml:"http_listen_addr" yaml:"http_listen_addr"`
	Endpoint       string        `toml:"endpoint" yaml:"endpoint"`
	RetryTimeout   time.Duration `toml:"retry_timeout" yaml:"retry_timeout"`
	JobToTrigger   string        `toml:"job_to_trigger" yaml:"job_to_trigger"`
	Rules          []*Rule       `toml:"rule" yaml:"rule"`
}

type Metrics struct {
	PushgatewayURL string `toml:"pushgateway_url" yaml:"pushgateway_url"`
}

// Load reads a TOML configuration.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	if err := result.finalize(); err != nil {
		return nil, err
	}

	return &result, nil
}

// LoadYAML reads a YAML configuration.
func LoadYAML(reader io.Reader) (*Config, error) {
	var result Config

	dec := yaml.NewDecoder(reader)
	dec.KnownFields(true)

	if err := dec.Decode(&result); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := result.finalize(); err != nil {
		return nil, err
	}

	return &result, nil
}

// LoadFile reads the configuration file at path, files with a .yaml or .yml
// extension are parsed as YAML, all others as TOML.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return Load(f)
	}
}

func (c *Config) finalize() error {
	c.setDefaults()
	return c.validate()
}

func (c *Config) setDefaults() {
	if c.HgExecutable == "" {
		c.HgExecutable = DefHgExecutable
	}

	if c.HgCommandTimeout == 0 {
		c.HgCommandTimeout = DefHgCommandTimeout
	}

	if c.ReleaseBranchScheme == "" {
		c.ReleaseBranchScheme = DefReleaseBranchScheme
	}

	if c.LedgerTTL == 0 {
		c.LedgerTTL = DefLedgerTTL
	}

	if c.LogFormat == "" {
		c.LogFormat = DefLogFormat
	}

	if c.LogLevel == "" {
		c.LogLevel = DefLogLevel
	}

	if c.LogTimeKey == "" {
		c.LogTimeKey = DefLogTimeKey
	}

	if c.Tracker.Backend == "" {
		c.Tracker.Backend = TrackerBackendFogbugz
	}

	if c.Tracker.DefaultAssignee == "" {
		c.Tracker.DefaultAssignee = DefDefaultAssignee
	}

	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendRedis
	}

	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = "localhost:6379"
	}

	if c.Upmerge.MaxConsecutiveMisses == 0 {
		c.Upmerge.MaxConsecutiveMisses = DefMaxConsecutiveMisses
	}

	if c.Workspace.LockTimeout == 0 {
		c.Workspace.LockTimeout = DefLockTimeout
	}

	if c.Trigger.Endpoint == "" {
		c.Trigger.Endpoint = DefTriggerEndpoint
	}

	if c.Trigger.RetryTimeout == 0 {
		c.Trigger.RetryTimeout = DefTriggerRetryTimeout
	}
}

func (c *Config) validate() error {
	if _, err := releasebranch.SchemeByName(c.ReleaseBranchScheme); err != nil {
		return fmt.Errorf("release_branch_scheme: %w", err)
	}

	switch c.Tracker.Backend {
	case TrackerBackendFogbugz, TrackerBackendJira:
	default:
		return fmt.Errorf("tracker.backend: unsupported value %q", c.Tracker.Backend)
	}

	switch c.Store.Backend {
	case StoreBackendMemory, StoreBackendRedis:
	default:
		return fmt.Errorf("store.backend: unsupported value %q", c.Store.Backend)
	}

	if c.Upmerge.MaxConsecutiveMisses < 0 {
		return errors.New("upmerge.max_consecutive_misses must be positive")
	}

	if err := c.Repository.validate(); err != nil {
		return fmt.Errorf("repository: %w", err)
	}

	return nil
}

// Marshal writes the configuration in TOML format.
func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}
