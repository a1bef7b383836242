package config

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Default limit values applied by Normalize when the config omits them.
const (
	DefaultMaxFiles     = 5000
	DefaultTimeToLive   = 900
	DefaultMaxDepth     = 15
	DefaultDistribution = 600
	DefaultPriority     = 5
)

// Config represents a backend.yaml worker configuration file.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	LoggingCfg  string            `yaml:"logging_cfg"`
	Limits      LimitsConfig      `yaml:"limits"`
	Tasting     TastingConfig     `yaml:"tasting"`
	Scanners    Scanners          `yaml:"scanners"`
}

// CoordinatorConfig locates the shared coordinator.
type CoordinatorConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// LimitsConfig holds the worker's budgets. All durations are in seconds,
// matching the wire protocol's epoch-second scoring of tasks.
type LimitsConfig struct {
	// MaxFiles is the number of requests a worker handles before retiring.
	MaxFiles int `yaml:"max_files"`
	// TimeToLive is the worker's process lifetime budget.
	TimeToLive int `yaml:"time_to_live"`
	// MaxDepth bounds the recursive decomposition of one request.
	MaxDepth int `yaml:"max_depth"`
	// Distribution bounds the classification + scan phase of one file node.
	Distribution int `yaml:"distribution"`
}

// TastingConfig locates the classification inputs.
type TastingConfig struct {
	// MimeDB is an optional YAML file of custom magic signatures registered
	// on top of the built-in content-sniffing database.
	MimeDB string `yaml:"mime_db"`
	// YaraRules is a rule file, or a directory whose rule files are each
	// compiled as a distinct namespace.
	YaraRules string `yaml:"yara_rules"`
}

// Options is the opaque per-assignment option map handed to a scanner.
type Options map[string]any

// Int returns the named option as an int, or def when absent or not numeric.
// YAML unmarshals integers as int and JSON round-trips produce float64; both
// are accepted.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// String returns the named option as a string, or def when absent.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// StringSlice returns the named option as a string slice. YAML sequences
// unmarshal as []any, so elements are converted individually.
func (o Options) StringSlice(key string) []string {
	raw, ok := o[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Match is one side (positive or negative) of a scanner rule.
type Match struct {
	// Flavors matches when any listed flavor is present on the file.
	// The positive side additionally treats "*" as a wildcard.
	Flavors []string `yaml:"flavors"`
	// Filename is a regex matched against the file's name.
	Filename string `yaml:"filename"`
	// Source is a regex matched against the file's source label.
	Source string `yaml:"source"`

	filenameRe *regexp.Regexp
	sourceRe   *regexp.Regexp
}

// FilenameRegexp returns the compiled filename regex, or nil when the rule
// has none. Compile must have run first.
func (m *Match) FilenameRegexp() *regexp.Regexp {
	if m == nil {
		return nil
	}
	return m.filenameRe
}

// SourceRegexp returns the compiled source regex, or nil when the rule has
// none. Compile must have run first.
func (m *Match) SourceRegexp() *regexp.Regexp {
	if m == nil {
		return nil
	}
	return m.sourceRe
}

func (m *Match) compile(scanner string, side string) error {
	if m == nil {
		return nil
	}
	var err error
	if m.Filename != "" {
		if m.filenameRe, err = regexp.Compile(m.Filename); err != nil {
			return fmt.Errorf("scanner %s: %s filename regex: %w", scanner, side, err)
		}
	}
	if m.Source != "" {
		if m.sourceRe, err = regexp.Compile(m.Source); err != nil {
			return fmt.Errorf("scanner %s: %s source regex: %w", scanner, side, err)
		}
	}
	return nil
}

// ScannerRule is one entry in a scanner's ordered rule list.
type ScannerRule struct {
	Positive *Match `yaml:"positive"`
	Negative *Match `yaml:"negative"`
	// Priority orders assigned scanners, highest first. Default 5.
	Priority *int    `yaml:"priority"`
	Options  Options `yaml:"options"`
}

// EffectivePriority returns the rule's priority, applying the default.
func (r *ScannerRule) EffectivePriority() int {
	if r.Priority == nil {
		return DefaultPriority
	}
	return *r.Priority
}

// Scanners is the ordered scanner map from the config file. YAML mappings
// lose key order under plain map decoding, but the configured order is
// load-bearing: it breaks priority ties between assigned scanners.
type Scanners struct {
	// Names holds the scanner names in file order.
	Names []string
	// Rules maps each name to its ordered rule list.
	Rules map[string][]ScannerRule
}

// UnmarshalYAML decodes the scanner mapping while recording key order.
func (s *Scanners) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("scanners must be a mapping, got %v", node.Kind)
	}
	s.Names = nil
	s.Rules = make(map[string][]ScannerRule, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return fmt.Errorf("scanner name: %w", err)
		}
		var rules []ScannerRule
		if err := node.Content[i+1].Decode(&rules); err != nil {
			return fmt.Errorf("scanner %s rules: %w", name, err)
		}
		if _, dup := s.Rules[name]; dup {
			return fmt.Errorf("scanner %s configured twice", name)
		}
		s.Names = append(s.Names, name)
		s.Rules[name] = rules
	}
	return nil
}

// Normalize fills in defaults for omitted values.
func (c *Config) Normalize() {
	if c.Coordinator.Addr == "" {
		c.Coordinator.Addr = "127.0.0.1:6379"
	}
	if c.Limits.MaxFiles == 0 {
		c.Limits.MaxFiles = DefaultMaxFiles
	}
	if c.Limits.TimeToLive == 0 {
		c.Limits.TimeToLive = DefaultTimeToLive
	}
	if c.Limits.MaxDepth == 0 {
		c.Limits.MaxDepth = DefaultMaxDepth
	}
	if c.Limits.Distribution == 0 {
		c.Limits.Distribution = DefaultDistribution
	}
}

// Compile compiles every rule regex in the scanner map. Called once at load
// so the assignment engine never compiles on the hot path.
func (c *Config) Compile() error {
	for name, rules := range c.Scanners.Rules {
		for i := range rules {
			if err := rules[i].Positive.compile(name, "positive"); err != nil {
				return err
			}
			if err := rules[i].Negative.compile(name, "negative"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate rejects configs the worker cannot run with.
func (c *Config) Validate() error {
	if c.Limits.MaxFiles < 0 || c.Limits.TimeToLive < 0 ||
		c.Limits.MaxDepth < 0 || c.Limits.Distribution < 0 {
		return fmt.Errorf("limits must be non-negative: %+v", c.Limits)
	}
	return nil
}
