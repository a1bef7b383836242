package tasting

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

// asciiWhitespace is the set stripped from the head of the input before
// rule evaluation.
const asciiWhitespace = " \t\n\v\f\r"

// identPattern restricts pattern names to expr identifiers.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RuleSpec is one rule as written in a rule file.
type RuleSpec struct {
	// Name is the label emitted when the rule matches.
	Name string `yaml:"name"`
	// Patterns maps a pattern identifier to a regex applied to the content.
	Patterns map[string]string `yaml:"patterns"`
	// Condition is an optional boolean expression over pattern identifiers
	// ("visa and not testcard"). When empty, any pattern hit fires the rule.
	Condition string `yaml:"condition"`
}

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

type compiledPattern struct {
	name string
	re   *regexp.Regexp
}

type compiledRule struct {
	name     string
	patterns []compiledPattern
	// program is nil when the rule has no condition.
	program *vm.Program
}

type namespace struct {
	name  string
	rules []compiledRule
}

// Matcher is the compiled rule matcher. Compiled once at worker start and
// reused for every file node; matching is read-only and idempotent.
type Matcher struct {
	namespaces []namespace
}

// CompileRules compiles a rule file, or every rule file in a directory.
// Directory entries matching *.yaml / *.yml are loaded in sorted order, each
// as a distinct namespace, so rule names only need to be unique per file.
func CompileRules(path string) (*Matcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat rules path %q: %w", path, err)
	}

	paths := []string{path}
	if info.IsDir() {
		paths = nil
		for _, glob := range []string{"*.yaml", "*.yml"} {
			found, err := filepath.Glob(filepath.Join(path, glob))
			if err != nil {
				return nil, fmt.Errorf("bad rules glob under %q: %w", path, err)
			}
			paths = append(paths, found...)
		}
		sort.Strings(paths)
		if len(paths) == 0 {
			return nil, fmt.Errorf("no rule files under %q", path)
		}
	}

	m := &Matcher{}
	for i, p := range paths {
		ns, err := compileRuleFile(fmt.Sprintf("namespace%d", i), p)
		if err != nil {
			return nil, err
		}
		m.namespaces = append(m.namespaces, ns)
	}
	return m, nil
}

func compileRuleFile(nsName, path string) (namespace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return namespace{}, fmt.Errorf("cannot read rule file %q: %w", path, err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return namespace{}, fmt.Errorf("invalid YAML in rule file %s: %w", path, err)
	}

	ns := namespace{name: nsName}
	for _, spec := range rf.Rules {
		rule, err := compileRule(path, spec)
		if err != nil {
			return namespace{}, err
		}
		ns.rules = append(ns.rules, rule)
	}
	return ns, nil
}

func compileRule(path string, spec RuleSpec) (compiledRule, error) {
	if spec.Name == "" {
		return compiledRule{}, fmt.Errorf("rule file %s: rule without a name", path)
	}
	if len(spec.Patterns) == 0 {
		return compiledRule{}, fmt.Errorf("rule file %s: rule %s has no patterns", path, spec.Name)
	}

	rule := compiledRule{name: spec.Name}

	// Sorted pattern order keeps evaluation deterministic.
	names := make([]string, 0, len(spec.Patterns))
	for name := range spec.Patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make(map[string]any, len(names))
	for _, name := range names {
		if !identPattern.MatchString(name) {
			return compiledRule{}, fmt.Errorf("rule file %s: rule %s: pattern name %q is not an identifier", path, spec.Name, name)
		}
		re, err := regexp.Compile(spec.Patterns[name])
		if err != nil {
			return compiledRule{}, fmt.Errorf("rule file %s: rule %s: pattern %s: %w", path, spec.Name, name, err)
		}
		rule.patterns = append(rule.patterns, compiledPattern{name: name, re: re})
		env[name] = false
	}

	if spec.Condition != "" {
		program, err := expr.Compile(spec.Condition, expr.Env(env), expr.AsBool())
		if err != nil {
			return compiledRule{}, fmt.Errorf("rule file %s: rule %s: condition: %w", path, spec.Name, err)
		}
		rule.program = program
	}
	return rule, nil
}

// Match evaluates every rule against the content and returns the names of the
// rules that matched, sorted and de-duplicated across namespaces. Leading
// ASCII whitespace is stripped before evaluation.
func (m *Matcher) Match(data []byte) []string {
	if m == nil {
		return nil
	}

	content := bytes.TrimLeft(data, asciiWhitespace)

	hits := make(map[string]struct{})
	for _, ns := range m.namespaces {
		for _, rule := range ns.rules {
			if rule.eval(content) {
				hits[rule.name] = struct{}{}
			}
		}
	}

	if len(hits) == 0 {
		return nil
	}
	names := make([]string, 0, len(hits))
	for name := range hits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *compiledRule) eval(content []byte) bool {
	env := make(map[string]any, len(r.patterns))
	anyHit := false
	for _, p := range r.patterns {
		hit := p.re.Match(content)
		env[p.name] = hit
		anyHit = anyHit || hit
	}

	if r.program == nil {
		return anyHit
	}

	out, err := expr.Run(r.program, env)
	if err != nil {
		// A failing condition never fires the rule.
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}
