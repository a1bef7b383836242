// Package dispatch is the scan-dispatch engine: scanner assignment, the
// per-file distributor, and the worker loop over the shared task queue.
package dispatch

import (
	"regexp"
	"sort"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/types"
)

// FlavorWildcard assigns a scanner to every file regardless of flavors.
const FlavorWildcard = "*"

// Assignment is the decision to run one scanner on one file node.
type Assignment struct {
	Name     string
	Priority int
	Options  config.Options
}

// Assign evaluates a scanner's configured rule list against a file's flavors,
// name and source. Rules are evaluated in configured order; the first rule
// that produces an assignment wins.
//
// The two sides are asymmetric on purpose: a negative hit at any rule vetoes
// the scanner outright (later rules are not consulted), while a positive miss
// merely advances to the next rule.
func Assign(name string, rules []config.ScannerRule, flavors map[string]struct{}, filename, source string) *Assignment {
	for i := range rules {
		rule := &rules[i]

		if neg := rule.Negative; neg != nil {
			if flavorHit(neg.Flavors, flavors, false) ||
				regexHit(neg.FilenameRegexp(), filename) ||
				regexHit(neg.SourceRegexp(), source) {
				return nil
			}
		}

		if pos := rule.Positive; pos != nil {
			if flavorHit(pos.Flavors, flavors, true) ||
				regexHit(pos.FilenameRegexp(), filename) ||
				regexHit(pos.SourceRegexp(), source) {
				return &Assignment{
					Name:     name,
					Priority: rule.EffectivePriority(),
					Options:  rule.Options,
				}
			}
		}
	}
	return nil
}

// AssignAll runs the assignment engine over every configured scanner and
// returns the assignments sorted by priority descending. The sort is stable,
// so equal priorities keep the configured scanner order.
func AssignAll(scanners config.Scanners, f *types.File) []Assignment {
	flavors := f.Flavors.Union()

	var assigned []Assignment
	for _, name := range scanners.Names {
		if a := Assign(name, scanners.Rules[name], flavors, f.Name, f.Source); a != nil {
			assigned = append(assigned, *a)
		}
	}

	sort.SliceStable(assigned, func(i, j int) bool {
		return assigned[i].Priority > assigned[j].Priority
	})
	return assigned
}

// flavorHit reports whether any listed flavor is present on the file.
// The wildcard is honored only on the positive side.
func flavorHit(listed []string, flavors map[string]struct{}, wildcard bool) bool {
	for _, flavor := range listed {
		if wildcard && flavor == FlavorWildcard {
			return true
		}
		if _, ok := flavors[flavor]; ok {
			return true
		}
	}
	return false
}

func regexHit(re *regexp.Regexp, value string) bool {
	return re != nil && re.MatchString(value)
}
