package dispatch

import (
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/types"
)

func scannerSet(t *testing.T, doc string) config.Scanners {
	t.Helper()
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		t.Fatalf("unmarshal scanners: %v", err)
	}
	if err := cfg.Compile(); err != nil {
		t.Fatalf("compile scanners: %v", err)
	}
	return cfg.Scanners
}

func flavoredFile(name, source string, flavors ...string) *types.File {
	f := types.NewFile("ptr")
	f.Name = name
	f.Source = source
	f.Flavors.Add(types.FlavorMime, flavors...)
	return f
}

func assignedNames(assignments []Assignment) []string {
	names := make([]string, 0, len(assignments))
	for _, a := range assignments {
		names = append(names, a.Name)
	}
	return names
}

func TestAssignAll_Wildcard(t *testing.T) {
	scanners := scannerSet(t, `
scanners:
  ScanHash:
    - positive: {flavors: ["*"]}
`)

	got := AssignAll(scanners, flavoredFile("", "", "application/x-whatever"))
	if !reflect.DeepEqual(assignedNames(got), []string{"ScanHash"}) {
		t.Errorf("assigned = %v, want [ScanHash]", assignedNames(got))
	}

	// Wildcard also matches a file with no flavors at all.
	got = AssignAll(scanners, flavoredFile("", ""))
	if len(got) != 1 {
		t.Errorf("assigned = %v, want wildcard hit on flavorless file", got)
	}
}

func TestAssignAll_FlavorMatch(t *testing.T) {
	scanners := scannerSet(t, `
scanners:
  ScanZip:
    - positive: {flavors: [application/zip]}
  ScanGzip:
    - positive: {flavors: [application/gzip]}
`)

	got := AssignAll(scanners, flavoredFile("", "", "application/zip"))
	if !reflect.DeepEqual(assignedNames(got), []string{"ScanZip"}) {
		t.Errorf("assigned = %v, want [ScanZip]", assignedNames(got))
	}
}

func TestAssign_NegativeVetoesScanner(t *testing.T) {
	scanners := scannerSet(t, `
scanners:
  ScanUrl:
    - negative: {flavors: [application/zip]}
      positive: {flavors: ["*"]}
    - positive: {flavors: ["*"]}
`)

	// A negative hit vetoes the scanner outright even though the second
	// rule's wildcard would otherwise assign it.
	if got := AssignAll(scanners, flavoredFile("", "", "application/zip")); len(got) != 0 {
		t.Errorf("assigned = %v, want veto", assignedNames(got))
	}

	if got := AssignAll(scanners, flavoredFile("", "", "text/plain")); len(got) != 1 {
		t.Errorf("assigned = %v, want 1", assignedNames(got))
	}
}

func TestAssign_NegativeIgnoresWildcard(t *testing.T) {
	rules := scannerSet(t, `
scanners:
  ScanHash:
    - negative: {flavors: ["*"]}
      positive: {flavors: [text/plain]}
`)

	got := AssignAll(rules, flavoredFile("", "", "text/plain"))
	if len(got) != 1 {
		t.Errorf("assigned = %v, want 1: wildcard has no meaning on the negative side", assignedNames(got))
	}
}

func TestAssign_PositiveMissAdvancesToNextRule(t *testing.T) {
	scanners := scannerSet(t, `
scanners:
  ScanHeader:
    - positive: {flavors: [application/zip]}
      options: {length: 10}
    - positive: {flavors: [text/plain]}
      options: {length: 99}
`)

	got := AssignAll(scanners, flavoredFile("", "", "text/plain"))
	if len(got) != 1 {
		t.Fatalf("assigned = %v, want 1", assignedNames(got))
	}
	if got[0].Options.Int("length", 0) != 99 {
		t.Errorf("options = %v, want the second rule's options", got[0].Options)
	}
}

func TestAssign_FilenameAndSourceRegex(t *testing.T) {
	scanners := scannerSet(t, `
scanners:
  ScanUrl:
    - positive: {filename: '\.eml$'}
  ScanHash:
    - positive: {source: '^ScanZip$'}
`)

	got := AssignAll(scanners, flavoredFile("message.eml", "", "text/plain"))
	if !reflect.DeepEqual(assignedNames(got), []string{"ScanUrl"}) {
		t.Errorf("assigned = %v, want [ScanUrl]", assignedNames(got))
	}

	got = AssignAll(scanners, flavoredFile("inner.bin", "ScanZip", "application/octet-stream"))
	if !reflect.DeepEqual(assignedNames(got), []string{"ScanHash"}) {
		t.Errorf("assigned = %v, want [ScanHash]", assignedNames(got))
	}
}

func TestAssignAll_PriorityOrdering(t *testing.T) {
	scanners := scannerSet(t, `
scanners:
  ScanUrl:
    - positive: {flavors: ["*"]}
      priority: 1
  ScanZip:
    - positive: {flavors: ["*"]}
      priority: 9
  ScanHash:
    - positive: {flavors: ["*"]}
`)

	got := assignedNames(AssignAll(scanners, flavoredFile("", "", "text/plain")))
	want := []string{"ScanZip", "ScanHash", "ScanUrl"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("assigned = %v, want %v", got, want)
	}
}

func TestAssignAll_EqualPrioritiesKeepConfiguredOrder(t *testing.T) {
	scanners := scannerSet(t, `
scanners:
  ScanZulu:
    - positive: {flavors: ["*"]}
  ScanAlpha:
    - positive: {flavors: ["*"]}
  ScanMike:
    - positive: {flavors: ["*"]}
`)

	f := flavoredFile("", "", "text/plain")
	want := []string{"ScanZulu", "ScanAlpha", "ScanMike"}
	for i := 0; i < 5; i++ {
		got := assignedNames(AssignAll(scanners, f))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: assigned = %v, want %v", i, got, want)
		}
	}
}

func TestAssign_NoRulesNoAssignment(t *testing.T) {
	if a := Assign("ScanHash", nil, map[string]struct{}{"text/plain": {}}, "", ""); a != nil {
		t.Errorf("assignment = %+v, want nil for empty rule list", a)
	}
}
