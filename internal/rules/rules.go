// Package rules loads the vulnerability rule catalogue and classifies taint
// graph nodes against it. Rules are declarative name patterns; all flow
// reasoning stays in the taint package.
package rules

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/taintscope/api/schemas"
)

// Rule declares one vulnerability pattern: where tainted data enters
// (sources), where it must not arrive (sinks), and what neutralizes it on
// the way (sanitizers). Patterns match call and identifier names, see Match.
type Rule struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Severity    string   `yaml:"severity"`
	CWE         []string `yaml:"cwe,omitempty"`
	Message     string   `yaml:"message"`
	Remediation string   `yaml:"remediation,omitempty"`

	Sources    []string `yaml:"sources"`
	Sinks      []string `yaml:"sinks"`
	Sanitizers []string `yaml:"sanitizers,omitempty"`
}

// SeverityLevel returns the rule severity as the shared schema type.
func (r Rule) SeverityLevel() schemas.Severity {
	return schemas.Severity(r.Severity)
}

// RuleSet is a validated, immutable collection of rules in catalogue order.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// ByID returns the rule with the given id.
func (rs *RuleSet) ByID(id string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// IDs lists the rule ids in catalogue order.
func (rs *RuleSet) IDs() []string {
	out := make([]string, len(rs.Rules))
	for i, r := range rs.Rules {
		out[i] = r.ID
	}
	return out
}

// LoadError describes a catalogue that failed to parse or validate. The scan
// aborts on it; a broken catalogue is a configuration defect, not a per-unit
// condition.
type LoadError struct {
	Path   string
	Reason string
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("rule catalogue: %s", e.Reason)
	}
	return fmt.Sprintf("rule catalogue %s: %s", e.Path, e.Reason)
}

var validSeverities = map[string]bool{
	string(schemas.SeverityCritical): true,
	string(schemas.SeverityHigh):     true,
	string(schemas.SeverityMedium):   true,
	string(schemas.SeverityLow):      true,
	string(schemas.SeverityInfo):     true,
}

// Parse decodes and validates a YAML catalogue.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, &LoadError{Reason: err.Error()}
	}
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Load reads a catalogue from disk.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	rs, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Path = path
		}
		return nil, err
	}
	return rs, nil
}

func (rs *RuleSet) validate() error {
	if len(rs.Rules) == 0 {
		return &LoadError{Reason: "no rules defined"}
	}
	seen := make(map[string]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		switch {
		case r.ID == "":
			return &LoadError{Reason: fmt.Sprintf("rule %d: missing id", i)}
		case seen[r.ID]:
			return &LoadError{Reason: fmt.Sprintf("duplicate rule id %q", r.ID)}
		case r.Title == "":
			return &LoadError{Reason: fmt.Sprintf("rule %s: missing title", r.ID)}
		case !validSeverities[r.Severity]:
			return &LoadError{Reason: fmt.Sprintf("rule %s: unknown severity %q", r.ID, r.Severity)}
		case len(r.Sources) == 0:
			return &LoadError{Reason: fmt.Sprintf("rule %s: no sources", r.ID)}
		case len(r.Sinks) == 0:
			return &LoadError{Reason: fmt.Sprintf("rule %s: no sinks", r.ID)}
		}
		seen[r.ID] = true
	}
	return nil
}

// Merge combines the receiver with overrides from another set. A rule with a
// matching id replaces the catalogue entry, new ids are appended in sorted
// order so the result stays deterministic.
func (rs *RuleSet) Merge(extra *RuleSet) *RuleSet {
	if extra == nil || len(extra.Rules) == 0 {
		return rs
	}
	byID := make(map[string]Rule, len(extra.Rules))
	for _, r := range extra.Rules {
		byID[r.ID] = r
	}

	out := &RuleSet{Rules: make([]Rule, 0, len(rs.Rules)+len(extra.Rules))}
	for _, r := range rs.Rules {
		if override, ok := byID[r.ID]; ok {
			out.Rules = append(out.Rules, override)
			delete(byID, r.ID)
			continue
		}
		out.Rules = append(out.Rules, r)
	}

	added := make([]Rule, 0, len(byID))
	for _, r := range byID {
		added = append(added, r)
	}
	sort.Slice(added, func(i, j int) bool { return added[i].ID < added[j].ID })
	out.Rules = append(out.Rules, added...)
	return out
}
