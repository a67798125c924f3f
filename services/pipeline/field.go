package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GeneralField is returned when no rule matches
const GeneralField = "general"

// FieldRule maps a set of keywords to a field tag. Rules are checked in order,
// so more specific fields must come before generic ones.
type FieldRule struct {
	Field    string   `yaml:"field"`
	Keywords []string `yaml:"keywords"`
}

// DefaultFieldRules is the built-in classifier table
var DefaultFieldRules = []FieldRule{
	{Field: "electrical", Keywords: []string{"voltage", "circuit", "wiring", "current", "transformer", "ohm", "electrician", "switchboard"}},
	{Field: "electronics", Keywords: []string{"transistor", "microcontroller", "semiconductor", "pcb", "diode", "capacitor", "arduino"}},
	{Field: "automotive", Keywords: []string{"engine", "vehicle", "brake", "transmission", "carburetor", "ignition", "mechanic"}},
	{Field: "welding", Keywords: []string{"weld", "welding", "arc", "mig", "tig", "soldering", "fabrication"}},
	{Field: "plumbing", Keywords: []string{"pipe", "plumbing", "drainage", "valve", "fitting", "sanitary"}},
	{Field: "construction", Keywords: []string{"concrete", "masonry", "carpentry", "scaffold", "brick", "construction", "building site"}},
	{Field: "programming", Keywords: []string{"programming", "algorithm", "software", "code", "database", "python", "javascript", "api"}},
	{Field: "healthcare", Keywords: []string{"patient", "nursing", "clinical", "medical", "anatomy", "diagnosis", "hygiene"}},
	{Field: "culinary", Keywords: []string{"cooking", "recipe", "kitchen", "chef", "baking", "food safety"}},
	{Field: "agriculture", Keywords: []string{"crop", "soil", "plant", "farming", "irrigation", "harvest", "horticulture", "photosynthesis", "fertilizer"}},
	{Field: "business", Keywords: []string{"accounting", "marketing", "finance", "sales", "management", "customer"}},
	{Field: "science", Keywords: []string{"biology", "chemistry", "physics", "energy", "cell", "molecule", "experiment"}},
}

type fieldRulesFile struct {
	Rules []FieldRule `yaml:"rules"`
}

// LoadFieldRules reads an ordered rule table from a YAML file of the form
//
//	rules:
//	  - field: electrical
//	    keywords: [voltage, circuit]
func LoadFieldRules(path string) ([]FieldRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field rules: %w", err)
	}

	var file fieldRulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse field rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, errors.New("field rules file has no rules")
	}

	for i, rule := range file.Rules {
		if strings.TrimSpace(rule.Field) == "" || len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("field rule %d needs a field and at least one keyword", i)
		}
	}
	return file.Rules, nil
}

// DetectField returns the first field whose keywords occur in the combined text
func DetectField(rules []FieldRule, title, content, context string) string {
	haystack := strings.ToLower(strings.Join([]string{title, content, context}, " "))
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && containsWord(haystack, kw) {
				return rule.Field
			}
		}
	}
	return GeneralField
}

// containsWord reports whether needle occurs in s starting and ending at word boundaries.
// A trailing plural "s" still counts as a match.
func containsWord(s, needle string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		if end < len(s) && s[end] == 's' {
			end++
		}
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}
