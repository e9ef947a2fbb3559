package config

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/planvet/planvet/pkg/models"
)

// CoherenceRules is the configurable policy the validator applies: naming
// equivalences, type compatibility families, severity overrides, and
// checkpoint text. A rules file merges over the built-in defaults: aliases,
// families, severities and checkpoints merge per key, an equivalence list
// replaces the default one when present.
type CoherenceRules struct {
	Naming      NamingRules       `yaml:"naming"`
	Types       TypeRules         `yaml:"types"`
	Severities  map[string]string `yaml:"severities"`
	Checkpoints map[string]string `yaml:"checkpoints"`
}

// NamingRules configures how identifiers are matched across artifacts.
type NamingRules struct {
	// Equivalences lists accepted convention pairs, e.g.
	// "snake_case<->camelCase". A pair being listed silences the
	// naming-mismatch warning for identifiers that correspond across those
	// conventions.
	Equivalences []string `yaml:"equivalences"`
	// Aliases maps identifier tokens to a canonical token before
	// comparison, e.g. identifier -> id.
	Aliases map[string]string `yaml:"aliases"`
}

// TypeRules configures type-token compatibility.
type TypeRules struct {
	// Families groups mutually compatible type tokens under a family
	// name. Tokens outside every family are compatible only when equal.
	Families map[string][]string `yaml:"families"`
}

// Convention names used in equivalence pairs.
const (
	ConventionSnake  = "snake_case"
	ConventionCamel  = "camelCase"
	ConventionPascal = "PascalCase"
	ConventionKebab  = "kebab-case"
)

// DefaultRules returns the built-in policy.
func DefaultRules() *CoherenceRules {
	return &CoherenceRules{
		Naming: NamingRules{
			Equivalences: nil,
			Aliases: map[string]string{
				"identifier": "id",
				"ident":      "id",
			},
		},
		Types: TypeRules{
			Families: map[string][]string{
				"identifier": {"uuid", "guid", "varchar", "text", "string", "char", "id"},
				"integer":    {"int", "integer", "bigint", "smallint", "serial", "number", "int32", "int64"},
				"decimal":    {"decimal", "numeric", "float", "double", "real", "number"},
				"boolean":    {"bool", "boolean"},
				"temporal":   {"timestamp", "timestamptz", "datetime", "date", "time", "date-time"},
				"object":     {"json", "jsonb", "object", "map", "dict"},
				"array":      {"array", "list", "set"},
			},
		},
		Severities:  map[string]string{},
		Checkpoints: map[string]string{},
	}
}

// LoadRules reads the rules file at path and merges it over the defaults.
// A missing file is not an error; the defaults apply unchanged.
func LoadRules(path string) (*CoherenceRules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	loaded := &CoherenceRules{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	if loaded.Naming.Equivalences != nil {
		rules.Naming.Equivalences = loaded.Naming.Equivalences
	}
	for tok, canon := range loaded.Naming.Aliases {
		rules.Naming.Aliases[strings.ToLower(tok)] = strings.ToLower(canon)
	}
	for family, tokens := range loaded.Types.Families {
		rules.Types.Families[family] = tokens
	}
	for code, sev := range loaded.Severities {
		s := models.Severity(strings.ToLower(sev))
		if !s.Valid() {
			return nil, fmt.Errorf("rules file %s: unknown severity %q for %s", path, sev, code)
		}
		rules.Severities[code] = string(s)
	}
	for typ, text := range loaded.Checkpoints {
		rules.Checkpoints[typ] = text
	}

	return rules, nil
}

// CanonicalToken lowercases an identifier token and applies any alias.
func (r *CoherenceRules) CanonicalToken(tok string) string {
	lower := strings.ToLower(tok)
	if canon, ok := r.Naming.Aliases[lower]; ok {
		return canon
	}
	return lower
}

// EquivalenceConfigured reports whether the rendering pair (a, b) is an
// accepted convention mapping. Pairs are symmetric when declared with
// "<->" and one-way with "->".
func (r *CoherenceRules) EquivalenceConfigured(a, b string) bool {
	for _, eq := range r.Naming.Equivalences {
		if from, to, ok := strings.Cut(eq, "<->"); ok {
			from, to = strings.TrimSpace(from), strings.TrimSpace(to)
			if (from == a && to == b) || (from == b && to == a) {
				return true
			}
			continue
		}
		if from, to, ok := strings.Cut(eq, "->"); ok {
			from, to = strings.TrimSpace(from), strings.TrimSpace(to)
			if from == a && to == b {
				return true
			}
		}
	}
	return false
}

// FamiliesOf returns every family containing the given type token.
func (r *CoherenceRules) FamiliesOf(token string) []string {
	lower := strings.ToLower(token)
	var out []string
	for family, tokens := range r.Types.Families {
		for _, t := range tokens {
			if strings.ToLower(t) == lower {
				out = append(out, family)
				break
			}
		}
	}
	return out
}

// Compatible reports whether two declared type tokens may describe the
// same value: they share a family, or neither is classified and they are
// equal ignoring case.
func (r *CoherenceRules) Compatible(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	fa, fb := r.FamiliesOf(a), r.FamiliesOf(b)
	for _, x := range fa {
		for _, y := range fb {
			if x == y {
				return true
			}
		}
	}
	return false
}

// SeverityFor returns the configured severity for a finding code, or the
// given default when no override exists.
func (r *CoherenceRules) SeverityFor(code models.FindingCode, def models.Severity) models.Severity {
	if s, ok := r.Severities[string(code)]; ok {
		return models.Severity(s)
	}
	return def
}

// CheckpointFor returns the configured checkpoint text override for an
// artifact type.
func (r *CoherenceRules) CheckpointFor(t models.ArtifactType) (string, bool) {
	text, ok := r.Checkpoints[string(t)]
	return text, ok
}
