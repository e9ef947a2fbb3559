package coherence

import (
	"fmt"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/pkg/models"
)

// fieldMatch joins a downstream field fact with the upstream fact it
// token-matches.
type fieldMatch struct {
	upstream   models.Fact
	downstream models.Fact
}

// pairChecker runs the check families over one adjacent pair of the
// execution order: a is the upstream artifact, b its successor.
type pairChecker struct {
	rules *config.CoherenceRules
	a, b  *models.Artifact
}

// checkPair validates one adjacent pair. Families run in fixed order:
// naming (mismatches and broken references), then types, then
// completeness. When either side loaded facts-incomplete every error
// downgrades to a warning, since the evidence base is partial.
func checkPair(rules *config.CoherenceRules, a, b *models.Artifact) []models.Finding {
	pc := &pairChecker{rules: rules, a: a, b: b}
	matches := pc.matchFields()

	var findings []models.Finding
	findings = append(findings, pc.checkNaming(matches)...)
	findings = append(findings, pc.checkReferences()...)
	findings = append(findings, pc.checkTypes(matches)...)
	findings = append(findings, pc.checkCompleteness()...)

	if a.FactsIncomplete || b.FactsIncomplete {
		for i, f := range findings {
			if f.Severity == models.SeverityError {
				findings[i].Severity = models.SeverityWarning
			}
		}
	}
	return findings
}

// matchFields pairs each downstream field with the first upstream field
// sharing its canonical key. Downstream fields without a counterpart are
// not findings; later artifacts may extend the data model.
func (pc *pairChecker) matchFields() []fieldMatch {
	upstream := make(map[string]models.Fact)
	for _, f := range pc.a.FactsByRole(models.RoleField) {
		key := canonicalKey(pc.rules, f.Name)
		if _, ok := upstream[key]; !ok {
			upstream[key] = f
		}
	}

	var matches []fieldMatch
	for _, f := range pc.b.FactsByRole(models.RoleField) {
		if up, ok := upstream[canonicalKey(pc.rules, f.Name)]; ok {
			matches = append(matches, fieldMatch{upstream: up, downstream: f})
		}
	}
	return matches
}

// checkNaming reports token-matched fields whose renderings differ under
// conventions not declared equivalent in the rules.
func (pc *pairChecker) checkNaming(matches []fieldMatch) []models.Finding {
	var findings []models.Finding
	for _, m := range matches {
		if m.upstream.Name == m.downstream.Name {
			continue
		}
		convUp := detectConvention(m.upstream.Name)
		convDown := detectConvention(m.downstream.Name)
		if pc.rules.EquivalenceConfigured(convUp, convDown) {
			continue
		}
		findings = append(findings, models.Finding{
			Severity: pc.rules.SeverityFor(models.CodeNamingMismatch, models.SeverityWarning),
			Code:     models.CodeNamingMismatch,
			Source:   pc.b.Type,
			Target:   pc.a.Type,
			Field:    m.downstream.Name,
			Message: fmt.Sprintf("%q and %s %q name the same field with different conventions (%s vs %s)",
				m.downstream.Name, pc.a.Type, m.upstream.Name, convDown, convUp),
		})
	}
	return findings
}

// checkReferences resolves explicit reference facts against the side of
// the pair that declares that reference kind. Routes are declared by the
// contract and served by the logic layer; components are defined by the
// components artifact.
func (pc *pairChecker) checkReferences() []models.Finding {
	var findings []models.Finding
	findings = append(findings, pc.brokenRefs(pc.b, pc.a)...)
	findings = append(findings, pc.brokenRefs(pc.a, pc.b)...)
	return findings
}

// resolvesRoutes reports whether an artifact type declares or serves
// routes that references can resolve against.
func resolvesRoutes(t models.ArtifactType) bool {
	return t == models.ArtifactContract || t == models.ArtifactLogic
}

// brokenRefs checks the reference facts of from against the declarations
// in against, skipping kinds against does not declare.
func (pc *pairChecker) brokenRefs(from, against *models.Artifact) []models.Finding {
	var findings []models.Finding

	if resolvesRoutes(against.Type) {
		decls := routeDecls(against)
		for _, ref := range from.FactsByRole(models.RoleReference) {
			if ref.DeclaredType != models.RefKindRoute {
				continue
			}
			if matchesAnyRoute(ref.Name, decls) {
				continue
			}
			findings = append(findings, models.Finding{
				Severity: pc.refSeverity(models.RefKindRoute, models.SeverityWarning),
				Code:     models.CodeBrokenReference,
				Source:   from.Type,
				Target:   against.Type,
				Field:    ref.Name,
				Message:  fmt.Sprintf("route %s is not declared in %s", ref.Name, against.Type),
			})
		}
	}

	if against.Type == models.ArtifactComponents {
		defs := make(map[string]bool)
		for _, d := range against.FactsByRole(models.RoleDefinition) {
			defs[canonicalKey(pc.rules, d.Name)] = true
		}
		for _, ref := range from.FactsByRole(models.RoleReference) {
			if ref.DeclaredType != models.RefKindComponent {
				continue
			}
			if defs[canonicalKey(pc.rules, ref.Name)] {
				continue
			}
			findings = append(findings, models.Finding{
				Severity: pc.refSeverity(models.RefKindComponent, models.SeverityError),
				Code:     models.CodeBrokenReference,
				Source:   from.Type,
				Target:   against.Type,
				Field:    ref.Name,
				Message:  fmt.Sprintf("component %s has no definition in %s", ref.Name, against.Type),
			})
		}
	}

	return findings
}

// refSeverity resolves the severity for a broken reference of the given
// kind: a "broken_reference.<kind>" override wins over the plain code
// override, which wins over the built-in default.
func (pc *pairChecker) refSeverity(kind string, def models.Severity) models.Severity {
	if s, ok := pc.rules.Severities[string(models.CodeBrokenReference)+"."+kind]; ok {
		return models.Severity(s)
	}
	return pc.rules.SeverityFor(models.CodeBrokenReference, def)
}

// routeDecls lists the route names an artifact declares as capabilities
// or claims to serve.
func routeDecls(art *models.Artifact) []string {
	var decls []string
	for _, f := range art.Facts {
		if f.DeclaredType != models.RefKindRoute {
			continue
		}
		if f.Role == models.RoleCapability || f.Role == models.RoleReference {
			decls = append(decls, f.Name)
		}
	}
	return decls
}

func matchesAnyRoute(ref string, decls []string) bool {
	for _, d := range decls {
		if routesMatch(ref, d) {
			return true
		}
	}
	return false
}

// checkTypes compares declared types across token-matched field pairs
// through the compatibility families.
func (pc *pairChecker) checkTypes(matches []fieldMatch) []models.Finding {
	var findings []models.Finding
	for _, m := range matches {
		if m.upstream.DeclaredType == "" || m.downstream.DeclaredType == "" {
			continue
		}
		if pc.rules.Compatible(m.upstream.DeclaredType, m.downstream.DeclaredType) {
			continue
		}
		findings = append(findings, models.Finding{
			Severity: pc.rules.SeverityFor(models.CodeTypeMismatch, models.SeverityError),
			Code:     models.CodeTypeMismatch,
			Source:   pc.b.Type,
			Target:   pc.a.Type,
			Field:    m.downstream.Name,
			Message: fmt.Sprintf("%q is declared %s here but %s in %s",
				m.downstream.Name, m.downstream.DeclaredType, m.upstream.DeclaredType, pc.a.Type),
		})
	}
	return findings
}

// checkCompleteness verifies every capability the upstream artifact
// declares has a handling entry in its successor. Route capabilities
// accept handler names derived from the route, so POST /api/auth/login
// is handled by postAuthLogin.
func (pc *pairChecker) checkCompleteness() []models.Finding {
	caps := pc.a.FactsByRole(models.RoleCapability)
	if len(caps) == 0 {
		return nil
	}

	handled := make(map[string]bool)
	for _, f := range pc.b.Facts {
		if f.Role == models.RoleHandler || f.Role == models.RoleDefinition {
			handled[canonicalKey(pc.rules, f.Name)] = true
		}
	}

	var findings []models.Finding
	for _, capability := range caps {
		var keys []string
		if capability.DeclaredType == models.RefKindRoute {
			keys = handlerKeys(pc.rules, capability.Name)
		} else {
			keys = []string{canonicalKey(pc.rules, capability.Name)}
		}

		matched := false
		for _, k := range keys {
			if handled[k] {
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		findings = append(findings, models.Finding{
			Severity: pc.rules.SeverityFor(models.CodeOrphanedCapability, models.SeverityWarning),
			Code:     models.CodeOrphanedCapability,
			Source:   pc.a.Type,
			Target:   pc.b.Type,
			Field:    capability.Name,
			Message:  fmt.Sprintf("capability %s has no handling entry in %s", capability.Name, pc.b.Type),
		})
	}
	return findings
}
