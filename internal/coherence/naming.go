// Package coherence cross-checks adjacent artifacts in the execution
// order for naming, type and completeness drift. All checks are pure
// functions of the artifacts plus the configured rules; findings are
// data, not control flow.
package coherence

import (
	"strings"
	"unicode"

	"github.com/planvet/planvet/internal/config"
)

// splitTokens breaks an identifier into lowercase token runs regardless
// of rendering convention: user_id, userId, UserID and user-id all
// yield [user id]. Acronym runs stay one token (APIKey -> [api key]).
func splitTokens(name string) []string {
	var tokens []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = nil
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.' || r == '/':
			flush()
		case unicode.IsUpper(r):
			if len(cur) > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					flush()
				}
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return tokens
}

// canonicalKey reduces an identifier to its convention-independent
// identity: tokenized, aliased through the rules, joined with
// underscores. Two identifiers with equal keys name the same thing.
func canonicalKey(r *config.CoherenceRules, name string) string {
	tokens := splitTokens(name)
	for i, tok := range tokens {
		tokens[i] = r.CanonicalToken(tok)
	}
	return strings.Join(tokens, "_")
}

// detectConvention classifies how an identifier is rendered. A bare
// lowercase word is snake_case's degenerate form.
func detectConvention(name string) string {
	if strings.ContainsRune(name, '_') {
		return config.ConventionSnake
	}
	if strings.ContainsRune(name, '-') {
		return config.ConventionKebab
	}
	runes := []rune(name)
	if len(runes) > 0 && unicode.IsUpper(runes[0]) {
		return config.ConventionPascal
	}
	for _, r := range runes {
		if unicode.IsUpper(r) {
			return config.ConventionCamel
		}
	}
	return config.ConventionSnake
}

// parseRoute splits a normalized "METHOD /path" name into its method and
// path segments.
func parseRoute(route string) (method string, segments []string) {
	method, path, ok := strings.Cut(route, " ")
	if !ok {
		path = method
		method = ""
	}
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.ToUpper(method), segments
}

// isParamSegment reports whether a path segment is a parameter
// placeholder rather than a literal: {id}, :id, <id> or ${id}.
func isParamSegment(seg string) bool {
	return strings.HasPrefix(seg, "{") ||
		strings.HasPrefix(seg, ":") ||
		strings.HasPrefix(seg, "<") ||
		strings.Contains(seg, "${")
}

// routesMatch compares two normalized routes, treating parameter
// placeholders on either side as wildcards.
func routesMatch(a, b string) bool {
	ma, sa := parseRoute(a)
	mb, sb := parseRoute(b)
	if ma != mb || len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if isParamSegment(sa[i]) || isParamSegment(sb[i]) {
			continue
		}
		if !strings.EqualFold(sa[i], sb[i]) {
			return false
		}
	}
	return true
}

// handlerKeys lists the canonical identifier keys that count as a
// handling entry for a route capability, loosest last. POST
// /api/auth/login accepts postApiAuthLogin, postAuthLogin, authLogin and
// login among others. The completeness check reports absence, so
// looseness only suppresses false orphans.
func handlerKeys(r *config.CoherenceRules, route string) []string {
	method, segments := parseRoute(route)

	var literals []string
	for _, seg := range segments {
		if !isParamSegment(seg) {
			literals = append(literals, seg)
		}
	}
	trimmed := literals
	if len(trimmed) > 0 && strings.EqualFold(trimmed[0], "api") {
		trimmed = trimmed[1:]
	}

	join := func(parts []string) string {
		return canonicalKey(r, strings.Join(parts, "_"))
	}

	var keys []string
	add := func(k string) {
		if k == "" {
			return
		}
		for _, have := range keys {
			if have == k {
				return
			}
		}
		keys = append(keys, k)
	}

	m := strings.ToLower(method)
	add(join(append([]string{m}, literals...)))
	add(join(append([]string{m}, trimmed...)))
	add(join(literals))
	add(join(trimmed))
	if len(trimmed) > 0 {
		last := trimmed[len(trimmed)-1]
		add(join([]string{m, last}))
		add(join([]string{last}))
	}
	return keys
}
