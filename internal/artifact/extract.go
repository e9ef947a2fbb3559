package artifact

import (
	"errors"
	"regexp"
	"strings"

	"github.com/planvet/planvet/pkg/models"
)

// ErrNoStructure indicates a document lacked the minimum structural
// markers its extractor needs. The load path treats this as recoverable:
// the artifact stays in the set, flagged facts-incomplete.
var ErrNoStructure = errors.New("no recognizable structure markers")

// Extractor pulls cross-referencing facts out of one artifact type's
// document. Extractors are tolerant: missing optional sections degrade
// extraction, they never hard-fail the load.
type Extractor interface {
	Extract(content string) ([]models.Fact, error)
}

// ForType returns the extractor for an artifact type.
func ForType(t models.ArtifactType) Extractor {
	switch t {
	case models.ArtifactSchema:
		return schemaExtractor{}
	case models.ArtifactContract:
		return contractExtractor{}
	case models.ArtifactLogic:
		return logicExtractor{}
	case models.ArtifactPresentation:
		return presentationExtractor{}
	case models.ArtifactComponents:
		return componentsExtractor{}
	default:
		return nullExtractor{}
	}
}

var (
	// ### Table: users  /  ## users table
	tableLabelRe  = regexp.MustCompile("(?i)^#{1,6}\\s+table:\\s*`?([A-Za-z_]\\w*)`?\\s*$")
	tableSuffixRe = regexp.MustCompile("(?i)^#{1,6}\\s+`?([A-Za-z_]\\w*)`?\\s+table\\s*$")
	createTableRe = regexp.MustCompile("(?i)create\\s+table\\s+(?:if\\s+not\\s+exists\\s+)?[\"`]?([A-Za-z_]\\w*)")

	// - user_id: UUID  /  indented  email: string
	bulletFieldRe = regexp.MustCompile("^\\s*[-*+]\\s+`?([A-Za-z_]\\w*)`?\\s*:\\s*`?([A-Za-z][\\w\\-\\[\\]()]*)`?")
	indentFieldRe = regexp.MustCompile("^\\s{2,}`?([A-Za-z_]\\w*)`?\\s*:\\s*`?([A-Za-z][\\w\\-\\[\\]()]*)`?\\s*$")

	// user_id UUID PRIMARY KEY, inside a CREATE TABLE block
	sqlColumnRe = regexp.MustCompile("^\\s+[\"`]?([A-Za-z_]\\w*)[\"`]?\\s+([A-Za-z]+(?:\\(\\d+(?:,\\s*\\d+)?\\))?)")

	// GET /api/users/{id}
	endpointRe = regexp.MustCompile("\\b(GET|POST|PUT|PATCH|DELETE)\\s+(/[^\\s`'\"]*)")

	// def login / func Login / function login / export async function login
	funcDefRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?(?:def|func|function)\s+([A-Za-z_]\w*)`)
	constFnRe = regexp.MustCompile(`^\s*(?:export\s+)?const\s+([A-Za-z_]\w*)\s*=\s*(?:async\b|\()`)
	handlerRe = regexp.MustCompile("(?i)^\\s*[-*+]?\\s*handler\\s*:\\s*`?([A-Za-z_]\\w*)`?")

	// fetch('/api/users')  /  axios.get('/api/users')  /  api.post("/auth/login")
	fetchRe     = regexp.MustCompile(`fetch\(['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)
	clientRe    = regexp.MustCompile(`\b(?:axios|api|client|http)\.(get|post|put|patch|delete)\(['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)
	methodHint  = regexp.MustCompile(`(?i)method\s*:\s*['"](GET|POST|PUT|PATCH|DELETE)['"]`)
	jsxOpenRe   = regexp.MustCompile(`<([A-Z]\w*)[\s/>]`)
	importRe    = regexp.MustCompile(`import\s*{([^}]+)}\s*from`)
	headerDefRe = regexp.MustCompile("^#{2,6}\\s+`?([A-Z]\\w*)`?(?:\\s+[Cc]omponent)?\\s*$")
	exportDefRe = regexp.MustCompile(`^\s*export\s+(?:default\s+)?(?:function|const)\s+([A-Z]\w*)`)
	mdHeaderRe  = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
	fieldBlockRe = regexp.MustCompile(`(?i)(schema|request|response|props|state|fields|model|body|payload|columns|attributes)`)
)

// opensFieldBlock recognizes block-opening lines such as "Request:",
// "LoginResponse:" or "**Props:**" that scope the following name:type
// entries.
func opensFieldBlock(line string) bool {
	trimmed := strings.Trim(strings.TrimSpace(line), "*_")
	return strings.HasSuffix(trimmed, ":") && fieldBlockRe.MatchString(trimmed)
}

// fieldStopwords are identifier names the field regexes may match that are
// documentation vocabulary, not data fields.
var fieldStopwords = map[string]bool{
	"handler":     true,
	"method":      true,
	"endpoint":    true,
	"route":       true,
	"description": true,
	"returns":     true,
	"note":        true,
	"example":     true,
	"url":         true,
	"path":        true,
}

// factCollector accumulates facts, dropping duplicates while preserving
// document order.
type factCollector struct {
	facts []models.Fact
	seen  map[string]bool
}

func newFactCollector() *factCollector {
	return &factCollector{seen: make(map[string]bool)}
}

func (fc *factCollector) add(f models.Fact) {
	key := f.Name + "|" + f.DeclaredType + "|" + string(f.Role)
	if fc.seen[key] {
		return
	}
	fc.seen[key] = true
	fc.facts = append(fc.facts, f)
}

// cleanTypeToken strips backticks, size parentheses and trailing
// punctuation from a declared type: VARCHAR(255) becomes VARCHAR.
func cleanTypeToken(tok string) string {
	tok = strings.Trim(tok, "`,;")
	if i := strings.IndexByte(tok, '('); i > 0 {
		tok = tok[:i]
	}
	return tok
}

// normalizeRoute renders an endpoint as "METHOD /path" with query strings
// and trailing slashes removed.
func normalizeRoute(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return strings.ToUpper(method) + " " + path
}

// fieldLine matches either bullet or indented name:type lines, filtering
// stopword names.
func fieldLine(line string) (name, typ string, ok bool) {
	m := bulletFieldRe.FindStringSubmatch(line)
	if m == nil {
		m = indentFieldRe.FindStringSubmatch(line)
	}
	if m == nil {
		return "", "", false
	}
	if fieldStopwords[strings.ToLower(m[1])] {
		return "", "", false
	}
	return m[1], cleanTypeToken(m[2]), true
}

type schemaExtractor struct{}

// Extract pulls table definitions and column fields from a schema plan.
// Columns are recognized as markdown bullets, indented name:type entries,
// or SQL column lines inside CREATE TABLE blocks.
func (schemaExtractor) Extract(content string) ([]models.Fact, error) {
	fc := newFactCollector()
	inCreate := false

	for _, line := range strings.Split(content, "\n") {
		if m := tableLabelRe.FindStringSubmatch(line); m != nil {
			fc.add(models.Fact{Name: m[1], DeclaredType: "table", Role: models.RoleDefinition})
			continue
		}
		if m := tableSuffixRe.FindStringSubmatch(line); m != nil {
			fc.add(models.Fact{Name: m[1], DeclaredType: "table", Role: models.RoleDefinition})
			continue
		}
		if m := createTableRe.FindStringSubmatch(line); m != nil {
			fc.add(models.Fact{Name: m[1], DeclaredType: "table", Role: models.RoleDefinition})
			inCreate = true
			continue
		}
		if inCreate {
			if strings.Contains(line, ");") || strings.HasPrefix(strings.TrimSpace(line), "```") {
				inCreate = false
				continue
			}
			if m := sqlColumnRe.FindStringSubmatch(line); m != nil {
				if !sqlKeywords[strings.ToUpper(m[1])] {
					fc.add(models.Fact{Name: m[1], DeclaredType: cleanTypeToken(m[2]), Role: models.RoleField})
				}
				continue
			}
		}
		if name, typ, ok := fieldLine(line); ok {
			fc.add(models.Fact{Name: name, DeclaredType: typ, Role: models.RoleField})
		}
	}

	if len(fc.facts) == 0 {
		return nil, ErrNoStructure
	}
	return fc.facts, nil
}

// sqlKeywords are CREATE TABLE block lines that look like columns but are
// constraints.
var sqlKeywords = map[string]bool{
	"PRIMARY":    true,
	"FOREIGN":    true,
	"UNIQUE":     true,
	"CONSTRAINT": true,
	"CHECK":      true,
	"INDEX":      true,
	"KEY":        true,
}

type contractExtractor struct{}

// Extract pulls endpoint capabilities and request/response schema fields
// from an API contract plan. Fields only count inside schema-shaped
// blocks so running prose stays out of the fact list.
func (contractExtractor) Extract(content string) ([]models.Fact, error) {
	fc := newFactCollector()
	inFieldBlock := false

	for _, line := range strings.Split(content, "\n") {
		if m := endpointRe.FindStringSubmatch(line); m != nil {
			fc.add(models.Fact{
				Name:         normalizeRoute(m[1], m[2]),
				DeclaredType: models.RefKindRoute,
				Role:         models.RoleCapability,
			})
			continue
		}
		if m := mdHeaderRe.FindStringSubmatch(line); m != nil {
			inFieldBlock = fieldBlockRe.MatchString(m[1])
			continue
		}
		if opensFieldBlock(line) {
			inFieldBlock = true
			continue
		}
		if !inFieldBlock {
			continue
		}
		if name, typ, ok := fieldLine(line); ok {
			fc.add(models.Fact{Name: name, DeclaredType: typ, Role: models.RoleField})
		}
	}

	if len(fc.facts) == 0 {
		return nil, ErrNoStructure
	}
	return fc.facts, nil
}

type logicExtractor struct{}

// Extract pulls handler definitions, the routes they claim to serve, and
// model fields from a backend logic plan.
func (logicExtractor) Extract(content string) ([]models.Fact, error) {
	fc := newFactCollector()
	inFieldBlock := false

	for _, line := range strings.Split(content, "\n") {
		if m := handlerRe.FindStringSubmatch(line); m != nil {
			fc.add(models.Fact{Name: m[1], DeclaredType: "function", Role: models.RoleHandler})
			continue
		}
		if m := funcDefRe.FindStringSubmatch(line); m != nil {
			fc.add(models.Fact{Name: m[1], DeclaredType: "function", Role: models.RoleHandler})
			continue
		}
		if m := constFnRe.FindStringSubmatch(line); m != nil {
			fc.add(models.Fact{Name: m[1], DeclaredType: "function", Role: models.RoleHandler})
			continue
		}
		if m := endpointRe.FindStringSubmatch(line); m != nil {
			fc.add(models.Fact{
				Name:         normalizeRoute(m[1], m[2]),
				DeclaredType: models.RefKindRoute,
				Role:         models.RoleReference,
			})
			continue
		}
		if m := mdHeaderRe.FindStringSubmatch(line); m != nil {
			inFieldBlock = fieldBlockRe.MatchString(m[1])
			continue
		}
		if opensFieldBlock(line) {
			inFieldBlock = true
			continue
		}
		if !inFieldBlock {
			continue
		}
		if name, typ, ok := fieldLine(line); ok {
			fc.add(models.Fact{Name: name, DeclaredType: typ, Role: models.RoleField})
		}
	}

	if len(fc.facts) == 0 {
		return nil, ErrNoStructure
	}
	return fc.facts, nil
}

type presentationExtractor struct{}

// Extract pulls the API calls a frontend plan makes, the components it
// consumes, and its state/props fields.
func (presentationExtractor) Extract(content string) ([]models.Fact, error) {
	fc := newFactCollector()
	inFieldBlock := false

	for _, line := range strings.Split(content, "\n") {
		for _, m := range clientRe.FindAllStringSubmatch(line, -1) {
			fc.add(models.Fact{
				Name:         normalizeRoute(m[1], m[2]),
				DeclaredType: models.RefKindRoute,
				Role:         models.RoleReference,
			})
		}
		for _, m := range fetchRe.FindAllStringSubmatch(line, -1) {
			method := "GET"
			if h := methodHint.FindStringSubmatch(line); h != nil {
				method = h[1]
			}
			fc.add(models.Fact{
				Name:         normalizeRoute(method, m[1]),
				DeclaredType: models.RefKindRoute,
				Role:         models.RoleReference,
			})
		}
		if m := endpointRe.FindStringSubmatch(line); m != nil && !clientRe.MatchString(line) && !fetchRe.MatchString(line) {
			fc.add(models.Fact{
				Name:         normalizeRoute(m[1], m[2]),
				DeclaredType: models.RefKindRoute,
				Role:         models.RoleReference,
			})
		}
		for _, m := range jsxOpenRe.FindAllStringSubmatch(line, -1) {
			fc.add(models.Fact{Name: m[1], DeclaredType: models.RefKindComponent, Role: models.RoleReference})
		}
		if m := importRe.FindStringSubmatch(line); m != nil {
			for _, name := range strings.Split(m[1], ",") {
				name = strings.TrimSpace(name)
				if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
					fc.add(models.Fact{Name: name, DeclaredType: models.RefKindComponent, Role: models.RoleReference})
				}
			}
		}
		if m := mdHeaderRe.FindStringSubmatch(line); m != nil {
			inFieldBlock = fieldBlockRe.MatchString(m[1])
			continue
		}
		if opensFieldBlock(line) {
			inFieldBlock = true
			continue
		}
		if !inFieldBlock {
			continue
		}
		if name, typ, ok := fieldLine(line); ok {
			fc.add(models.Fact{Name: name, DeclaredType: typ, Role: models.RoleField})
		}
	}

	if len(fc.facts) == 0 {
		return nil, ErrNoStructure
	}
	return fc.facts, nil
}

type componentsExtractor struct{}

// Extract pulls component definitions and their prop fields from a UI
// component plan.
func (componentsExtractor) Extract(content string) ([]models.Fact, error) {
	fc := newFactCollector()
	inFieldBlock := false

	for _, line := range strings.Split(content, "\n") {
		if m := mdHeaderRe.FindStringSubmatch(line); m != nil {
			// Keyword headers such as "### Props" scope fields; anything
			// else starting with a capital is a component definition.
			if fieldBlockRe.MatchString(m[1]) {
				inFieldBlock = true
				continue
			}
			inFieldBlock = false
			if h := headerDefRe.FindStringSubmatch(line); h != nil {
				fc.add(models.Fact{Name: h[1], DeclaredType: models.RefKindComponent, Role: models.RoleDefinition})
			}
			continue
		}
		if m := exportDefRe.FindStringSubmatch(line); m != nil {
			fc.add(models.Fact{Name: m[1], DeclaredType: models.RefKindComponent, Role: models.RoleDefinition})
			continue
		}
		if opensFieldBlock(line) {
			inFieldBlock = true
			continue
		}
		if !inFieldBlock {
			continue
		}
		if name, typ, ok := fieldLine(line); ok {
			fc.add(models.Fact{Name: name, DeclaredType: typ, Role: models.RoleField})
		}
	}

	if len(fc.facts) == 0 {
		return nil, ErrNoStructure
	}
	return fc.facts, nil
}

type nullExtractor struct{}

func (nullExtractor) Extract(string) ([]models.Fact, error) {
	return nil, ErrNoStructure
}
