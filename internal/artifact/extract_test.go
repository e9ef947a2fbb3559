package artifact

import (
	"errors"
	"testing"

	"github.com/planvet/planvet/pkg/models"
)

func factNames(facts []models.Fact, role models.FactRole) []string {
	var names []string
	for _, f := range facts {
		if f.Role == role {
			names = append(names, f.Name)
		}
	}
	return names
}

func hasFact(facts []models.Fact, name, typ string, role models.FactRole) bool {
	for _, f := range facts {
		if f.Name == name && f.DeclaredType == typ && f.Role == role {
			return true
		}
	}
	return false
}

func TestSchemaExtractor(t *testing.T) {
	content := `# Database Schema

### Table: users

- user_id: UUID
- email: VARCHAR(255)
- created_at: TIMESTAMP

### Table: sessions

- session_id: UUID
- user_id: UUID
`
	facts, err := schemaExtractor{}.Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	tables := factNames(facts, models.RoleDefinition)
	if len(tables) != 2 || tables[0] != "users" || tables[1] != "sessions" {
		t.Errorf("tables = %v, want [users sessions]", tables)
	}
	if !hasFact(facts, "user_id", "UUID", models.RoleField) {
		t.Error("missing field user_id: UUID")
	}
	if !hasFact(facts, "email", "VARCHAR", models.RoleField) {
		t.Error("missing field email: VARCHAR (size suffix should be stripped)")
	}
}

func TestSchemaExtractorSQLBlock(t *testing.T) {
	content := "## Schema\n\n```sql\nCREATE TABLE orders (\n    order_id UUID PRIMARY KEY,\n    total DECIMAL(10, 2),\n    PRIMARY KEY (order_id)\n);\n```\n"
	facts, err := schemaExtractor{}.Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !hasFact(facts, "orders", "table", models.RoleDefinition) {
		t.Error("missing table definition orders")
	}
	if !hasFact(facts, "order_id", "UUID", models.RoleField) {
		t.Error("missing column order_id")
	}
	if !hasFact(facts, "total", "DECIMAL", models.RoleField) {
		t.Error("missing column total")
	}
	for _, f := range facts {
		if f.Name == "PRIMARY" {
			t.Error("constraint line leaked in as a column")
		}
	}
}

func TestSchemaExtractorTableSuffixHeader(t *testing.T) {
	content := "## users table\n\n- id: UUID\n"
	facts, err := schemaExtractor{}.Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !hasFact(facts, "users", "table", models.RoleDefinition) {
		t.Errorf("facts = %v, want users table definition", facts)
	}
}

func TestContractExtractor(t *testing.T) {
	content := `# API Contract

## POST /api/auth/login

Request:
- email: string
- password: string

Response:
- token: string
- user_id: uuid

## GET /api/users/{id}

Returns a single user.
`
	facts, err := contractExtractor{}.Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !hasFact(facts, "POST /api/auth/login", models.RefKindRoute, models.RoleCapability) {
		t.Error("missing capability POST /api/auth/login")
	}
	if !hasFact(facts, "GET /api/users/{id}", models.RefKindRoute, models.RoleCapability) {
		t.Error("missing capability GET /api/users/{id}")
	}
	if !hasFact(facts, "email", "string", models.RoleField) {
		t.Error("missing request field email")
	}
	if !hasFact(facts, "user_id", "uuid", models.RoleField) {
		t.Error("missing response field user_id")
	}
}

func TestContractExtractorIgnoresProse(t *testing.T) {
	content := `# API Contract

## GET /api/health

Notes on operations:
- uptime: the service reports uptime in seconds
`
	facts, err := contractExtractor{}.Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	for _, f := range facts {
		if f.Role == models.RoleField {
			t.Errorf("prose bullet extracted as field: %v", f)
		}
	}
}

func TestLogicExtractor(t *testing.T) {
	content := `# Backend Logic

## POST /api/auth/login

Handler: postAuthLogin

Request body:
- email: string
- user_identifier: int

` + "```python\ndef postAuthLogin(request):\n    pass\n```\n"
	facts, err := logicExtractor{}.Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !hasFact(facts, "postAuthLogin", "function", models.RoleHandler) {
		t.Error("missing handler postAuthLogin")
	}
	if !hasFact(facts, "POST /api/auth/login", models.RefKindRoute, models.RoleReference) {
		t.Error("missing route reference POST /api/auth/login")
	}
	if !hasFact(facts, "user_identifier", "int", models.RoleField) {
		t.Error("missing field user_identifier: int")
	}
	// The handler appears both as "Handler:" annotation and function
	// definition; the collector must not duplicate it.
	count := 0
	for _, f := range facts {
		if f.Name == "postAuthLogin" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("postAuthLogin extracted %d times, want 1", count)
	}
}

func TestPresentationExtractor(t *testing.T) {
	content := "# Frontend Plan\n\n## Login Page\n\n```jsx\nimport { LoginForm, Button } from './components';\n\nconst res = await api.post('/api/auth/login', body);\nawait fetch('/api/users?page=1');\nreturn <LoginForm onSubmit={submit} />;\n```\n\nState:\n- userId: string\n- token: string\n"
	facts, err := presentationExtractor{}.Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !hasFact(facts, "POST /api/auth/login", models.RefKindRoute, models.RoleReference) {
		t.Error("missing api.post route reference")
	}
	if !hasFact(facts, "GET /api/users", models.RefKindRoute, models.RoleReference) {
		t.Error("missing fetch route reference (query string should be stripped)")
	}
	if !hasFact(facts, "LoginForm", models.RefKindComponent, models.RoleReference) {
		t.Error("missing component reference LoginForm")
	}
	if !hasFact(facts, "Button", models.RefKindComponent, models.RoleReference) {
		t.Error("missing imported component Button")
	}
	if !hasFact(facts, "userId", "string", models.RoleField) {
		t.Error("missing state field userId")
	}
}

func TestComponentsExtractor(t *testing.T) {
	content := `# UI Components

## LoginForm

Props:
- onSubmit: function
- loading: boolean

## Button component

export const Button = (props) => {}
`
	facts, err := componentsExtractor{}.Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !hasFact(facts, "LoginForm", models.RefKindComponent, models.RoleDefinition) {
		t.Error("missing definition LoginForm")
	}
	if !hasFact(facts, "Button", models.RefKindComponent, models.RoleDefinition) {
		t.Error("missing definition Button")
	}
	if !hasFact(facts, "onSubmit", "function", models.RoleField) {
		t.Error("missing prop onSubmit")
	}
}

func TestComponentsExtractorPropsHeaderIsNotADefinition(t *testing.T) {
	content := `## Card

### Props

- title: string
`
	facts, err := componentsExtractor{}.Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	defs := factNames(facts, models.RoleDefinition)
	if len(defs) != 1 || defs[0] != "Card" {
		t.Errorf("definitions = %v, want [Card]", defs)
	}
	if !hasFact(facts, "title", "string", models.RoleField) {
		t.Error("missing prop title under ### Props header")
	}
}

func TestExtractorsNoStructure(t *testing.T) {
	tests := []struct {
		name string
		t    models.ArtifactType
	}{
		{"schema", models.ArtifactSchema},
		{"contract", models.ArtifactContract},
		{"logic", models.ArtifactLogic},
		{"presentation", models.ArtifactPresentation},
		{"components", models.ArtifactComponents},
	}

	content := "Just some prose with no structural markers at all.\nMore prose.\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ForType(tt.t).Extract(content)
			if !errors.Is(err, ErrNoStructure) {
				t.Errorf("Extract() error = %v, want ErrNoStructure", err)
			}
		})
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"get", "/api/users", "GET /api/users"},
		{"POST", "/api/users/", "POST /api/users"},
		{"GET", "/api/users?page=2", "GET /api/users"},
		{"DELETE", "/", "DELETE /"},
	}

	for _, tt := range tests {
		if got := normalizeRoute(tt.method, tt.path); got != tt.want {
			t.Errorf("normalizeRoute(%q, %q) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestCleanTypeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"VARCHAR(255)", "VARCHAR"},
		{"DECIMAL(10,2)", "DECIMAL"},
		{"`uuid`", "uuid"},
		{"string,", "string"},
		{"int", "int"},
	}

	for _, tt := range tests {
		if got := cleanTypeToken(tt.in); got != tt.want {
			t.Errorf("cleanTypeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
