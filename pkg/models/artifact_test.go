package models

import "testing"

func TestArtifactType_Valid(t *testing.T) {
	tests := []struct {
		name string
		typ  ArtifactType
		want bool
	}{
		{"schema is valid", ArtifactSchema, true},
		{"contract is valid", ArtifactContract, true},
		{"logic is valid", ArtifactLogic, true},
		{"presentation is valid", ArtifactPresentation, true},
		{"components is valid", ArtifactComponents, true},
		{"empty string is invalid", ArtifactType(""), false},
		{"unknown type is invalid", ArtifactType("storage"), false},
		{"uppercase is invalid", ArtifactType("SCHEMA"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.Valid(); got != tt.want {
				t.Errorf("ArtifactType(%q).Valid() = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestArtifactType_Priority(t *testing.T) {
	// Priority must follow the fixed order regardless of how the types
	// are enumerated elsewhere.
	prev := -1
	for _, typ := range AllArtifactTypes {
		p := typ.Priority()
		if p <= prev {
			t.Errorf("Priority(%s) = %d, not increasing after %d", typ, p, prev)
		}
		prev = p
	}

	if got := ArtifactType("bogus").Priority(); got != len(AllArtifactTypes) {
		t.Errorf("unknown type priority = %d, want %d", got, len(AllArtifactTypes))
	}
}

func TestArtifactType_FileName(t *testing.T) {
	tests := []struct {
		typ  ArtifactType
		want string
	}{
		{ArtifactSchema, "database.md"},
		{ArtifactContract, "api_contract.md"},
		{ArtifactLogic, "backend.md"},
		{ArtifactPresentation, "frontend.md"},
		{ArtifactComponents, "ui_components.md"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := tt.typ.FileName(); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArtifact_FactsByRole(t *testing.T) {
	a := &Artifact{
		Type: ArtifactContract,
		Facts: []Fact{
			{Name: "userId", DeclaredType: "string", Role: RoleField},
			{Name: "POST /auth/login", DeclaredType: RefKindRoute, Role: RoleCapability},
			{Name: "email", DeclaredType: "string", Role: RoleField},
		},
	}

	fields := a.FactsByRole(RoleField)
	if len(fields) != 2 {
		t.Fatalf("FactsByRole(field) returned %d facts, want 2", len(fields))
	}
	if fields[0].Name != "userId" || fields[1].Name != "email" {
		t.Errorf("FactsByRole did not preserve document order: %v", fields)
	}

	if got := a.FactsByRole(RoleHandler); len(got) != 0 {
		t.Errorf("FactsByRole(handler) = %v, want empty", got)
	}
}
