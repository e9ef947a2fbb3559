package models

// ArtifactType identifies the planning layer a document belongs to.
type ArtifactType string

const (
	// ArtifactSchema is the data-schema plan (tables, columns, migrations).
	ArtifactSchema ArtifactType = "schema"
	// ArtifactContract is the API contract plan (endpoints, request/response shapes).
	ArtifactContract ArtifactType = "contract"
	// ArtifactLogic is the domain-logic plan (handlers, services).
	ArtifactLogic ArtifactType = "logic"
	// ArtifactPresentation is the presentation-layer plan (pages, API calls, state).
	ArtifactPresentation ArtifactType = "presentation"
	// ArtifactComponents is the UI-component plan (reusable components, props).
	ArtifactComponents ArtifactType = "components"
)

// AllArtifactTypes lists every known type in fixed priority order.
// This order is the tie-break used when sequencing execution steps.
var AllArtifactTypes = []ArtifactType{
	ArtifactSchema,
	ArtifactContract,
	ArtifactLogic,
	ArtifactPresentation,
	ArtifactComponents,
}

var artifactFiles = map[ArtifactType]string{
	ArtifactSchema:       "database.md",
	ArtifactContract:     "api_contract.md",
	ArtifactLogic:        "backend.md",
	ArtifactPresentation: "frontend.md",
	ArtifactComponents:   "ui_components.md",
}

var artifactNames = map[ArtifactType]string{
	ArtifactSchema:       "Database Schema",
	ArtifactContract:     "API Contract",
	ArtifactLogic:        "Backend Logic",
	ArtifactPresentation: "Frontend",
	ArtifactComponents:   "UI Components",
}

// Valid returns true if the type is a known value.
func (t ArtifactType) Valid() bool {
	_, ok := artifactFiles[t]
	return ok
}

// Priority returns the fixed rank of the type, lower first. Unknown types
// sort last.
func (t ArtifactType) Priority() int {
	for i, at := range AllArtifactTypes {
		if at == t {
			return i
		}
	}
	return len(AllArtifactTypes)
}

// FileName returns the backing file name producers write for this type.
func (t ArtifactType) FileName() string {
	return artifactFiles[t]
}

// DisplayName returns the human-readable name for this type.
func (t ArtifactType) DisplayName() string {
	if n, ok := artifactNames[t]; ok {
		return n
	}
	return string(t)
}

// FactRole classifies what an extracted fact represents.
type FactRole string

const (
	// RoleField is a named data member (column, schema field, prop).
	RoleField FactRole = "field"
	// RoleCapability is a declared operation or route.
	RoleCapability FactRole = "capability"
	// RoleHandler is an entry that handles a capability.
	RoleHandler FactRole = "handler"
	// RoleReference is a use of a name defined in another artifact.
	RoleReference FactRole = "reference"
	// RoleDefinition is a named construct other artifacts may reference.
	RoleDefinition FactRole = "definition"
)

// RefKindRoute and RefKindComponent are the DeclaredType hints carried by
// reference facts so the validator knows what kind of counterpart resolves
// them.
const (
	RefKindRoute     = "route"
	RefKindComponent = "component"
)

// Fact is one extracted cross-referencing tuple.
type Fact struct {
	// Name is the identifier as written in the document.
	Name string `json:"name"`
	// DeclaredType is the type token for fields, or a kind hint for
	// references (route, component). Empty when not applicable.
	DeclaredType string `json:"declared_type,omitempty"`
	// Role classifies the fact.
	Role FactRole `json:"role"`
}

// ArtifactRef points at a discovered artifact before it is loaded.
type ArtifactRef struct {
	// FeatureID is the feature the artifact belongs to.
	FeatureID string `json:"feature_id"`
	// Type is the artifact type.
	Type ArtifactType `json:"type"`
	// Path is the absolute path of the backing file.
	Path string `json:"path"`
}

// Artifact is one loaded planning document. Immutable once loaded;
// re-validation re-reads from disk.
type Artifact struct {
	// Type is the artifact type.
	Type ArtifactType `json:"type"`
	// Path is the absolute path the content was read from.
	Path string `json:"path"`
	// Content is the raw document text.
	Content string `json:"-"`
	// Facts are the extracted tuples, in document order.
	Facts []Fact `json:"facts"`
	// FactsIncomplete is set when the document lacked the structural
	// markers extraction needs. Cross-checks against such an artifact
	// downgrade errors to warnings.
	FactsIncomplete bool `json:"facts_incomplete,omitempty"`
}

// FactsByRole returns the artifact's facts with the given role, in order.
func (a *Artifact) FactsByRole(role FactRole) []Fact {
	var out []Fact
	for _, f := range a.Facts {
		if f.Role == role {
			out = append(out, f)
		}
	}
	return out
}
