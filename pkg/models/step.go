package models

// ExecutionStep is one position in the deterministic execution order.
type ExecutionStep struct {
	// Ordinal is the 1-based position of this step.
	Ordinal int `json:"ordinal"`
	// Type is the artifact type acted on at this step.
	Type ArtifactType `json:"type"`
	// Checkpoint describes what must be true before advancing past this
	// step.
	Checkpoint string `json:"checkpoint"`
	// DependsOn lists the present artifact types this step waits on.
	DependsOn []ArtifactType `json:"depends_on,omitempty"`
}
