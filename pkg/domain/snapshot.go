package domain

// EntitySnapshot is a read-only copy of one entity's protocol-visible state,
// used by the debug HTTP endpoint and the CLI report.
type EntitySnapshot struct {
	Key       EntityKey     `json:"key"`
	Owner     int           `json:"owner"`
	Parts     []string      `json:"parts,omitempty"`
	Roster    []RosterEntry `json:"roster,omitempty"`
	Relations []RelationRef `json:"relations,omitempty"`
}

// MeshSnapshot is the full protocol-visible state of one rank's mesh,
// entities sorted by key.
type MeshSnapshot struct {
	Rank     int              `json:"rank"`
	Size     int              `json:"size"`
	Entities []EntitySnapshot `json:"entities"`
}
