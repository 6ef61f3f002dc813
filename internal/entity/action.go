package entity

// EvidenceNode is a retrieval record that informed the generated code
type EvidenceNode struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ActionResult is produced once per instruction by the action engine.
// Treat it as immutable: NewActionResult copies the evidence it is given.
type ActionResult struct {
	Code     string
	Evidence []EvidenceNode
}

func NewActionResult(code string, evidence []EvidenceNode) ActionResult {
	nodes := make([]EvidenceNode, len(evidence))
	copy(nodes, evidence)
	return ActionResult{Code: code, Evidence: nodes}
}
