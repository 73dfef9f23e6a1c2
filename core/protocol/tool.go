package protocol

// Tool describes a callable tool. Parameters is a JSON Schema object
// describing the tool's input.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
