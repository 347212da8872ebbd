package loam

// EventMetadata is the frontmatter of a stage event document.
// The Markdown body, if any, is a free-form note and is ignored.
type EventMetadata struct {
	ID        string         `json:"id" mapstructure:"id"`
	StageType string         `json:"stage_type" mapstructure:"stage_type"`
	Form      string         `json:"request_form_id" mapstructure:"request_form_id"`
	Sequence  int64          `json:"sequence" mapstructure:"sequence"`
	CreatedAt string         `json:"created_at,omitempty" mapstructure:"created_at"`
	Content   map[string]any `json:"content" mapstructure:"content"`
}
