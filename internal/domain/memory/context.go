package memory

import "encoding/json"

// Context is the snapshot of user-specific contextual memory used to enrich
// outbound automation payloads: stored preferences, recent interaction
// history, and learned facts. It is read-only from the dispatcher's side.
type Context struct {
	Preferences        map[string]string `json:"preferences,omitempty"`
	RecentInteractions []Interaction     `json:"recent_interactions,omitempty"`
	Learnings          []string          `json:"learnings,omitempty"`
}

type Interaction struct {
	Kind       string          `json:"kind"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// IsEmpty reports whether the snapshot carries nothing worth attaching.
func (c *Context) IsEmpty() bool {
	if c == nil {
		return true
	}
	return len(c.Preferences) == 0 && len(c.RecentInteractions) == 0 && len(c.Learnings) == 0
}
