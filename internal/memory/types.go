package memory

// Role tags one utterance in the short-term window.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged utterance. Ordered, append-only, trimmed FIFO.
type Turn struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// Fact is a durable keyword-indexed summary of a past exchange. Facts are
// appended when an exchange's importance exceeds the promotion threshold
// and are never mutated afterwards.
type Fact struct {
	Content   string   `json:"content"`
	Keywords  []string `json:"keywords"`
	CreatedAt int64    `json:"createdAt"`
}

type factFile struct {
	Facts []Fact `json:"facts"`
}
