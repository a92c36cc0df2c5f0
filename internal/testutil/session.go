package testutil

// FixedSessionGenerator returns the same session ID every time, so harness
// logs and scenario traces are byte-identical across runs.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// DefaultSessionID is used when NewFixedSessionGenerator is given "".
const DefaultSessionID = "test-session-default"

// NewFixedSessionGenerator creates a generator that always returns id.
//
// Scenario files may pin the ID:
//
//	session: "test-session-00000000-0000-0000-0000-000000000001"
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = DefaultSessionID
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed session ID.
//
// Implements harness.SessionGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
