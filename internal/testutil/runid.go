package testutil

// ConstantRunID returns the same run id on every call, so repeated runs of
// one scenario share an id. Stateless and safe for concurrent use.
type ConstantRunID struct {
	id string
}

// NewConstantRunID creates the generator. An empty id becomes "test-run".
func NewConstantRunID(id string) *ConstantRunID {
	if id == "" {
		id = "test-run"
	}
	return &ConstantRunID{id: id}
}

// Generate returns the fixed id.
func (g *ConstantRunID) Generate() string {
	return g.id
}
