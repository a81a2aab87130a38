// Package archetype classifies job postings into the fixed set of
// role-framing categories used to pick resume framing.
package archetype

// Archetype is one of the fixed role-framing categories.
type Archetype string

const (
	Builder    Archetype = "builder"
	Fixer      Archetype = "fixer"
	Operator   Archetype = "operator"
	Translator Archetype = "translator"
)

// All returns the archetypes in their canonical order.
func All() []Archetype {
	return []Archetype{Builder, Fixer, Operator, Translator}
}

// Valid reports whether a is one of the known archetypes.
func (a Archetype) Valid() bool {
	switch a {
	case Builder, Fixer, Operator, Translator:
		return true
	}
	return false
}

// JobType is derived from contract-versus-permanent language in the posting.
type JobType string

const (
	JobTypeContract  JobType = "contract"
	JobTypePermanent JobType = "permanent"
	JobTypeUnknown   JobType = "unknown"
)

// Seniority is derived from the posting title.
type Seniority string

const (
	SeniorityJunior Seniority = "junior"
	SeniorityMid    Seniority = "mid"
	SenioritySenior Seniority = "senior"
	SeniorityLead   Seniority = "lead"
)

// UniformScores returns the equal-share fallback distribution used when the
// classifier has no signal to work with.
func UniformScores() map[Archetype]float64 {
	all := All()
	share := 1.0 / float64(len(all))
	scores := make(map[Archetype]float64, len(all))
	for _, a := range all {
		scores[a] = share
	}
	return scores
}
