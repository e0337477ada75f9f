package pipeline

// OutcomeKind classifies the result of one recommendation run.
type OutcomeKind int

const (
	// OutcomeRecommendations carries a possibly empty list of drafts.
	OutcomeRecommendations OutcomeKind = iota
	// OutcomeBlocked means the query was rejected by the content filter.
	OutcomeBlocked
	// OutcomeNoMatches means retrieval returned nothing.
	OutcomeNoMatches
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRecommendations:
		return "recommendations"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeNoMatches:
		return "no_matches"
	default:
		return "unknown"
	}
}

// Draft is one recommended book.
type Draft struct {
	Title           string `json:"title"`
	Rationale       string `json:"rationale"`
	DetailedSummary string `json:"detailed_summary"`
}

// Outcome is the result of Recommender.Run. Drafts is only set for
// OutcomeRecommendations.
type Outcome struct {
	Kind   OutcomeKind
	Drafts []Draft
}
