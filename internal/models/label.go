package models

// Relevance levels the remote classifier may assign.
const (
	RelevanceNone = "none"
	RelevanceLow  = "low"
	RelevanceHigh = "high"
)

// Target identifies one partisan actor named by the classifier.
// Party is one of D, R, mixed, unknown.
type Target struct {
	Name  string `json:"name"`
	Party string `json:"party"`
	Role  string `json:"role"`
}

// PartyScores holds a per-party pair of floats.
type PartyScores struct {
	D float64 `json:"D"`
	R float64 `json:"R"`
}

// PartyValence holds a per-party pair of valence strings.
type PartyValence struct {
	D string `json:"D"`
	R string `json:"R"`
}

// WrongdoingAssessment mirrors the classifier response subtree.
type WrongdoingAssessment struct {
	OverallWrongdoingProbability float64     `json:"overall_wrongdoing_probability"`
	WrongdoingByParty            PartyScores `json:"wrongdoing_by_party"`
}

// FavorabilityAssessment mirrors the classifier response subtree.
type FavorabilityAssessment struct {
	OverallValenceParty PartyValence `json:"overall_valence_party"`
	FavorabilityScores  PartyScores  `json:"favorability_scores"`
}

// StructuredLabel is the fixed schema the remote classification service must
// return. It is also the shape of the stub neutral label assigned to
// documents the cascade decides not to send out.
type StructuredLabel struct {
	PoliticalRelevance  string                 `json:"political_relevance"`
	MainPartisanTargets []Target               `json:"main_partisan_targets"`
	Wrongdoing          WrongdoingAssessment   `json:"wrongdoing_assessment"`
	Favorability        FavorabilityAssessment `json:"favorability_assessment"`
	Notes               string                 `json:"notes"`
}

// NeutralLabel returns the schema-compatible stub used for documents the
// cascade skipped or that come from metadata-only sources.
func NeutralLabel(note string) StructuredLabel {
	return StructuredLabel{
		PoliticalRelevance:  RelevanceNone,
		MainPartisanTargets: []Target{},
		Wrongdoing: WrongdoingAssessment{
			WrongdoingByParty: PartyScores{},
		},
		Favorability: FavorabilityAssessment{
			OverallValenceParty: PartyValence{D: "none", R: "none"},
			FavorabilityScores:  PartyScores{},
		},
		Notes: note,
	}
}

// LabeledRecord is the durable row appended to the label store, one per
// processed document (or per row for tabular sources).
type LabeledRecord struct {
	Source             SourceKind
	RequestID          string
	Agency             string
	Title              string
	DateDone           string
	AdminName          string
	AdminParty         string
	IsTransition       bool
	PoliticalRelevance string
	Targets            []Target
	WrongdoingD        float64
	WrongdoingR        float64
	FavScoreD          float64
	FavScoreR          float64
	// RawClassification is the full structured response, carried through
	// opaquely so downstream analysis can revisit fields we do not flatten.
	RawClassification StructuredLabel
}
