package model

import "time"

// ConfidenceEntry is one observation of a field value from one source.
// PassID carries the declaring pass so equal-confidence conflicts resolve
// deterministically in favor of the earliest pass.
type ConfidenceEntry struct {
	Field      FieldKey  `json:"field"`
	Value      any       `json:"value"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	PassID     int       `json:"pass_id"`
	ObservedAt time.Time `json:"observed_at"`
}

// ConflictingValue is one losing candidate surfaced on a conflicted field.
type ConflictingValue struct {
	Value      any     `json:"value"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// ResolvedField is the fused outcome for one field across all observations.
type ResolvedField struct {
	Field             FieldKey           `json:"field"`
	Value             any                `json:"value"`
	Confidence        float64            `json:"confidence"`
	Sources           []string           `json:"sources"`
	Conflicted        bool               `json:"conflicted,omitempty"`
	ConflictingValues []ConflictingValue `json:"conflicting_values,omitempty"`
}

// Stage tags where a prospect record sits in the sales funnel.
type Stage string

const (
	StageNew       Stage = "new"
	StageEnriched  Stage = "enriched"
	StageQualified Stage = "qualified"
	StageReview    Stage = "review"
)

// ProspectRecord is the aggregate research output for one target. It is
// created on the first run and updated in place on every subsequent run;
// records are never deleted, only superseded.
type ProspectRecord struct {
	Target             Target                     `json:"target"`
	Fields             map[FieldKey]ResolvedField `json:"fields"`
	OverallConfidence  float64                    `json:"overall_confidence"`
	QualificationScore int                        `json:"qualification_score"`
	Stage              Stage                      `json:"stage"`
	CreatedAt          time.Time                  `json:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at"`
}

// HasField reports whether the record holds a resolved value for key.
func (r *ProspectRecord) HasField(key FieldKey) bool {
	if r == nil {
		return false
	}
	_, ok := r.Fields[key]
	return ok
}

// FieldValue returns the resolved value for key, or nil.
func (r *ProspectRecord) FieldValue(key FieldKey) any {
	if r == nil {
		return nil
	}
	if rf, ok := r.Fields[key]; ok {
		return rf.Value
	}
	return nil
}

// Completeness returns the fraction of required schema fields present,
// in [0,1]. Zero when the schema declares no required fields.
func (r *ProspectRecord) Completeness(schema *FieldSchema) float64 {
	required := schema.Required()
	if len(required) == 0 {
		return 0
	}
	present := 0
	for _, key := range required {
		if r.HasField(key) {
			present++
		}
	}
	return float64(present) / float64(len(required))
}
