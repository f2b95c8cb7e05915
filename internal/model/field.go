package model

// FieldKey names one known prospect field. The schema is closed: adapters
// may only contribute values for keys registered below, everything else is
// quarantined by the coordinator.
type FieldKey string

const (
	FieldName              FieldKey = "name"
	FieldWebsite           FieldKey = "website"
	FieldPhone             FieldKey = "phone"
	FieldAddress           FieldKey = "address"
	FieldCity              FieldKey = "city"
	FieldState             FieldKey = "state"
	FieldPlaceID           FieldKey = "place_id"
	FieldRating            FieldKey = "rating"
	FieldReviewCount       FieldKey = "review_count"
	FieldReviewThemes      FieldKey = "review_themes"
	FieldRegistryStatus    FieldKey = "registry_status"
	FieldEntityType        FieldKey = "entity_type"
	FieldIncorporationYear FieldKey = "incorporation_year"
	FieldIndustry          FieldKey = "industry"
	FieldEmployeeEstimate  FieldKey = "employee_estimate"
	FieldRevenueEstimate   FieldKey = "revenue_estimate"
)

// DataType declares how a field value is interpreted downstream.
type DataType string

const (
	TypeString DataType = "string"
	TypeInt    DataType = "int"
	TypeFloat  DataType = "float"
)

// FieldSpec describes one entry in the field schema.
type FieldSpec struct {
	Key      FieldKey `json:"key"`
	DataType DataType `json:"data_type"`
	// Required fields form the denominator of the completeness ratio used
	// by the coordinator's early-stop policy.
	Required bool `json:"required"`
}

// FieldSchema is the indexed closed set of known fields.
type FieldSchema struct {
	Fields   []FieldSpec
	byKey    map[FieldKey]*FieldSpec
	required []FieldKey
}

// NewFieldSchema builds an indexed schema from the given specs.
func NewFieldSchema(fields []FieldSpec) *FieldSchema {
	s := &FieldSchema{
		Fields: fields,
		byKey:  make(map[FieldKey]*FieldSpec, len(fields)),
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		s.byKey[f.Key] = f
		if f.Required {
			s.required = append(s.required, f.Key)
		}
	}
	return s
}

// Known reports whether key is part of the schema.
func (s *FieldSchema) Known(key FieldKey) bool {
	_, ok := s.byKey[key]
	return ok
}

// ByKey returns the spec for key, or nil.
func (s *FieldSchema) ByKey(key FieldKey) *FieldSpec {
	return s.byKey[key]
}

// Required returns the keys counted toward completeness.
func (s *FieldSchema) Required() []FieldKey {
	return s.required
}

// DefaultFieldSchema returns the standard prospect field schema.
func DefaultFieldSchema() *FieldSchema {
	return NewFieldSchema([]FieldSpec{
		{Key: FieldName, DataType: TypeString, Required: true},
		{Key: FieldWebsite, DataType: TypeString, Required: true},
		{Key: FieldPhone, DataType: TypeString, Required: true},
		{Key: FieldAddress, DataType: TypeString, Required: true},
		{Key: FieldCity, DataType: TypeString},
		{Key: FieldState, DataType: TypeString},
		{Key: FieldPlaceID, DataType: TypeString},
		{Key: FieldRating, DataType: TypeFloat, Required: true},
		{Key: FieldReviewCount, DataType: TypeInt},
		{Key: FieldReviewThemes, DataType: TypeString},
		{Key: FieldRegistryStatus, DataType: TypeString},
		{Key: FieldEntityType, DataType: TypeString},
		{Key: FieldIncorporationYear, DataType: TypeInt},
		{Key: FieldIndustry, DataType: TypeString},
		{Key: FieldEmployeeEstimate, DataType: TypeInt},
		{Key: FieldRevenueEstimate, DataType: TypeInt},
	})
}
