package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFieldSchema(t *testing.T) {
	s := DefaultFieldSchema()

	assert.True(t, s.Known(FieldPhone))
	assert.True(t, s.Known(FieldRevenueEstimate))
	assert.False(t, s.Known(FieldKey("favorite_color")))

	spec := s.ByKey(FieldRating)
	require.NotNil(t, spec)
	assert.Equal(t, TypeFloat, spec.DataType)
	assert.True(t, spec.Required)

	assert.ElementsMatch(t,
		[]FieldKey{FieldName, FieldWebsite, FieldPhone, FieldAddress, FieldRating},
		s.Required(),
	)
}

func TestProspectRecord_Completeness(t *testing.T) {
	s := DefaultFieldSchema()

	rec := &ProspectRecord{Fields: map[FieldKey]ResolvedField{}}
	assert.Equal(t, 0.0, rec.Completeness(s))

	rec.Fields[FieldName] = ResolvedField{Field: FieldName, Value: "Acme"}
	rec.Fields[FieldWebsite] = ResolvedField{Field: FieldWebsite, Value: "acme.com"}
	rec.Fields[FieldPhone] = ResolvedField{Field: FieldPhone, Value: "555"}
	rec.Fields[FieldAddress] = ResolvedField{Field: FieldAddress, Value: "1 Main St"}
	assert.InDelta(t, 0.8, rec.Completeness(s), 1e-9)

	// Optional fields do not move the needle.
	rec.Fields[FieldIndustry] = ResolvedField{Field: FieldIndustry, Value: "plumbing"}
	assert.InDelta(t, 0.8, rec.Completeness(s), 1e-9)

	rec.Fields[FieldRating] = ResolvedField{Field: FieldRating, Value: 4.5}
	assert.InDelta(t, 1.0, rec.Completeness(s), 1e-9)
}

func TestProspectRecord_NilSafe(t *testing.T) {
	var rec *ProspectRecord
	assert.False(t, rec.HasField(FieldName))
	assert.Nil(t, rec.FieldValue(FieldName))
}
