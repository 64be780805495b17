package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAssignment() Assignment {
	return Build(Params{
		AssignmentType: 2,
		Description:    "remove fallen branch",
		Priority:       3,
		Location:       "GW-0417",
		X:              -73.99,
		Y:              40.65,
	})
}

func TestValidate_Success(t *testing.T) {
	r := Validate(validAssignment())
	assert.True(t, r.Success)
	assert.Empty(t, r.Errors)
}

func TestValidate_MissingRequiredAttribute(t *testing.T) {
	a := validAssignment()
	delete(a.Attributes, FieldLocation)

	r := Validate(a)
	assert.False(t, r.Success)
	// Exactly one error for the single failing check, no duplicates.
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "missing required attribute fields", r.Errors[0])
}

func TestValidate_UnknownAttribute(t *testing.T) {
	a := validAssignment()
	a.Attributes["Location"] = "wrong casing"

	r := Validate(a)
	assert.False(t, r.Success)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "invalid attribute fields", r.Errors[0])
}

func TestValidate_AllowedOptionalAttributes(t *testing.T) {
	a := validAssignment()
	a.Attributes[FieldWorkerID] = 12
	a.Attributes[FieldAssignedDate] = int64(1767225600000)

	r := Validate(a)
	assert.True(t, r.Success)
}

func TestValidate_MissingGeometryField(t *testing.T) {
	a := validAssignment()
	delete(a.Geometry, "y")

	r := Validate(a)
	assert.False(t, r.Success)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "missing geometry fields", r.Errors[0])
}

func TestValidate_ExtraGeometryField(t *testing.T) {
	a := validAssignment()
	a.Geometry["z"] = 10

	r := Validate(a)
	assert.False(t, r.Success)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "invalid geometry fields", r.Errors[0])
}

func TestValidate_AccumulatesAllFailures(t *testing.T) {
	a := Assignment{
		Attributes: map[string]any{"bogus": 1},
		Geometry:   map[string]float64{"z": 3},
	}

	r := Validate(a)
	assert.False(t, r.Success)
	assert.ElementsMatch(t, []string{
		"missing required attribute fields",
		"invalid attribute fields",
		"missing geometry fields",
		"invalid geometry fields",
	}, r.Errors)
}
