package importer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

func operations(n int) []model.Operation {
	ops := make([]model.Operation, n)
	for i := range ops {
		ops[i] = model.Operation{Code: fmt.Sprintf("OP%d", i+1), Description: "fuel management"}
	}
	return ops
}

func validPayload() *Payload {
	return &Payload{
		Type: "worksheet",
		Metadata: &model.Metadata{
			ID:         57483,
			AIGP:       "AIGP-170",
			StartDate:  "2025-07-01 08:00:00",
			Operations: operations(3),
		},
		Features: []model.Feature{
			{RuralPropertyID: "PT-170-001", PolygonID: 1},
		},
	}
}

func TestValidate_Accepts(t *testing.T) {
	assert.NoError(t, NewValidator().Validate(validPayload()))
}

func TestValidate_AtOperationLimit(t *testing.T) {
	p := validPayload()
	p.Metadata.Operations = operations(MaxOperations)
	assert.NoError(t, NewValidator().Validate(p))
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	// Empty features and six operations are independent violations; both
	// must be reported.
	p := &Payload{
		Type:     "worksheet",
		Metadata: &model.Metadata{ID: 57483, Operations: operations(6)},
		Features: []model.Feature{},
	}

	err := NewValidator().Validate(p)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 2)
	assert.Contains(t, verr.Violations[0], "feature collection is empty or missing")
	assert.Contains(t, verr.Violations[1], "declares 6 operations, limit is 5")
}

func TestValidate_MissingType(t *testing.T) {
	p := validPayload()
	p.Type = ""

	err := NewValidator().Validate(p)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations[0], "type discriminator is missing")
}

func TestValidate_MissingMetadata(t *testing.T) {
	p := validPayload()
	p.Metadata = nil

	err := NewValidator().Validate(p)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations[0], "metadata block is missing")
}

func TestValidate_EverythingWrongAtOnce(t *testing.T) {
	err := NewValidator().Validate(&Payload{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 3)
}

func TestValidate_Geometry(t *testing.T) {
	tests := []struct {
		name     string
		geometry [][]float64
		ok       bool
	}{
		{"absent", nil, true},
		{"valid triangle", [][]float64{{-8.1, 40.2}, {-8.2, 40.3}, {-8.1, 40.3}}, true},
		{"too few points", [][]float64{{-8.1, 40.2}, {-8.2, 40.3}}, false},
		{"not a pair", [][]float64{{-8.1, 40.2}, {-8.2}, {-8.1, 40.3}}, false},
		{"longitude out of range", [][]float64{{-181, 40.2}, {-8.2, 40.3}, {-8.1, 40.3}}, false},
		{"latitude out of range", [][]float64{{-8.1, 91}, {-8.2, 40.3}, {-8.1, 40.3}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			p.Features[0].Geometry = tt.geometry
			err := NewValidator().Validate(p)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Violations[0], "feature PT-170-001/1")
			}
		})
	}
}

func TestValidate_CustomLimit(t *testing.T) {
	v := &Validator{MaxOperations: 2}
	p := validPayload()

	err := v.Validate(p)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations[0], "declares 3 operations, limit is 2")
}

func TestWorksheet_FromPayload(t *testing.T) {
	p := validPayload()
	ws := p.Worksheet()
	assert.Equal(t, 57483, ws.ID)
	assert.Equal(t, "AIGP-170", ws.Metadata.AIGP)
	assert.Len(t, ws.Operations, 3)
	assert.Len(t, ws.Features, 1)
}
