// Package importer accepts raw worksheet descriptions (a feature
// collection with metadata and an operation list) and validates them
// structurally before they enter the system.
package importer

import (
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

// MaxOperations is the fixed system limit on operations declared by a
// worksheet's metadata.
const MaxOperations = 5

// Payload is the import contract: { type, metadata, features }.
type Payload struct {
	Type     string          `json:"type" yaml:"type"`
	Metadata *model.Metadata `json:"metadata" yaml:"metadata"`
	Features []model.Feature `json:"features" yaml:"features"`
}

// ValidationError carries every violated rule, not just the first, so
// the caller can report all problems at once.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("worksheet validation failed: %s", strings.Join(e.Violations, "; "))
}

// Validator performs the structural checks on an import payload.
type Validator struct {
	MaxOperations int
}

// NewValidator returns a Validator with the system operation limit.
func NewValidator() *Validator {
	return &Validator{MaxOperations: MaxOperations}
}

// Validate runs every structural check independently and returns a
// *ValidationError listing all violations, or nil when the payload is
// acceptable.
func (v *Validator) Validate(p *Payload) error {
	var violations []string

	if p.Type == "" {
		violations = append(violations, "type discriminator is missing")
	}
	if len(p.Features) == 0 {
		violations = append(violations, "feature collection is empty or missing")
	}
	if p.Metadata == nil {
		violations = append(violations, "metadata block is missing")
	} else if n := len(p.Metadata.Operations); n > v.MaxOperations {
		violations = append(violations,
			fmt.Sprintf("metadata declares %d operations, limit is %d", n, v.MaxOperations))
	}

	for _, f := range p.Features {
		if err := checkGeometry(f); err != nil {
			violations = append(violations,
				fmt.Sprintf("feature %s/%d: %v", f.RuralPropertyID, f.PolygonID, err))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// checkGeometry verifies a feature's polygon is well-formed or absent:
// an ordered ring of at least 3 valid lon/lat pairs. Display concerns
// beyond that are out of scope.
func checkGeometry(f model.Feature) error {
	if f.Geometry == nil {
		return nil
	}
	if len(f.Geometry) < 3 {
		return fmt.Errorf("polygon ring has %d points, need at least 3", len(f.Geometry))
	}
	coords := make([]geom.Coord, 0, len(f.Geometry))
	for i, pt := range f.Geometry {
		if len(pt) < 2 {
			return fmt.Errorf("point %d is not a lon/lat pair", i)
		}
		lon, lat := pt[0], pt[1]
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			return fmt.Errorf("point %d (%v, %v) outside lon/lat range", i, lon, lat)
		}
		coords = append(coords, geom.Coord{lon, lat})
	}
	ring := geom.NewLinearRing(geom.XY)
	if _, err := ring.SetCoords(coords); err != nil {
		return fmt.Errorf("malformed ring: %w", err)
	}
	return nil
}

// Worksheet builds the domain worksheet from an accepted payload.
func (p *Payload) Worksheet() model.Worksheet {
	ws := model.Worksheet{
		Features: p.Features,
	}
	if p.Metadata != nil {
		ws.ID = p.Metadata.ID
		ws.Metadata = *p.Metadata
		ws.Operations = p.Metadata.Operations
	}
	return ws
}
