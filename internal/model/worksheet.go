package model

// Worksheet is a work order covering one or more rural land parcels.
// It is created by import and its metadata is immutable afterwards;
// the only mutations are hard removal and derived status changes on
// its operations.
type Worksheet struct {
	ID         int         `json:"id" yaml:"id"`
	Metadata   Metadata    `json:"metadata" yaml:"metadata"`
	Features   []Feature   `json:"features" yaml:"features"`
	Operations []Operation `json:"operations" yaml:"operations"`
}

// Metadata is the immutable descriptor block of a worksheet.
type Metadata struct {
	ID                int         `json:"id" yaml:"id"`
	AIGP              string      `json:"aigp,omitempty" yaml:"aigp"` // area-of-interest code
	StartDate         string      `json:"starting_date,omitempty" yaml:"starting_date"`
	FinishDate        string      `json:"finishing_date,omitempty" yaml:"finishing_date"`
	IssueDate         string      `json:"issue_date,omitempty" yaml:"issue_date"`
	AwardDate         string      `json:"award_date,omitempty" yaml:"award_date"`
	ServiceProviderID int64       `json:"service_provider_id,omitempty" yaml:"service_provider_id"`
	IssuingUserID     int64       `json:"issuing_user_id,omitempty" yaml:"issuing_user_id"`
	POSACode          string      `json:"posa_code,omitempty" yaml:"posa_code"`
	POSPCode          string      `json:"posp_code,omitempty" yaml:"posp_code"`
	CRS               string      `json:"crs,omitempty" yaml:"crs"` // coordinate reference system descriptor
	Operations        []Operation `json:"operations" yaml:"operations"`
}

// Feature is a parcel belonging to exactly one worksheet, identified by
// the (rural property, polygon) pair. The geometry is an ordered ring of
// lon/lat pairs used only for display; it is either well-formed or
// absent.
type Feature struct {
	RuralPropertyID string      `json:"rural_property_id" yaml:"rural_property_id"`
	PolygonID       int         `json:"polygon_id" yaml:"polygon_id"`
	UIID            int         `json:"ui_id,omitempty" yaml:"ui_id"`
	Geometry        [][]float64 `json:"geometry,omitempty" yaml:"geometry"`
}

// Operation is a unit of work within a worksheet, identified by a
// worksheet-scoped code. Its status is always derived from its
// assignments by the rollup package and never set directly.
type Operation struct {
	Code        string  `json:"operation_code" yaml:"operation_code"`
	Description string  `json:"description,omitempty" yaml:"description"`
	AreaHa      float64 `json:"area_ha,omitempty" yaml:"area_ha"`
}
