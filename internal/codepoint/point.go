package codepoint

import (
	"fmt"

	"github.com/twpayne/go-geom"
)

// Field names an administrative code column that the cleaning stages rewrite
type Field string

const (
	FieldCountryCode       Field = "country_code"
	FieldAdminDistrictCode Field = "admin_district_code"
	FieldAdminWardCode     Field = "admin_ward_code"
)

// Point is a single Code-Point Open postcode record.
// Nil string pointers are missing values.
type Point struct {
	Postcode                   string
	Geometry                   *geom.Point
	PositionalQualityIndicator *int64
	Eastings                   *int64
	Northings                  *int64
	CountryCode                *string
	NHSRegionalHACode          *string
	NHSHACode                  *string
	AdminCountyCode            *string
	AdminDistrictCode          *string
	AdminWardCode              *string
}

// NewPoint creates a point at British National Grid easting/northing
func NewPoint(postcode string, x, y float64) Point {
	return Point{
		Postcode: postcode,
		Geometry: geom.NewPointFlat(geom.XY, []float64{x, y}),
	}
}

// XY returns the planar coordinates of the point geometry
func (p Point) XY() (float64, float64, bool) {
	if p.Geometry == nil || p.Geometry.Empty() {
		return 0, 0, false
	}
	return p.Geometry.X(), p.Geometry.Y(), true
}

// Get returns the current value of a code field
func (p *Point) Get(f Field) *string {
	switch f {
	case FieldCountryCode:
		return p.CountryCode
	case FieldAdminDistrictCode:
		return p.AdminDistrictCode
	case FieldAdminWardCode:
		return p.AdminWardCode
	}
	return nil
}

// Set replaces the value of a code field
func (p *Point) Set(f Field, v *string) {
	switch f {
	case FieldCountryCode:
		p.CountryCode = v
	case FieldAdminDistrictCode:
		p.AdminDistrictCode = v
	case FieldAdminWardCode:
		p.AdminWardCode = v
	}
}

// Table is an ordered collection of postcode points.
// Stages treat a Table as read-only and return a fresh copy.
type Table []Point

// Clone returns a shallow copy. Field values are never mutated through
// pointers, so sharing them between copies is safe.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// Change records one field rewrite made by a stage
type Change struct {
	Row      int
	Postcode string
	Field    Field
	Old      *string
	New      *string
}

func (c Change) String() string {
	return fmt.Sprintf("row %d (%s) %s: %s -> %s", c.Row, c.Postcode, c.Field, Display(c.Old), Display(c.New))
}

// String returns a pointer to s
func String(s string) *string {
	return &s
}

// Display renders a nullable value for logs
func Display(s *string) string {
	if s == nil {
		return "<null>"
	}
	return *s
}

// Equal compares two nullable values
func Equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
