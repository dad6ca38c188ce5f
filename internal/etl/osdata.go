package etl

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/codepoint-impute/internal/codepoint"
	"github.com/codepoint-impute/internal/debug"
)

// pointColumns is the COPY column order for the point table
var pointColumns = []string{
	"postcode", "positional_quality_indicator", "eastings", "northings",
	"country_code", "nhs_regional_ha_code", "nhs_ha_code", "admin_county_code",
	"admin_district_code", "admin_ward_code", "x", "y",
}

// OSDataLoader loads cleaned Code-Point Open points into PostGIS
type OSDataLoader struct {
	db *sql.DB
}

// NewOSDataLoader creates a new OS data loader
func NewOSDataLoader(db *sql.DB) *OSDataLoader {
	return &OSDataLoader{db: db}
}

// LoadCodePoints replaces the contents of table with the given points using COPY
func (osl *OSDataLoader) LoadCodePoints(localDebug bool, table string, points codepoint.Table) (int, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	debug.DebugOutput(localDebug, "Loading %d postcode points into %s", len(points), table)

	// Create point table if it doesn't exist
	if err := osl.createPointTable(localDebug, table); err != nil {
		return 0, fmt.Errorf("failed to create point table: %w", err)
	}

	tx, err := osl.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Clear existing data
	if _, err := tx.Exec("TRUNCATE TABLE " + pq.QuoteIdentifier(table)); err != nil {
		return 0, fmt.Errorf("failed to truncate %s: %w", table, err)
	}

	// Bulk copy points
	stmt, err := tx.Prepare(pq.CopyIn(table, pointColumns...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy statement: %w", err)
	}

	loaded := 0
	for i := range points {
		if _, err := stmt.Exec(copyValues(points[i])...); err != nil {
			stmt.Close()
			return loaded, fmt.Errorf("failed to copy row %d (%s): %w", i, points[i].Postcode, err)
		}
		loaded++
		debug.DebugProgress(localDebug, "Copied points", loaded, len(points), 100000)
	}

	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		return loaded, fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return loaded, fmt.Errorf("failed to close copy statement: %w", err)
	}

	// Geometry is derived server-side from the copied coordinates
	_, err = tx.Exec(fmt.Sprintf(`
		UPDATE %s
		SET geom27700 = ST_SetSRID(ST_MakePoint(x, y), 27700)
		WHERE x IS NOT NULL AND y IS NOT NULL
	`, pq.QuoteIdentifier(table)))
	if err != nil {
		return loaded, fmt.Errorf("failed to build geometries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return loaded, fmt.Errorf("failed to commit point load: %w", err)
	}

	debug.DebugOutput(localDebug, "Point load complete: %d records", loaded)

	// Indexes are built after commit
	if err := osl.createPointIndexes(localDebug, table); err != nil {
		debug.DebugOutput(localDebug, "Warning: failed to create point indexes: %v", err)
	}

	return loaded, nil
}

// CountMissingDistricts reports rows in table still lacking a district code
func (osl *OSDataLoader) CountMissingDistricts(table string) (int, error) {
	var n int
	err := osl.db.QueryRow(fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE admin_district_code IS NULL", pq.QuoteIdentifier(table),
	)).Scan(&n)
	return n, err
}

// createPointTable creates the point table if it doesn't exist
func (osl *OSDataLoader) createPointTable(localDebug bool, table string) error {
	debug.DebugOutput(localDebug, "Creating point table %s", table)

	_, err := osl.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			postcode                     text NOT NULL,
			positional_quality_indicator bigint,
			eastings                     bigint,
			northings                    bigint,
			country_code                 text,
			nhs_regional_ha_code         text,
			nhs_ha_code                  text,
			admin_county_code            text,
			admin_district_code          text,
			admin_ward_code              text,
			x                            double precision,
			y                            double precision,
			geom27700                    geometry(Point, 27700), -- British National Grid
			loaded_at                    timestamptz DEFAULT now()
		)
	`, pq.QuoteIdentifier(table)))
	return err
}

// createPointIndexes creates lookup and spatial indexes
func (osl *OSDataLoader) createPointIndexes(localDebug bool, table string) error {
	debug.DebugOutput(localDebug, "Creating point indexes on %s", table)

	quoted := pq.QuoteIdentifier(table)
	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (postcode)", pq.QuoteIdentifier(table+"_postcode_idx"), quoted),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (admin_district_code)", pq.QuoteIdentifier(table+"_district_idx"), quoted),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING gist (geom27700)", pq.QuoteIdentifier(table+"_geom27700_idx"), quoted),
	}

	var firstErr error
	for _, indexSQL := range indexes {
		if _, err := osl.db.Exec(indexSQL); err != nil {
			debug.DebugOutput(localDebug, "Warning: failed to create index: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// copyValues flattens a point into COPY column order
func copyValues(p codepoint.Point) []interface{} {
	var x, y interface{}
	if px, py, ok := p.XY(); ok {
		x, y = px, py
	}
	return []interface{}{
		p.Postcode,
		nullableInt(p.PositionalQualityIndicator),
		nullableInt(p.Eastings),
		nullableInt(p.Northings),
		nullableString(p.CountryCode),
		nullableString(p.NHSRegionalHACode),
		nullableString(p.NHSHACode),
		nullableString(p.AdminCountyCode),
		nullableString(p.AdminDistrictCode),
		nullableString(p.AdminWardCode),
		x,
		y,
	}
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
