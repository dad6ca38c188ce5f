package codepoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/codepoint-impute/internal/debug"
)

// geoMetadataKey is the GeoParquet file-level key/value entry
const geoMetadataKey = "geo"

// readBatchSize is the number of rows pulled from the reader per call
const readBatchSize = 4096

// pointRow mirrors the Code-Point Open GeoParquet schema
type pointRow struct {
	Postcode                   string  `parquet:"postcode"`
	PositionalQualityIndicator *int64  `parquet:"positional_quality_indicator,optional"`
	Eastings                   *int64  `parquet:"eastings,optional"`
	Northings                  *int64  `parquet:"northings,optional"`
	CountryCode                *string `parquet:"country_code,optional"`
	NHSRegionalHACode          *string `parquet:"nhs_regional_ha_code,optional"`
	NHSHACode                  *string `parquet:"nhs_ha_code,optional"`
	AdminCountyCode            *string `parquet:"admin_county_code,optional"`
	AdminDistrictCode          *string `parquet:"admin_district_code,optional"`
	AdminWardCode              *string `parquet:"admin_ward_code,optional"`
	Geometry                   *[]byte `parquet:"geometry,optional"`
}

// Dataset is a loaded point table together with its file metadata
type Dataset struct {
	Points Table
	// GeoMetadata is the raw GeoParquet "geo" JSON, empty when absent
	GeoMetadata string
}

// ReadParquet loads every postcode point from a GeoParquet file
func ReadParquet(localDebug bool, path string) (*Dataset, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	debug.DebugOutput(localDebug, "Loading postcode points from: %s", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open point file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat point file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}

	dataset := &Dataset{}
	if meta, ok := pf.Lookup(geoMetadataKey); ok {
		dataset.GeoMetadata = meta
	}

	reader := parquet.NewGenericReader[pointRow](file)
	defer reader.Close()

	dataset.Points = make(Table, 0, reader.NumRows())
	buf := make([]pointRow, readBatchSize)
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			point, convErr := fromRow(buf[i])
			if convErr != nil {
				return nil, fmt.Errorf("failed to decode row %d: %w", len(dataset.Points), convErr)
			}
			dataset.Points = append(dataset.Points, point)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	debug.DebugOutput(localDebug, "Loaded %d postcode points", len(dataset.Points))
	return dataset, nil
}

// WriteParquet persists the dataset as GeoParquet. No index column is written.
func WriteParquet(localDebug bool, path string, dataset *Dataset) error {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	rows := make([]pointRow, len(dataset.Points))
	for i, p := range dataset.Points {
		row, err := toRow(p)
		if err != nil {
			return fmt.Errorf("failed to encode row %d (%s): %w", i, p.Postcode, err)
		}
		rows[i] = row
	}

	// Write next to the target so the rename stays on one filesystem
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	var options []parquet.WriterOption
	if dataset.GeoMetadata != "" {
		options = append(options, parquet.KeyValueMetadata(geoMetadataKey, dataset.GeoMetadata))
	}

	writer := parquet.NewGenericWriter[pointRow](tmp, options...)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalise parquet file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	// Only replace the output once the file is complete
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}

	debug.DebugOutput(localDebug, "Wrote %d postcode points to %s", len(rows), path)
	return nil
}

func fromRow(r pointRow) (Point, error) {
	p := Point{
		Postcode:                   r.Postcode,
		PositionalQualityIndicator: r.PositionalQualityIndicator,
		Eastings:                   r.Eastings,
		Northings:                  r.Northings,
		CountryCode:                r.CountryCode,
		NHSRegionalHACode:          r.NHSRegionalHACode,
		NHSHACode:                  r.NHSHACode,
		AdminCountyCode:            r.AdminCountyCode,
		AdminDistrictCode:          r.AdminDistrictCode,
		AdminWardCode:              r.AdminWardCode,
	}

	switch {
	case r.Geometry != nil && len(*r.Geometry) > 0:
		g, err := wkb.Unmarshal(*r.Geometry)
		if err != nil {
			return p, fmt.Errorf("failed to parse WKB geometry: %w", err)
		}
		pt, ok := g.(*geom.Point)
		if !ok {
			return p, fmt.Errorf("unexpected geometry type %T", g)
		}
		p.Geometry = pt
	case r.Eastings != nil && r.Northings != nil:
		// Older extracts carry only the grid reference columns
		p.Geometry = geom.NewPointFlat(geom.XY, []float64{float64(*r.Eastings), float64(*r.Northings)})
	}

	return p, nil
}

func toRow(p Point) (pointRow, error) {
	r := pointRow{
		Postcode:                   p.Postcode,
		PositionalQualityIndicator: p.PositionalQualityIndicator,
		Eastings:                   p.Eastings,
		Northings:                  p.Northings,
		CountryCode:                p.CountryCode,
		NHSRegionalHACode:          p.NHSRegionalHACode,
		NHSHACode:                  p.NHSHACode,
		AdminCountyCode:            p.AdminCountyCode,
		AdminDistrictCode:          p.AdminDistrictCode,
		AdminWardCode:              p.AdminWardCode,
	}
	if p.Geometry != nil {
		b, err := wkb.Marshal(p.Geometry, wkb.NDR)
		if err != nil {
			return r, err
		}
		r.Geometry = &b
	}
	return r, nil
}
