package codelist

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/codepoint-impute/internal/debug"
)

// SheetNames are the OS codelist area types read into the lookup, in order.
// Later sheets win when an area name repeats.
var SheetNames = []string{
	"CTY", // county
	"DIS", // district
	"DIW", // district ward
	"LBO", // London borough
	"LBW", // London borough ward
	"MTD", // metropolitan district
	"MTW", // metropolitan district ward
	"UTA", // unitary authority
	"UTE", // unitary authority electoral division
	"UTW", // unitary authority ward
}

// ErrSheetNotFound is returned when a required area sheet is absent from the workbook
var ErrSheetNotFound = errors.New("codelist sheet not found")

// Entry is one (code, name) row of a codelist sheet
type Entry struct {
	Sheet string
	Code  string
	Name  string
}

// Lookup maps area names to official area codes
type Lookup map[string]string

// Code returns the official code for an area name
func (l Lookup) Code(name string) (string, bool) {
	code, ok := l[name]
	return code, ok
}

// BuildStats describes how a lookup was assembled
type BuildStats struct {
	Entries     int
	Overwritten int
	PerSheet    map[string]int
}

// Build folds entries into a single name->code lookup.
// Entries are applied in slice order and a repeated name takes the later code.
func Build(entries []Entry) (Lookup, BuildStats) {
	lookup := make(Lookup, len(entries))
	stats := BuildStats{PerSheet: make(map[string]int)}

	for _, e := range entries {
		if prev, exists := lookup[e.Name]; exists && prev != e.Code {
			stats.Overwritten++
		}
		lookup[e.Name] = e.Code
		stats.Entries++
		stats.PerSheet[e.Sheet]++
	}

	return lookup, stats
}

// Load reads every sheet in SheetNames from the codelist workbook and builds the lookup
func Load(localDebug bool, path string) (Lookup, BuildStats, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	debug.DebugOutput(localDebug, "Loading codelist from: %s", path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, BuildStats{}, fmt.Errorf("failed to open codelist workbook: %w", err)
	}
	defer f.Close()

	entries, err := ReadEntries(f, SheetNames)
	if err != nil {
		return nil, BuildStats{}, err
	}

	lookup, stats := Build(entries)
	debug.DebugOutput(localDebug, "Codelist lookup: %d names from %d entries (%d overwritten)",
		len(lookup), stats.Entries, stats.Overwritten)

	return lookup, stats, nil
}

// ReadEntries parses the named sheets in order. Sheets have no header row:
// column A is the code and column B the area name.
func ReadEntries(f *excelize.File, sheets []string) ([]Entry, error) {
	present := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		present[name] = true
	}

	var entries []Entry
	for _, sheet := range sheets {
		if !present[sheet] {
			return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		for _, row := range rows {
			if len(row) < 2 {
				continue
			}
			// Names are keyed exactly as published, whitespace included
			code, name := row[0], row[1]
			if code == "" || name == "" {
				continue
			}
			entries = append(entries, Entry{Sheet: sheet, Code: code, Name: name})
		}
	}

	return entries, nil
}
