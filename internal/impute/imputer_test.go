package impute

import (
	"errors"
	"testing"

	"github.com/codepoint-impute/internal/codepoint"
)

func point(postcode string, x, y float64, district, ward *string) codepoint.Point {
	p := codepoint.NewPoint(postcode, x, y)
	p.AdminDistrictCode = district
	p.AdminWardCode = ward
	return p
}

var s = codepoint.String

func TestImputeSingleKnownPoint(t *testing.T) {
	in := codepoint.Table{
		point("K1", 0, 0, s("D1"), s("W1")),
		point("M1", 1, 0, nil, nil),
		point("M2", 100, 100, nil, nil),
	}

	out, _, report, err := NewImputer(Options{}).Impute(in)
	if err != nil {
		t.Fatalf("Impute() error = %v", err)
	}

	for _, row := range []int{1, 2} {
		if codepoint.Display(out[row].AdminDistrictCode) != "D1" {
			t.Errorf("row %d district = %v, want D1", row, codepoint.Display(out[row].AdminDistrictCode))
		}
		if codepoint.Display(out[row].AdminWardCode) != "W1" {
			t.Errorf("row %d ward = %v, want W1", row, codepoint.Display(out[row].AdminWardCode))
		}
	}
	if report.Imputed != 2 || report.Missing != 2 || report.Known != 1 {
		t.Errorf("report = %+v", report)
	}
	if in[1].AdminDistrictCode != nil {
		t.Error("Impute() mutated its input")
	}
}

func TestImputePicksNearest(t *testing.T) {
	in := codepoint.Table{
		point("GU34 1AA", 0, 0, s("E07000085"), s("E05004543")),
		point("GU34 1AB", 1000, 0, s("E07000090"), s("E05004600")),
		point("GU34 1AC", 900, 10, nil, nil),
		point("GU34 1AD", 50, -20, nil, nil),
	}

	out, changes, report, err := NewImputer(Options{}).Impute(in)
	if err != nil {
		t.Fatalf("Impute() error = %v", err)
	}

	tests := []struct {
		row          int
		wantDistrict string
		wantWard     string
	}{
		{2, "E07000090", "E05004600"},
		{3, "E07000085", "E05004543"},
	}
	for _, tt := range tests {
		got := out[tt.row]
		if codepoint.Display(got.AdminDistrictCode) != tt.wantDistrict || codepoint.Display(got.AdminWardCode) != tt.wantWard {
			t.Errorf("row %d = %s/%s, want %s/%s", tt.row,
				codepoint.Display(got.AdminDistrictCode), codepoint.Display(got.AdminWardCode),
				tt.wantDistrict, tt.wantWard)
		}
	}
	if len(changes) != 4 {
		t.Errorf("changes = %d, want 4", len(changes))
	}
	if len(report.Matches) != 2 || report.Matches[0].Neighbour != "GU34 1AB" {
		t.Errorf("matches = %+v", report.Matches)
	}
}

func TestImputePreservesRowCountWithTies(t *testing.T) {
	in := codepoint.Table{
		point("B2 2BB", 10, 0, s("D-B"), s("W-B")),
		point("A1 1AA", -10, 0, s("D-A"), s("W-A")),
		point("M1", 0, 0, nil, nil),
		point("M2", 0, 0, nil, nil),
	}

	out, _, report, err := NewImputer(Options{}).Impute(in)
	if err != nil {
		t.Fatalf("Impute() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("rows = %d, want %d", len(out), len(in))
	}
	if len(report.Matches) != 2 {
		t.Errorf("matches = %d, want one per missing row", len(report.Matches))
	}
	for _, row := range []int{2, 3} {
		if codepoint.Display(out[row].AdminDistrictCode) != "D-A" {
			t.Errorf("row %d district = %v, want D-A (lowest postcode wins ties)", row, codepoint.Display(out[row].AdminDistrictCode))
		}
	}
}

func TestImputeWardPolicy(t *testing.T) {
	in := codepoint.Table{
		point("K1", 0, 0, s("D1"), s("W1")),
		// district missing, ward present
		point("M1", 1, 1, nil, s("W-OLD")),
		// ward missing, district present: not in the missing set
		point("K2", 500, 500, s("D2"), nil),
	}

	tests := []struct {
		policy     WardPolicy
		wantM1Ward string
	}{
		{WardIndependent, "W-OLD"},
		{WardPaired, "W1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			out, _, _, err := NewImputer(Options{WardPolicy: tt.policy}).Impute(in)
			if err != nil {
				t.Fatalf("Impute() error = %v", err)
			}
			if codepoint.Display(out[1].AdminDistrictCode) != "D1" {
				t.Errorf("M1 district = %v, want D1", codepoint.Display(out[1].AdminDistrictCode))
			}
			if codepoint.Display(out[1].AdminWardCode) != tt.wantM1Ward {
				t.Errorf("M1 ward = %v, want %v", codepoint.Display(out[1].AdminWardCode), tt.wantM1Ward)
			}
			if out[2].AdminWardCode != nil {
				t.Errorf("K2 ward = %v, want null", codepoint.Display(out[2].AdminWardCode))
			}
		})
	}
}

func TestImputeMaxDistance(t *testing.T) {
	in := codepoint.Table{
		point("K1", 0, 0, s("D1"), s("W1")),
		point("NEAR", 30, 40, nil, nil),
		point("FAR", 3000, 4000, nil, nil),
	}

	out, _, report, err := NewImputer(Options{MaxDistance: 100}).Impute(in)
	if err != nil {
		t.Fatalf("Impute() error = %v", err)
	}
	if codepoint.Display(out[1].AdminDistrictCode) != "D1" {
		t.Errorf("NEAR district = %v, want D1", codepoint.Display(out[1].AdminDistrictCode))
	}
	if out[2].AdminDistrictCode != nil {
		t.Errorf("FAR district = %v, want null", codepoint.Display(out[2].AdminDistrictCode))
	}
	if report.Unresolved != 1 || report.Imputed != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.Matches[0].Distance != 50 {
		t.Errorf("distance = %v, want 50", report.Matches[0].Distance)
	}
}

func TestImputeSkipsMissingGeometry(t *testing.T) {
	noGeom := codepoint.Point{Postcode: "NOGEOM"}
	in := codepoint.Table{
		point("K1", 0, 0, s("D1"), nil),
		noGeom,
	}

	out, _, report, err := NewImputer(Options{}).Impute(in)
	if err != nil {
		t.Fatalf("Impute() error = %v", err)
	}
	if out[1].AdminDistrictCode != nil || report.Unresolved != 1 {
		t.Errorf("row without geometry was imputed: %+v", report)
	}
}

func TestImputeNoKnownPoints(t *testing.T) {
	in := codepoint.Table{
		point("M1", 0, 0, nil, nil),
		point("M2", 1, 1, nil, nil),
	}

	_, _, _, err := NewImputer(Options{}).Impute(in)
	if !errors.Is(err, ErrNoKnownPoints) {
		t.Fatalf("Impute() error = %v, want ErrNoKnownPoints", err)
	}
}

func TestImputeNothingMissing(t *testing.T) {
	in := codepoint.Table{point("K1", 0, 0, s("D1"), nil)}

	out, changes, report, err := NewImputer(Options{}).Impute(in)
	if err != nil {
		t.Fatalf("Impute() error = %v", err)
	}
	if len(out) != 1 || len(changes) != 0 || report.Missing != 0 {
		t.Errorf("unexpected work on complete table: %d changes, report %+v", len(changes), report)
	}
}

func TestParseWardPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    WardPolicy
		wantErr bool
	}{
		{"", WardIndependent, false},
		{"independent", WardIndependent, false},
		{"paired", WardPaired, false},
		{"both", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWardPolicy(tt.input)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseWardPolicy(%q) = %v, %v", tt.input, got, err)
			}
		})
	}
}
