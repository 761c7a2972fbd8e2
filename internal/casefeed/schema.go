// Package casefeed parses the daily hospital line-list feed into case records.
//
// The feed is delimited text with one row per demographic slice of a
// hospital's daily figures. Columns are bound by name through an explicit
// Schema, so column order and extra columns do not matter.
package casefeed

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// Kind is the value type of a feed column.
type Kind int

const (
	// KindString is free text, NFC-normalized and trimmed.
	KindString Kind = iota
	// KindDate is a YYYY-MM-DD report date.
	KindDate
	// KindCoordinate is a decimal number that may use a decimal comma.
	KindCoordinate
	// KindInt is an integer count.
	KindInt
	// KindCount is a non-negative integer count.
	KindCount
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindCoordinate:
		return "coordinate"
	case KindInt:
		return "int"
	case KindCount:
		return "count"
	default:
		return "unknown"
	}
}

// Field describes one feed column.
type Field struct {
	Column string
	Kind   Kind
	// Required columns must be present in the header.
	Required bool
	// NotEmpty rejects rows where the cell is empty.
	NotEmpty bool
	// Default replaces an empty cell, or the whole column when it is optional and absent.
	Default string
}

// Feed column names.
const (
	ColReportDate       = "zvit_date"
	ColRegistrationArea = "registration_area"
	ColPriorityArea     = "priority_hosp_area"
	ColHospitalID       = "edrpou_hosp"
	ColLegalName        = "legal_entity_name_hosp"
	ColLat              = "legal_entity_lat"
	ColLng              = "legal_entity_lng"
	ColGender           = "person_gender"
	ColAgeGroup         = "person_age_group"
	ColConditions       = "add_conditions"
	ColMedicalWorker    = "is_medical_worker"
	ColNewSusp          = "new_susp"
	ColNewConfirm       = "new_confirm"
	ColActiveConfirm    = "active_confirm"
	ColNewDeath         = "new_death"
	ColNewRecover       = "new_recover"
)

// Schema is the ordered list of columns read from the feed.
type Schema []Field

// DefaultSchema returns the columns of the published line-list feed.
func DefaultSchema() Schema {
	return Schema{
		{Column: ColReportDate, Kind: KindDate, Required: true, NotEmpty: true},
		{Column: ColRegistrationArea, Kind: KindString, Required: true},
		{Column: ColPriorityArea, Kind: KindString, Required: true},
		{Column: ColHospitalID, Kind: KindString, Required: true, NotEmpty: true},
		{Column: ColLegalName, Kind: KindString, Required: true},
		{Column: ColLat, Kind: KindCoordinate, Required: true},
		{Column: ColLng, Kind: KindCoordinate, Required: true},
		{Column: ColGender, Kind: KindString, Required: true},
		{Column: ColAgeGroup, Kind: KindString, Required: true},
		{Column: ColConditions, Kind: KindString, Required: true},
		{Column: ColMedicalWorker, Kind: KindString, Required: true},
		{Column: ColNewSusp, Kind: KindInt, Required: true, Default: "0"},
		{Column: ColNewConfirm, Kind: KindInt, Required: true, Default: "0"},
		{Column: ColActiveConfirm, Kind: KindCount, Required: true, Default: "0"},
		{Column: ColNewDeath, Kind: KindInt, Required: true, Default: "0"},
		{Column: ColNewRecover, Kind: KindInt, Required: true, Default: "0"},
	}
}

// ValidateHeader checks header against the default schema. See Schema.ValidateHeader.
func ValidateHeader(header []string) (map[string]int, error) {
	return DefaultSchema().ValidateHeader(header)
}

// ValidateHeader maps every schema column found in header to its index.
// It fails when a required column is missing or a schema column appears twice.
func (s Schema) ValidateHeader(header []string) (map[string]int, error) {
	wanted := make(map[string]bool, len(s))
	for _, f := range s {
		wanted[f.Column] = true
	}

	idx := make(map[string]int, len(s))
	for i, h := range header {
		name := normalizeHeader(h)
		if !wanted[name] {
			continue
		}
		if _, dup := idx[name]; dup {
			return nil, eris.Errorf("casefeed: duplicate column %q", name)
		}
		idx[name] = i
	}

	var missing []string
	for _, f := range s {
		if _, ok := idx[f.Column]; f.Required && !ok {
			missing = append(missing, f.Column)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, eris.Errorf("casefeed: missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(h)))
}
