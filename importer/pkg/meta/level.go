package meta

import (
	"fmt"
	"slices"
)

// GeographicLevel is the short code for a geographic level, as stored in the
// metadata store and the columnar lookup tables.
type GeographicLevel string

const (
	LevelCountry                   GeographicLevel = "NAT"
	LevelRegion                    GeographicLevel = "REG"
	LevelLocalAuthority            GeographicLevel = "LA"
	LevelLocalAuthorityDistrict    GeographicLevel = "LAD"
	LevelRscRegion                 GeographicLevel = "RSC"
	LevelSchool                    GeographicLevel = "SCH"
	LevelProvider                  GeographicLevel = "PROV"
	LevelParliamentaryConstituency GeographicLevel = "PCON"
	LevelWard                      GeographicLevel = "WARD"
	LevelEnglishDevolvedArea       GeographicLevel = "EDA"
	LevelPlanningArea              GeographicLevel = "PA"
	LevelInstitution               GeographicLevel = "INST"
)

// LevelSpec describes how one geographic level appears in a source data CSV:
// the value carried in the geographic_level column, the identity (code)
// columns, the name column, and which location option variant its rows map to.
type LevelSpec struct {
	Level GeographicLevel
	// Label is the value of the geographic_level CSV column for rows declared
	// at this level.
	Label string
	// CodeColumns are the identity columns for the level, in structural-key
	// order. Empty for levels identified by name alone.
	CodeColumns []string
	// NameColumn is the column holding the location's display label.
	NameColumn string
	Kind       OptionKind
}

// Columns returns the level's projected CSV columns, codes first then name.
func (s LevelSpec) Columns() []string {
	return append(slices.Clone(s.CodeColumns), s.NameColumn)
}

var levelSpecs = []LevelSpec{
	{LevelCountry, "National", []string{"country_code"}, "country_name", OptionCoded},
	{LevelRegion, "Regional", []string{"region_code"}, "region_name", OptionCoded},
	{LevelLocalAuthority, "Local authority", []string{"new_la_code", "old_la_code"}, "la_name", OptionLocalAuthority},
	{LevelLocalAuthorityDistrict, "Local authority district", []string{"lad_code"}, "lad_name", OptionCoded},
	{LevelRscRegion, "RSC region", nil, "rsc_region_lead_name", OptionRscRegion},
	{LevelSchool, "School", []string{"school_urn", "school_laestab"}, "school_name", OptionSchool},
	{LevelProvider, "Provider", []string{"provider_ukprn"}, "provider_name", OptionProvider},
	{LevelParliamentaryConstituency, "Parliamentary constituency", []string{"pcon_code"}, "pcon_name", OptionCoded},
	{LevelWard, "Ward", []string{"ward_code"}, "ward_name", OptionCoded},
	{LevelEnglishDevolvedArea, "English devolved area", []string{"english_devolved_area_code"}, "english_devolved_area_name", OptionCoded},
	{LevelPlanningArea, "Planning area", []string{"planning_area_code"}, "planning_area_name", OptionCoded},
	{LevelInstitution, "Institution", []string{"institution_id"}, "institution_name", OptionCoded},
}

// Levels returns every known level spec in canonical (code) order.
func Levels() []LevelSpec {
	out := slices.Clone(levelSpecs)
	slices.SortFunc(out, func(a, b LevelSpec) int {
		if a.Level < b.Level {
			return -1
		}
		if a.Level > b.Level {
			return 1
		}
		return 0
	})
	return out
}

// LevelFor returns the spec for a level code.
func LevelFor(level GeographicLevel) (LevelSpec, error) {
	for _, s := range levelSpecs {
		if s.Level == level {
			return s, nil
		}
	}
	return LevelSpec{}, fmt.Errorf("unknown geographic level %q", level)
}

// ParseLevelLabel maps a geographic_level CSV value to its level code.
func ParseLevelLabel(label string) (GeographicLevel, error) {
	for _, s := range levelSpecs {
		if s.Label == label {
			return s.Level, nil
		}
	}
	return "", fmt.Errorf("unknown geographic_level value %q", label)
}

// LevelsPresent returns the specs of every level whose defining CSV columns
// all appear in the given data file header, in canonical order.
func LevelsPresent(header []string) []LevelSpec {
	cols := make(map[string]bool, len(header))
	for _, c := range header {
		cols[c] = true
	}
	var present []LevelSpec
	for _, s := range Levels() {
		if !cols[s.NameColumn] {
			continue
		}
		ok := true
		for _, c := range s.CodeColumns {
			if !cols[c] {
				ok = false
				break
			}
		}
		if ok {
			present = append(present, s)
		}
	}
	return present
}
