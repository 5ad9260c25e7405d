package meta

import (
	"fmt"
	"strings"
)

// OptionKind discriminates the location option variants. Each variant carries
// only the identity fields that exist for its kind of location; everything
// else stays empty and renders as "null" in the structural key.
type OptionKind string

const (
	// OptionCoded is a location identified by a single code (regions,
	// countries, wards, and similar).
	OptionCoded OptionKind = "CODED"
	// OptionLocalAuthority is identified by a new code and an old (pre-2009)
	// code. Either may be absent, but not both.
	OptionLocalAuthority OptionKind = "LA"
	// OptionSchool is identified by URN and LAESTAB.
	OptionSchool OptionKind = "SCH"
	// OptionProvider is identified by UKPRN.
	OptionProvider OptionKind = "PROV"
	// OptionRscRegion has no code at all; the label is the identity.
	OptionRscRegion OptionKind = "RSC"
)

// LocationOption is one globally shared, de-duplicated location value.
// Two options are the same stored row iff every structural field is equal,
// byte for byte. Label comparison is deliberately case-sensitive.
type LocationOption struct {
	Kind    OptionKind
	Label   string
	Code    string
	OldCode string
	Urn     string
	LaEstab string
	Ukprn   string
}

// LocationOptionFromRow maps one distinct projected CSV tuple to a typed
// option. codes must be in the level's CodeColumns order; empty strings mean
// the value was absent in the source row.
func LocationOptionFromRow(spec LevelSpec, codes []string, name string) (LocationOption, error) {
	if len(codes) != len(spec.CodeColumns) {
		return LocationOption{}, fmt.Errorf("level %s: got %d code values, want %d", spec.Level, len(codes), len(spec.CodeColumns))
	}
	opt := LocationOption{Kind: spec.Kind, Label: name}
	switch spec.Kind {
	case OptionLocalAuthority:
		opt.Code, opt.OldCode = codes[0], codes[1]
	case OptionSchool:
		opt.Urn, opt.LaEstab = codes[0], codes[1]
	case OptionProvider:
		opt.Ukprn = codes[0]
	case OptionRscRegion:
		// Label only.
	case OptionCoded:
		opt.Code = codes[0]
	default:
		return LocationOption{}, fmt.Errorf("unknown option kind %q", spec.Kind)
	}
	return opt, nil
}

// RowKey renders the structural key used for batch de-duplication. Absent
// fields render as the literal placeholder "null". The store computes the
// same rendering in SQL, so the two must never drift.
func (o LocationOption) RowKey() string {
	return strings.Join([]string{
		string(o.Kind),
		o.Label,
		keyField(o.Code),
		keyField(o.OldCode),
		keyField(o.Urn),
		keyField(o.LaEstab),
		keyField(o.Ukprn),
	}, ",")
}

func keyField(v string) string {
	if v == "" {
		return "null"
	}
	return v
}
