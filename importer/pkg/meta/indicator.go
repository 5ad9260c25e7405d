package meta

// Indicator is a per-version declaration of one indicator column. Indicators
// are metadata-declared, never derived from the data file, so there is no
// option/link model for them.
type Indicator struct {
	// PublicID is the CSV column name.
	PublicID string
	Label    string
	// Unit is the display unit from the metadata file ("%", "£", "pp", ...),
	// empty when undeclared.
	Unit string
	// DecimalPlaces is nil when the metadata file does not declare one.
	DecimalPlaces *int
}

// Numeric reports whether the indicator's values are numeric. An indicator
// that declares decimal places carries numbers; anything else is stored as
// text so suppressed values ("c", "z", "x") survive untouched.
func (i Indicator) Numeric() bool {
	return i.DecimalPlaces != nil
}
