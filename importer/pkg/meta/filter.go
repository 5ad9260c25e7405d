package meta

// aggregateLabel is the option label that marks a filter value as the
// aggregate of all others.
const aggregateLabel = "Total"

// Filter is a per-version declaration of one filter column.
type Filter struct {
	// PublicID is the CSV column name; filters are addressed externally by
	// column, not by a generated identifier.
	PublicID string
	Label    string
	Hint     string
}

// FilterOption is one globally shared, de-duplicated filter value.
type FilterOption struct {
	Label string
	// IsAggregate is set only for the "Total" label; for every other label it
	// stays unset and is stored as NULL.
	IsAggregate bool
}

// NewFilterOption builds the option for a distinct filter column value.
func NewFilterOption(label string) FilterOption {
	return FilterOption{
		Label:       label,
		IsAggregate: label == aggregateLabel,
	}
}

// RowKey renders the structural key used for batch lookup after the upsert.
// The store computes the same rendering in SQL.
func (o FilterOption) RowKey() string {
	if o.IsAggregate {
		return o.Label + ",True"
	}
	return o.Label + ","
}
