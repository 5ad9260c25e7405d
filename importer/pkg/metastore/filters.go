package metastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/statshare/importer/importer/pkg/meta"
)

// filterRowKeyExpr must render exactly what meta.FilterOption.RowKey renders.
const filterRowKeyExpr = `concat(label, ',', CASE WHEN is_aggregate THEN 'True' ELSE '' END)`

// FilterRow is a stored filter declaration for one version.
type FilterRow struct {
	ID     int64
	Filter meta.Filter
}

// FilterOptionRow is a stored option linked to one filter meta row.
type FilterOptionRow struct {
	ID       int64
	PublicID string
	// FilterColumn is the owning filter's CSV column name.
	FilterColumn string
	Option       meta.FilterOption
}

// CreateFilterMeta declares a filter column for a version. Idempotent:
// re-creating refreshes label and hint and returns the existing id.
func (s *Store) CreateFilterMeta(ctx context.Context, versionID uuid.UUID, f meta.Filter) (int64, error) {
	var id int64
	err := s.cfg.Pool.QueryRow(ctx, `
		INSERT INTO filter_meta (data_set_version_id, column_name, label, hint)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (data_set_version_id, column_name)
		DO UPDATE SET label = EXCLUDED.label, hint = EXCLUDED.hint
		RETURNING id`,
		versionID, f.PublicID, f.Label, f.Hint).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create filter meta for column %s: %w", f.PublicID, err)
	}
	return id, nil
}

// UpsertFilterOptions inserts only the options whose structural key
// (label, is_aggregate) is not already stored.
func (s *Store) UpsertFilterOptions(ctx context.Context, options []meta.FilterOption) error {
	for start := 0; start < len(options); start += batchSize {
		batch := options[start:min(start+batchSize, len(options))]

		valueRows := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*2)
		n := 1
		for _, opt := range batch {
			valueRows = append(valueRows, fmt.Sprintf("($%d, $%d)", n, n+1))
			args = append(args, opt.Label, nullBool(opt.IsAggregate))
			n += 2
		}

		_, err := s.cfg.Pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO filter_option_meta (label, is_aggregate)
			VALUES %s
			ON CONFLICT (label, is_aggregate) DO NOTHING`,
			strings.Join(valueRows, ", ")), args...)
		if err != nil {
			return fmt.Errorf("failed to upsert filter options: %w", err)
		}
	}
	return nil
}

// LinkFilterOptions links every given option to the filter meta row, drawing
// a fresh public id from the global link sequence for each new link. Returns
// the total number of links present for the meta row afterwards.
func (s *Store) LinkFilterOptions(ctx context.Context, metaID int64, options []meta.FilterOption) (int64, error) {
	for start := 0; start < len(options); start += batchSize {
		batch := options[start:min(start+batchSize, len(options))]
		if err := s.linkFilterOptionBatch(ctx, metaID, batch); err != nil {
			return 0, fmt.Errorf("filter option batch at offset %d: %w", start, err)
		}
	}

	var count int64
	err := s.cfg.Pool.QueryRow(ctx, `
		SELECT count(*) FROM filter_option_meta_links WHERE filter_meta_id = $1`,
		metaID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count filter option links: %w", err)
	}
	return count, nil
}

func (s *Store) linkFilterOptionBatch(ctx context.Context, metaID int64, batch []meta.FilterOption) error {
	tx, err := s.cfg.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	keys := make([]string, 0, len(batch))
	for _, opt := range batch {
		keys = append(keys, opt.RowKey())
	}

	stored, err := fetchFilterOptionsByKey(ctx, tx, keys)
	if err != nil {
		return err
	}

	// Reserve one sequence value per candidate link. Values burned on links
	// that already exist are never reused; public ids are assigned once.
	seqs := make([]int64, 0, len(batch))
	rows, err := tx.Query(ctx, `
		SELECT nextval('filter_option_meta_link_seq') FROM generate_series(1, $1)`,
		len(batch))
	if err != nil {
		return fmt.Errorf("failed to reserve filter link sequence values: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan reserved sequence value: %w", err)
		}
		seqs = append(seqs, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to reserve filter link sequence values: %w", err)
	}

	linkRows := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*2+1)
	args = append(args, metaID)
	n := 2
	for i, opt := range batch {
		row, ok := stored[opt.RowKey()]
		if !ok {
			return fmt.Errorf("filter option %q not found after upsert", opt.RowKey())
		}
		publicID, err := meta.EncodePublicID(uint64(seqs[i]))
		if err != nil {
			return err
		}
		linkRows = append(linkRows, fmt.Sprintf("($1, $%d, $%d)", n, n+1))
		args = append(args, row.id, publicID)
		n += 2
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO filter_option_meta_links (filter_meta_id, option_id, public_id)
		VALUES %s
		ON CONFLICT (filter_meta_id, option_id) DO NOTHING`,
		strings.Join(linkRows, ", ")), args...)
	if err != nil {
		return fmt.Errorf("failed to insert filter option links: %w", err)
	}

	return tx.Commit(ctx)
}

func fetchFilterOptionsByKey(ctx context.Context, tx pgx.Tx, keys []string) (map[string]storedOption, error) {
	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT id, %s AS row_key
		FROM filter_option_meta
		WHERE %s = ANY($1)`, filterRowKeyExpr, filterRowKeyExpr), keys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch filter options by key: %w", err)
	}
	defer rows.Close()

	out := make(map[string]storedOption, len(keys))
	for rows.Next() {
		var opt storedOption
		var key string
		if err := rows.Scan(&opt.id, &key); err != nil {
			return nil, fmt.Errorf("failed to scan filter option: %w", err)
		}
		out[key] = opt
	}
	return out, rows.Err()
}

// GetFiltersForVersion returns the version's filter declarations ordered by
// label.
func (s *Store) GetFiltersForVersion(ctx context.Context, versionID uuid.UUID) ([]FilterRow, error) {
	rows, err := s.cfg.Pool.Query(ctx, `
		SELECT id, column_name, label, hint
		FROM filter_meta
		WHERE data_set_version_id = $1
		ORDER BY label`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get filters for version: %w", err)
	}
	defer rows.Close()

	var out []FilterRow
	for rows.Next() {
		var r FilterRow
		if err := rows.Scan(&r.ID, &r.Filter.PublicID, &r.Filter.Label, &r.Filter.Hint); err != nil {
			return nil, fmt.Errorf("failed to scan filter row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetFilterOptionsForVersion returns every option linked to the version's
// filters, with the owning column and the link public id.
func (s *Store) GetFilterOptionsForVersion(ctx context.Context, versionID uuid.UUID) ([]FilterOptionRow, error) {
	rows, err := s.cfg.Pool.Query(ctx, `
		SELECT o.id, l.public_id, fm.column_name, o.label, coalesce(o.is_aggregate, false)
		FROM filter_meta fm
		JOIN filter_option_meta_links l ON l.filter_meta_id = fm.id
		JOIN filter_option_meta o ON o.id = l.option_id
		WHERE fm.data_set_version_id = $1
		ORDER BY fm.column_name, o.label, o.id`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get filter options for version: %w", err)
	}
	defer rows.Close()

	var out []FilterOptionRow
	for rows.Next() {
		var r FilterOptionRow
		if err := rows.Scan(&r.ID, &r.PublicID, &r.FilterColumn, &r.Option.Label, &r.Option.IsAggregate); err != nil {
			return nil, fmt.Errorf("failed to scan filter option row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// nullBool maps false to SQL NULL; the aggregate flag is only ever stored as
// true or NULL.
func nullBool(v bool) any {
	if !v {
		return nil
	}
	return v
}
