package metastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/statshare/importer/importer/pkg/meta"
)

// locationRowKeyExpr must render exactly what meta.LocationOption.RowKey
// renders in Go; the batch de-duplication joins the two.
const locationRowKeyExpr = `concat_ws(',', type, label,
	coalesce(code, 'null'), coalesce(old_code, 'null'),
	coalesce(urn, 'null'), coalesce(laestab, 'null'), coalesce(ukprn, 'null'))`

// LocationOptionRow is a stored option plus the identifiers the columnar
// builder needs.
type LocationOptionRow struct {
	ID       int64
	PublicID string
	Level    meta.GeographicLevel
	Option   meta.LocationOption
}

// CreateLocationMeta declares a location dimension for a version and level.
// Idempotent: re-creating returns the existing row's id.
func (s *Store) CreateLocationMeta(ctx context.Context, versionID uuid.UUID, level meta.GeographicLevel) (int64, error) {
	var id int64
	err := s.cfg.Pool.QueryRow(ctx, `
		INSERT INTO location_meta (data_set_version_id, level)
		VALUES ($1, $2)
		ON CONFLICT (data_set_version_id, level) DO UPDATE SET level = EXCLUDED.level
		RETURNING id`,
		versionID, level).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create location meta for level %s: %w", level, err)
	}
	return id, nil
}

// LinkLocationOptions de-duplicates the given options against the global
// option store and links every one of them (new or pre-existing) to the meta
// row. Options are processed in batches; each batch commits as a unit.
// Returns the total number of links present for the meta row afterwards.
func (s *Store) LinkLocationOptions(ctx context.Context, metaID int64, options []meta.LocationOption) (int64, error) {
	for start := 0; start < len(options); start += batchSize {
		batch := options[start:min(start+batchSize, len(options))]
		if err := s.linkLocationOptionBatch(ctx, metaID, batch); err != nil {
			return 0, fmt.Errorf("location option batch at offset %d: %w", start, err)
		}
	}

	var count int64
	err := s.cfg.Pool.QueryRow(ctx, `
		SELECT count(*) FROM location_option_meta_links WHERE location_meta_id = $1`,
		metaID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count location option links: %w", err)
	}
	return count, nil
}

func (s *Store) linkLocationOptionBatch(ctx context.Context, metaID int64, batch []meta.LocationOption) error {
	tx, err := s.cfg.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	keys := make([]string, 0, len(batch))
	for _, opt := range batch {
		keys = append(keys, opt.RowKey())
	}

	existing, err := fetchLocationOptionsByKey(ctx, tx, keys)
	if err != nil {
		return err
	}

	var missing []meta.LocationOption
	for _, opt := range batch {
		if _, ok := existing[opt.RowKey()]; !ok {
			missing = append(missing, opt)
		}
	}

	if len(missing) > 0 {
		if err := insertLocationOptions(ctx, tx, missing); err != nil {
			return err
		}
		// Re-fetch so conflict-skipped rows (a concurrent import created the
		// same option first) resolve to the stored row.
		existing, err = fetchLocationOptionsByKey(ctx, tx, keys)
		if err != nil {
			return err
		}
	}

	linkRows := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*3+1)
	args = append(args, metaID)
	n := 2
	for _, opt := range batch {
		row, ok := existing[opt.RowKey()]
		if !ok {
			return fmt.Errorf("location option %q missing after insert", opt.RowKey())
		}
		linkRows = append(linkRows, fmt.Sprintf("($1, $%d, $%d)", n, n+1))
		args = append(args, row.id, row.publicID)
		n += 2
	}

	// The link inherits the option's public id. ON CONFLICT keeps re-runs
	// from assigning a second identifier to an existing link.
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO location_option_meta_links (location_meta_id, option_id, public_id)
		VALUES %s
		ON CONFLICT (location_meta_id, option_id) DO NOTHING`,
		strings.Join(linkRows, ", ")), args...)
	if err != nil {
		return fmt.Errorf("failed to insert location option links: %w", err)
	}

	return tx.Commit(ctx)
}

type storedOption struct {
	id       int64
	publicID string
}

func fetchLocationOptionsByKey(ctx context.Context, tx pgx.Tx, keys []string) (map[string]storedOption, error) {
	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT id, public_id, %s AS row_key
		FROM location_option_meta
		WHERE %s = ANY($1)`, locationRowKeyExpr, locationRowKeyExpr), keys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch location options by key: %w", err)
	}
	defer rows.Close()

	out := make(map[string]storedOption, len(keys))
	for rows.Next() {
		var opt storedOption
		var key string
		if err := rows.Scan(&opt.id, &opt.publicID, &key); err != nil {
			return nil, fmt.Errorf("failed to scan location option: %w", err)
		}
		out[key] = opt
	}
	return out, rows.Err()
}

func insertLocationOptions(ctx context.Context, tx pgx.Tx, options []meta.LocationOption) error {
	// Reserve ids up front: a new option's public id is the reversible
	// encoding of its id, which has to exist before the insert. Ids skipped
	// by conflicts leave sequence gaps, which is fine.
	ids := make([]int64, 0, len(options))
	rows, err := tx.Query(ctx, `
		SELECT nextval('location_option_meta_id_seq') FROM generate_series(1, $1)`,
		len(options))
	if err != nil {
		return fmt.Errorf("failed to reserve location option ids: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan reserved id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to reserve location option ids: %w", err)
	}

	valueRows := make([]string, 0, len(options))
	args := make([]any, 0, len(options)*9)
	n := 1
	for i, opt := range options {
		publicID, err := meta.EncodePublicID(uint64(ids[i]))
		if err != nil {
			return err
		}
		valueRows = append(valueRows, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n, n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8))
		args = append(args, ids[i], opt.Kind, opt.Label,
			nullStr(opt.Code), nullStr(opt.OldCode), nullStr(opt.Urn),
			nullStr(opt.LaEstab), nullStr(opt.Ukprn), publicID)
		n += 9
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO location_option_meta (id, type, label, code, old_code, urn, laestab, ukprn, public_id)
		VALUES %s
		ON CONFLICT (type, label, code, old_code, urn, laestab, ukprn) DO NOTHING`,
		strings.Join(valueRows, ", ")), args...)
	if err != nil {
		return fmt.Errorf("failed to insert location options: %w", err)
	}
	return nil
}

// GetLocationOptionsForVersion returns every option linked to the version,
// with its level and link public id, ordered for deterministic lookup builds.
func (s *Store) GetLocationOptionsForVersion(ctx context.Context, versionID uuid.UUID) ([]LocationOptionRow, error) {
	rows, err := s.cfg.Pool.Query(ctx, `
		SELECT o.id, l.public_id, lm.level, o.type, o.label,
		       coalesce(o.code, ''), coalesce(o.old_code, ''), coalesce(o.urn, ''),
		       coalesce(o.laestab, ''), coalesce(o.ukprn, '')
		FROM location_meta lm
		JOIN location_option_meta_links l ON l.location_meta_id = lm.id
		JOIN location_option_meta o ON o.id = l.option_id
		WHERE lm.data_set_version_id = $1
		ORDER BY lm.level, o.label, o.id`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get location options for version: %w", err)
	}
	defer rows.Close()

	var out []LocationOptionRow
	for rows.Next() {
		var r LocationOptionRow
		if err := rows.Scan(&r.ID, &r.PublicID, &r.Level, &r.Option.Kind, &r.Option.Label,
			&r.Option.Code, &r.Option.OldCode, &r.Option.Urn, &r.Option.LaEstab, &r.Option.Ukprn); err != nil {
			return nil, fmt.Errorf("failed to scan location option row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// nullStr maps empty strings to SQL NULL so structural keys store uniformly.
func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
