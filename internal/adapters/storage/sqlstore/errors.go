package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/okian/drillcore/internal/adapters/storage"
	"github.com/okian/drillcore/pkg/metrics"
)

// undefinedTableCode is the postgres code for a missing relation.
const undefinedTableCode = "42P01"

// classify wraps err with the storage class it belongs to. A backend that
// answers without the events table is ErrSchemaMissing; anything else is
// treated as unavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isSchemaMissing(err) {
		metrics.RecordPersistError("schema_missing")
		return fmt.Errorf("%w: %w", storage.ErrSchemaMissing, err)
	}
	metrics.RecordPersistError("unavailable")
	return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
}

func isSchemaMissing(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedTableCode
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3lib.SQLITE_ERROR {
		return strings.Contains(strings.ToLower(sqliteErr.Error()), "no such table")
	}
	return false
}
