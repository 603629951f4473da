// Package pages provides the local persistence layer for note pages and
// the durable deletion set.
//
// A SQLite-backed implementation (SQLiteRepository) runs over a dbx.DBTX, so
// the same code serves plain connections and transactions:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    repo := pages.NewSQLiteRepository(tx)
//	    if err := repo.Delete(ctx, id); err != nil {
//	        return err
//	    }
//	    return repo.MarkDeleted(ctx, id, now)
//	})
//
// Timestamps are stored as Unix milliseconds.
package pages
