package repomanager

import (
	"context"
	"database/sql"

	"github.com/01011010/notesum-hybrid/internal/dbx"
	"github.com/01011010/notesum-hybrid/internal/server/repositories/pages"
)

// RepositoryManager vends repositories bound to a connection or a
// transaction and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Pages(db dbx.DBTX) pages.Repository
}
