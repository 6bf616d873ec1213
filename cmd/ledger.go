package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-linker/internal/store"
)

// openLedger opens and migrates the SQLite run ledger.
func openLedger(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if dsn == "" {
		dsn = "linker.db"
	}
	st, err := store.NewSQLite(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "open run ledger")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate run ledger")
	}
	return st, nil
}
