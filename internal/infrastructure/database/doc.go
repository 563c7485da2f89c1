// Package database opens the bridge's SQLite database and applies its
// schema migrations.
//
// The database holds two tables: devices (the descriptor cache behind
// device.SQLiteRepository) and state_history (entity snapshots behind
// device.SQLiteStateHistoryRepository).
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or have defaults, and
// every up file has a matching down file.
package database
