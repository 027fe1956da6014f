// Package database provides the sink's local SQLite store.
//
// It opens a single WAL-mode connection and applies schema migrations
// supplied by the caller as an fs.FS, usually an embedded directory.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations); err != nil {
//	    return err
//	}
//
// Migrations are additive: each file pair is
// YYYYMMDD_HHMMSS_description.up.sql and the matching .down.sql.
package database
