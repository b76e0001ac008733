// Package database provides the SQLite connection and schema migrations
// backing the device registry.
//
// Migrations are supplied as an fs.FS (normally the embedded migrations
// package) so tests can run against an in-memory filesystem:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil { ... }
//	if err := db.Migrate(ctx, migrations.FS); err != nil { ... }
package database
