// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files follow the {version}_{description}.sql naming convention
// (e.g. "001_create_users.sql") and are read from an fs.FS, typically an
// embedded directory. Applied versions are tracked in a schema_migrations
// table so each file runs exactly once, inside its own transaction.
package migration
