// Package pg manages the PostgreSQL connection pool and schema migrations.
//
// Connect builds a pgx pool from environment-driven Config, retrying until
// the database is reachable. Migrate runs embedded goose migrations through
// the pgx stdlib bridge, so the application schema is applied on start
// without a separate migration binary.
package pg
