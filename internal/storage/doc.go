// Package storage owns the member registry database: a single SQLite file
// named registry.db inside the application data directory, its embedded
// schema migrations, and the member repository.
package storage
