// Package stores provides the persistence backends for the record store:
// a CSV file backend persisted by bulk rewrite, and SQLite and Redis backends
// kept in sync one record at a time by upsert and delete.
package stores
