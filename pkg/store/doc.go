// Package store defines the persistence contract every action log backend
// implements, together with the Action/Meta/Entry records it stores.
//
// A backend keeps two views of the same entry set:
//   - created order: sorted by id.Compare, newest first
//   - added order: sorted by the arrival counter Meta.Added, newest first
//
// No two entries in either view share an ID. Adding an existing ID is an
// idempotent no-op reported as (false, nil). Lookups of unknown IDs report
// found=false rather than an error.
//
// Pages returned by Get chain through Page.Next; pass it back as
// GetOptions.Cursor to fetch the following page. An empty Next means the walk
// is complete.
//
// Implementations in this repository: memstore (reference, in memory),
// diskstore (Pebble) and sqlstore (SQLite). storetest holds the conformance
// suite they all run.
package store
