// Package history records finished upload batches in SQLite so operators can
// see what was uploaded, matched, or skipped in earlier runs.
//
// A batch is written once, after the coordinator returns. The schema is
// versioned in schema.go; a mismatched database must be deleted, it is never
// migrated in place.
package history
