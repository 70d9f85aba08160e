// Package history persists PLC tag changes and completed fill cycles in
// SQLite so operators can look back at what the line did.
//
// The schema lives in the top-level migrations package. Timestamps are
// stored as fixed-width UTC text so they sort lexically.
package history
