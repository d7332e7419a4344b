// Package history keeps a SQLite ledger of production cycles.
//
// Each cycle, successful or not, is recorded with its prompt, frame
// directory, output video and frame counts. The database uses WAL mode and a
// single connection; the schema is embedded and applied on every Open.
package history
