// Package database provides SQLite-based storage for iconscan.
//
// HistoryDB stores:
//   - Scan reports for historical comparison
//   - An index of findings by target and code
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// implementation is CGO-free and the whole history is a single file under
// the XDG data directory.
package database
