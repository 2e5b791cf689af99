// Package repositories implements SQLite persistence for sync history.
//
// [HistoryRepository] records one row per cycle and one row per playlist
// outcome within a cycle, which the history command and the TUI read back.
package repositories
