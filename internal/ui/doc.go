// Package ui implements the interactive sync history browser.
//
// The TUI is a two-level bubbletea list: recent sync runs, then the
// per-playlist outcomes of a selected run.
package ui
