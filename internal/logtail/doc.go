// Package logtail reads the tail of the bookshare log file for the Activity
// view.
//
// Read keeps a ring buffer of the last N lines so large files are scanned
// once without being held in memory. ReadEntries decodes each line as a slog
// JSON record; lines that are not JSON are kept verbatim.
package logtail
