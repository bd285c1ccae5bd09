// Package filesystem watches the corpus directory for file changes.
//
// The watcher is flat like ingestion: only regular files directly inside the
// root are reported, and hidden files are ignored.
package filesystem
