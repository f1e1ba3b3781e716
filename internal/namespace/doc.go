// Package namespace validates log names and keeps one metadata record per
// named log in a Pebble database.
package namespace
