// Package store persists timestamped records in a single pretty-printed JSON
// document. The document is rewritten wholesale on every merge.
package store
