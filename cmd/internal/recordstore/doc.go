// Package recordstore is a minimal client for a generic tabular record
// store reached over HTTP (tables, rows, link relations).
//
// The record store is an external collaborator: this client only covers the
// operations codegate needs (filtered list, create, update, link) and never
// interprets row contents itself. Callers decode rows into their own types.
package recordstore
