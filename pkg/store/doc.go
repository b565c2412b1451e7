// Package store keeps fetched account operation history in a local database,
// sqlite by default or postgres, so listings survive restarts and can be
// paged without asking the node again.
package store
