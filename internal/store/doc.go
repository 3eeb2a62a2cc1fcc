// Package store holds the latest Analysis per source in memory.
package store
