// Package storage keeps an append-only history of sent alerts and operator
// commands. It is not used for watcher counters, which always restart from a
// live read.
package storage
