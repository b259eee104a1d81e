// Package repository persists wallet users and their transaction history.
//
// SQLiteRepository keeps everything in a single embedded database file whose
// schema is managed by goose migrations compiled into the binary.
// MemoryRepository offers the same behaviour without persistence.
package repository
