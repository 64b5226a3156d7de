// Package storeerrors centralizes the sentinel I/O errors the disk
// package returns. Buffer pool and hash table outcomes that can fail
// in the ordinary course of operation (pool exhaustion, duplicate
// keys, capacity limits) are reported as plain bool/(V, bool) returns
// instead of wrapped sentinels, since callers only ever branch on
// success or failure, never on the distinct failure reason.
package storeerrors

import "errors"

var (
	ErrIO              = errors.New("i/o error")
	ErrDBFileExists    = errors.New("database file already exists")
	ErrDBFileNotFound  = errors.New("database file not found")
	ErrInvalidPageSize = errors.New("page data buffer size does not match configured page size")
)
