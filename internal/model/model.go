// Package model defines data structures for kvstore.
//
// This package contains:
//   - Config: server configuration
//   - ChunkRecord: JSONL ingestion record
package model
