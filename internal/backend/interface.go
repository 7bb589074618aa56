// Package backend builds the operations repository selected by
// configuration, with its metrics and event decorators applied.
package backend

import (
	"time"

	"operaciones/internal/api"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result contains the repository and an optional cleanup function.
type Result struct {
	Repository api.Repository
	Cleanup    CleanupFunc
}

// Config holds what the factory needs to build a backend.
type Config struct {
	Type Type

	// REST
	APIBaseURL string
	APITimeout time.Duration

	// SQLite
	SQLiteDBPath string

	// Memory
	DataDirectory string

	// Events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
}

// Type names a repository implementation.
type Type string

const (
	RESTBackend   Type = "rest"
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case RESTBackend, MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
