package catalog

import (
	"context"
	"time"
)

// Store is the abstract persistent-catalog contract the engine depends on
// (C8). Any implementation satisfying these operations with the stated
// atomicity (unique insert, conditional update) is acceptable; the engine
// never implements its own lock manager on top of it.
type Store interface {
	// InsertServerIfAbsent inserts record with unique-key semantics on
	// Address, reporting whether the insert happened (false means a record
	// with that address already existed and nothing was changed).
	InsertServerIfAbsent(ctx context.Context, record *ServerRecord) (inserted bool, err error)

	// ConditionalLease atomically sets indexing = now where
	// address = ? AND indexing IS NULL, returning whether a row changed.
	ConditionalLease(ctx context.Context, address string, now time.Time) (acquired bool, err error)

	GetServer(ctx context.Context, address string) (*ServerRecord, error)
	UpdateServer(ctx context.Context, record *ServerRecord) error

	ListServers(ctx context.Context) ([]*ServerRecord, error)
	ListServersByLastIndexedAsc(ctx context.Context, limit int) ([]*ServerRecord, error)
	DeleteServersOlderThan(ctx context.Context, cutoff time.Time) (deleted int, err error)

	// GetFiles returns every persisted FileEntry for a server, keyed by
	// FullPath().
	GetFiles(ctx context.Context, serverAddress string) (map[string]*FileEntry, error)
	DeleteFiles(ctx context.Context, ids []int64) error
	BulkInsertFiles(ctx context.Context, entries []*FileEntry) error

	GetParam(ctx context.Context, name string) (string, bool, error)
	SetParam(ctx context.Context, name, value string) error

	// BulkSize reports the chunk size bulk insertion should use for this
	// store (§4.6): a store-class default, overridable via configuration.
	BulkSize() int

	Close() error
}
