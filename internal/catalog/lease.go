package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/lanftp/indexer/internal/logging"
)

// Lease is a scoped guard over one ServerRecord's indexing lock: acquiring
// it takes the lease, and Release, called via defer at every call site,
// clears it unconditionally, persisting whatever the caller mutated on
// Record in the same write.
type Lease struct {
	store  Store
	Record *ServerRecord
}

// Acquire implements §4.5:
//  1. Attempt to insert a new ServerRecord with indexing=now. If the
//     address was unknown, the insert succeeds and the lease is held.
//  2. Otherwise atomically update the existing record's indexing field only
//     if it is currently nil. Zero rows changed means another holder has
//     it: ErrAlreadyIndexing. Otherwise re-read, mark online, and return.
func Acquire(ctx context.Context, store Store, address string) (*Lease, error) {
	now := time.Now()

	fresh := &ServerRecord{
		Address:    address,
		Online:     true,
		LastOnline: now,
		Indexing:   &now,
	}

	inserted, err := store.InsertServerIfAbsent(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if inserted {
		return &Lease{store: store, Record: fresh}, nil
	}

	acquired, err := store.ConditionalLease(ctx, address, now)
	if err != nil {
		return nil, err
	}
	if !acquired {
		logging.Info("lease contention, server already indexing", logging.Server(address))
		return nil, ErrAlreadyIndexing
	}

	rec, err := store.GetServer(ctx, address)
	if err != nil {
		return nil, err
	}
	rec.Online = true
	rec.LastOnline = now
	if err := store.UpdateServer(ctx, rec); err != nil {
		return nil, err
	}

	return &Lease{store: store, Record: rec}, nil
}

// Release clears the lease and persists Record's current state, including
// any mutations the caller made (Size, LastIndexed, Name, ...). Safe to
// call on every exit path, including after an error; it never returns
// ErrNotFound as fatal since a concurrently-pruned server has nothing left
// to release.
func (l *Lease) Release(ctx context.Context) error {
	l.Record.Indexing = nil
	err := l.store.UpdateServer(ctx, l.Record)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
