package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lanftp/indexer/internal/logging"
	"github.com/lanftp/indexer/internal/walker"
)

// MaxFiles is the default yielded-entry guard (§4.4): exceeding it raises
// ErrSuspiciousFtp. Maintained by the Reconciler, since it is the component
// that counts yielded entries across the whole walk.
const MaxFiles = 1_000_000

// Reconciler computes the diff between a walker's lazy entry stream and the
// persisted catalog, then applies it in bulk (C6).
type Reconciler struct {
	store     Store
	maxFiles  int
	chunkSize int
}

// NewReconciler builds a Reconciler against store, using store.BulkSize()
// for the insertion chunk size.
func NewReconciler(store Store, maxFiles int) *Reconciler {
	if maxFiles <= 0 {
		maxFiles = MaxFiles
	}
	return &Reconciler{store: store, maxFiles: maxFiles, chunkSize: store.BulkSize()}
}

// Result summarizes one reconciliation pass.
type Result struct {
	ToInsert  []*FileEntry
	ToDelete  []*FileEntry
	NBFiles   int
	TotalSize int64
}

// Reconcile drains entries (and watches errc for a terminal walk error),
// diffing each yielded (path, RemoteEntry) against persisted, producing
// to_insert/to_delete sets and counters. It does not write to the store;
// call Apply with the result to commit.
//
// Reconciliation rule per yielded (path, entry): probe persisted by key
// path+"/"+decoded_name and remove the match if present. Absent: stage for
// insertion. Present but is_directory/size/name differ: stage old for
// deletion, new for insertion (update-by-delete-then-insert, so both sides
// can be issued in bulk). After traversal, every FileEntry still in
// persisted is stale and staged for deletion.
func (r *Reconciler) Reconcile(ctx context.Context, serverAddress string, persisted map[string]*FileEntry, entries <-chan walker.Entry, errc <-chan error) (*Result, error) {
	result := &Result{}

	// Directory sizes are the recursive sum of descendant raw sizes (§4.4),
	// but the walker yields a directory before its children, so a
	// directory's diff against persisted has to wait until every descendant
	// has been seen. dirSizes accumulates per ancestor path as files are
	// yielded; pendingDirs holds each directory's newEntry (and its
	// persisted match, if any) for that deferred diff.
	dirSizes := make(map[string]int64)
	type pendingDir struct {
		fullPath string
		entry    *FileEntry
		old      *FileEntry
		hadOld   bool
	}
	var pendingDirs []pendingDir

	for entry := range entries {
		result.NBFiles++
		if result.NBFiles > r.maxFiles {
			return nil, fmt.Errorf("%w: yielded more than %d entries", walker.ErrSuspiciousFtp, r.maxFiles)
		}

		fullPath := entry.ParentPath + "/" + entry.Remote.DecodedName
		newEntry := &FileEntry{
			ServerAddress: serverAddress,
			Path:          entry.ParentPath,
			Name:          entry.Remote.DecodedName,
			IsDirectory:   entry.Remote.IsDirectory,
			Size:          entry.Remote.RawSize,
		}

		if newEntry.IsDirectory {
			old, ok := persisted[fullPath]
			if ok {
				delete(persisted, fullPath)
			}
			pendingDirs = append(pendingDirs, pendingDir{fullPath: fullPath, entry: newEntry, old: old, hadOld: ok})
			continue
		}

		result.TotalSize += newEntry.Size
		for _, ancestor := range ancestorPaths(entry.ParentPath) {
			dirSizes[ancestor] += newEntry.Size
		}

		if old, ok := persisted[fullPath]; ok {
			delete(persisted, fullPath)
			if old.IsDirectory != newEntry.IsDirectory || old.Size != newEntry.Size || old.Name != newEntry.Name {
				result.ToDelete = append(result.ToDelete, old)
				result.ToInsert = append(result.ToInsert, newEntry)
			}
		} else {
			result.ToInsert = append(result.ToInsert, newEntry)
		}
	}

	if err := <-errc; err != nil {
		return nil, err
	}

	for _, pd := range pendingDirs {
		pd.entry.Size = dirSizes[pd.fullPath]
		if pd.hadOld {
			if pd.old.IsDirectory != pd.entry.IsDirectory || pd.old.Size != pd.entry.Size || pd.old.Name != pd.entry.Name {
				result.ToDelete = append(result.ToDelete, pd.old)
				result.ToInsert = append(result.ToInsert, pd.entry)
			}
		} else {
			result.ToInsert = append(result.ToInsert, pd.entry)
		}
	}

	// Everything left in persisted was not observed on this walk: stale.
	for _, stale := range persisted {
		result.ToDelete = append(result.ToDelete, stale)
	}

	return result, nil
}

// ancestorPaths returns path and every directory path above it, up to and
// including the root ("", per FileEntry.Path's convention).
func ancestorPaths(path string) []string {
	paths := []string{path}
	for path != "" {
		idx := strings.LastIndex(path, "/")
		if idx <= 0 {
			path = ""
		} else {
			path = path[:idx]
		}
		paths = append(paths, path)
	}
	return paths
}

// Apply issues the diff against the store: deletions first as a single
// set-membership delete, then insertions in chunks (§4.6). The caller is
// responsible for setting ServerRecord.Size and LastIndexed before the
// lease release persists them.
func (r *Reconciler) Apply(ctx context.Context, result *Result) error {
	if len(result.ToDelete) > 0 {
		ids := make([]int64, 0, len(result.ToDelete))
		for _, e := range result.ToDelete {
			if e.ID != 0 {
				ids = append(ids, e.ID)
			}
		}
		if len(ids) > 0 {
			if err := r.store.DeleteFiles(ctx, ids); err != nil {
				return fmt.Errorf("catalog: deleting stale files: %w", err)
			}
		}
	}

	chunk := r.chunkSize
	if chunk <= 0 {
		chunk = 100
	}
	for start := 0; start < len(result.ToInsert); start += chunk {
		end := start + chunk
		if end > len(result.ToInsert) {
			end = len(result.ToInsert)
		}
		if err := r.store.BulkInsertFiles(ctx, result.ToInsert[start:end]); err != nil {
			return fmt.Errorf("catalog: bulk inserting files: %w", err)
		}
	}

	logging.Info("reconciled catalog",
		logging.Count("inserted", len(result.ToInsert)),
		logging.Count("deleted", len(result.ToDelete)))

	return nil
}

// IndexServer runs the full index pipeline for one server: acquire the
// lease (§4.5), walk (§4.4), reconcile and apply (§4.6), then release the
// lease with Size/LastIndexed updated. Connection-layer errors and
// SuspiciousFtp/decoding errors leave the catalog unchanged for this server
// and are returned to the caller to log and skip.
func (r *Reconciler) IndexServer(ctx context.Context, serverAddress string, walk func(ctx context.Context) (<-chan walker.Entry, <-chan error)) error {
	lease, err := Acquire(ctx, r.store, serverAddress)
	if err != nil {
		if errors.Is(err, ErrAlreadyIndexing) {
			return err
		}
		return fmt.Errorf("catalog: acquiring lease for %s: %w", serverAddress, err)
	}
	defer func() {
		if relErr := lease.Release(ctx); relErr != nil {
			logging.Error("releasing lease failed", logging.Server(serverAddress), logging.Err(relErr))
		}
	}()

	persisted, err := r.store.GetFiles(ctx, serverAddress)
	if err != nil {
		return fmt.Errorf("catalog: loading persisted files for %s: %w", serverAddress, err)
	}

	// walkCtx is cancelled on every return from here, including the
	// MAX_FILES early abort from Reconcile: otherwise the walk goroutine
	// stays blocked sending its next entry, and the control connection
	// behind it never closes (§8 scenario 4).
	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries, errc := walk(walkCtx)
	result, err := r.Reconcile(ctx, serverAddress, persisted, entries, errc)
	if err != nil {
		return fmt.Errorf("catalog: walking %s: %w", serverAddress, err)
	}

	if err := r.Apply(ctx, result); err != nil {
		return err
	}

	now := time.Now()
	lease.Record.Size = result.TotalSize
	lease.Record.LastIndexed = &now

	return nil
}
