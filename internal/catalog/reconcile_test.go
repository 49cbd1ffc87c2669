package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lanftp/indexer/internal/listparse"
	"github.com/lanftp/indexer/internal/walker"
)

func entry(parent, name string, isDir bool, size int64) walker.Entry {
	return walker.Entry{
		ParentPath: parent,
		Remote: &listparse.RemoteEntry{
			DecodedName: name,
			IsDirectory: isDir,
			RawSize:     size,
		},
	}
}

func feedEntries(entries []walker.Entry) (<-chan walker.Entry, <-chan error) {
	ch := make(chan walker.Entry)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		defer close(errc)
		for _, e := range entries {
			ch <- e
		}
	}()
	return ch, errc
}

func TestReconcileDirectorySizeIsRecursiveSum(t *testing.T) {
	r := NewReconciler(NewMemoryStore(0), 0)

	entries, errc := feedEntries([]walker.Entry{
		entry("", "pub", true, 4096),
		entry("/pub", "a.txt", false, 100),
		entry("/pub", "sub", true, 4096),
		entry("/pub/sub", "b.txt", false, 250),
	})

	result, err := r.Reconcile(context.Background(), "10.0.0.1", map[string]*FileEntry{}, entries, errc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	byPath := make(map[string]*FileEntry)
	for _, e := range result.ToInsert {
		byPath[e.FullPath()] = e
	}

	if got := byPath["/pub/sub"].Size; got != 250 {
		t.Errorf("/pub/sub size = %d, want 250", got)
	}
	if got := byPath["/pub"].Size; got != 350 {
		t.Errorf("/pub size = %d, want 350 (recursive sum, not raw LIST size)", got)
	}
	if result.TotalSize != 350 {
		t.Errorf("TotalSize = %d, want 350 (files only)", result.TotalSize)
	}
}

func TestReconcileMaxFilesAbortsWithoutBlocking(t *testing.T) {
	r := NewReconciler(NewMemoryStore(0), 2)

	var list []walker.Entry
	for i := 0; i < 10; i++ {
		list = append(list, entry("", "f", false, 1))
	}
	entries, errc := feedEntries(list)

	done := make(chan error, 1)
	go func() {
		_, err := r.Reconcile(context.Background(), "10.0.0.1", map[string]*FileEntry{}, entries, errc)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, walker.ErrSuspiciousFtp) {
			t.Fatalf("expected ErrSuspiciousFtp, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Reconcile did not return promptly after exceeding maxFiles")
	}
}
