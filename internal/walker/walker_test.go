package walker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeLister serves a fixed directory tree keyed by raw path, simulating
// an FTP server's LIST responses without a real connection.
type fakeLister struct {
	tree map[string][]string
}

func (f *fakeLister) EnableUTF8() error { return nil }

func (f *fakeLister) List(path string) ([]string, error) {
	lines, ok := f.tree[path]
	if !ok {
		return nil, fmt.Errorf("no such path: %s", path)
	}
	return lines, nil
}

func drain(t *testing.T, entries <-chan Entry, errc <-chan error) ([]Entry, error) {
	t.Helper()
	var got []Entry
	var err error
	for entries != nil || errc != nil {
		select {
		case e, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			got = append(got, e)
		case e, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			err = e
		case <-time.After(2 * time.Second):
			t.Fatal("timed out draining walk")
		}
	}
	return got, err
}

func TestWalkHappyPath(t *testing.T) {
	lister := &fakeLister{tree: map[string][]string{
		"/": {
			"-r--r--r-- 1 ftp ftp 57 Feb 20 2012 smthg.zip",
			"drwxr-xr-x 1 ftp ftp 0 Mar 11 13:49 stuff",
		},
		"/stuff": {
			"-rw-r--r-- 1 ftp ftp 100 Jan 1 2020 inner.txt",
		},
	}}

	entries, errc := Walk(context.Background(), lister, MaxDepth)
	got, err := drain(t, entries, errc)
	if err != nil {
		t.Fatalf("unexpected walk error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(got), got)
	}

	if got[0].Remote.DecodedName != "smthg.zip" || got[0].ParentPath != "" {
		t.Errorf("unexpected first entry: %+v", got[0])
	}
	if got[1].Remote.DecodedName != "stuff" || !got[1].Remote.IsDirectory {
		t.Errorf("unexpected second entry: %+v", got[1])
	}
	if got[2].Remote.DecodedName != "inner.txt" || got[2].ParentPath != "/stuff" {
		t.Errorf("unexpected third entry: %+v", got[2])
	}
}

func TestWalkSkipsSymlinks(t *testing.T) {
	lister := &fakeLister{tree: map[string][]string{
		"/": {
			"lrwxrwxrwx 1 0 0 12 Sep 12 2007 incoming -> pub/incoming",
		},
	}}

	entries, errc := Walk(context.Background(), lister, MaxDepth)
	got, err := drain(t, entries, errc)
	if err != nil {
		t.Fatalf("unexpected walk error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected symlink to be skipped, got %d entries", len(got))
	}
}

func TestWalkInfiniteDirectoryGuard(t *testing.T) {
	// A directory entry that refers to itself (via an ever-deepening path)
	// must trip the depth guard well before exhausting memory.
	lister := &fakeLister{tree: map[string][]string{}}
	path := ""
	for i := 0; i <= MaxDepth+1; i++ {
		listPath := path
		if listPath == "" {
			listPath = "/"
		}
		lister.tree[listPath] = []string{
			"drwxr-xr-x 1 ftp ftp 0 Mar 11 13:49 loop",
		}
		path += "/loop"
	}

	entries, errc := Walk(context.Background(), lister, MaxDepth)
	_, err := drain(t, entries, errc)
	if !errors.Is(err, ErrSuspiciousFtp) {
		t.Fatalf("expected ErrSuspiciousFtp, got %v", err)
	}
}
