// Package catalog defines the persisted data model (ServerRecord, FileEntry,
// IndexerParameter), the Store contract the engine depends on (C8), and the
// two operations layered on top of it: the indexing lease (C5) and bulk
// reconciliation (C6).
package catalog

import (
	"errors"
	"time"
)

// ServerRecord is a discovered FTP server and its liveness/indexing state.
type ServerRecord struct {
	Address     string // IPv4 text, primary key
	Name        string // reverse-DNS display name, optional
	Online      bool
	LastOnline  time.Time
	LastIndexed *time.Time // nil until first successful walk
	Size        int64      // total bytes summed over walked entries
	Indexing    *time.Time // lease token: nil when free
}

// DisplayName returns Name if set, else falls back to Address.
func (s *ServerRecord) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Address
}

// FileEntry is a file or directory discovered under a ServerRecord.
type FileEntry struct {
	ID            int64
	ServerAddress string
	Path          string // parent directory, never ends in "/", "" denotes root
	Name          string
	IsDirectory   bool
	Size          int64 // bytes; for directories, recursive sum of descendants
}

// FullPath returns the entry's path joined with its name.
func (f *FileEntry) FullPath() string {
	return f.Path + "/" + f.Name
}

// fileCategory buckets a file extension into the coarse classes a browse
// frontend uses for iconography. Purely a display helper with no crawl-time
// cost; recovered from the original project's File.icon().
var fileCategory = map[string]string{
	".avi": "film", ".mkv": "film", ".mp4": "film", ".mov": "film",
	".mp3": "music", ".flac": "music", ".ogg": "music", ".wav": "music",
}

// Icon returns a coarse category for this entry: "folder-open" for
// directories, a media category for recognized extensions, else "file".
func (f *FileEntry) Icon() string {
	if f.IsDirectory {
		return "folder-open"
	}
	for ext, category := range fileCategory {
		if len(f.Name) > len(ext) && f.Name[len(f.Name)-len(ext):] == ext {
			return category
		}
	}
	return "file"
}

// Recognized IndexerParameter keys.
const (
	ParamLastScannedIP    = "last_scanned_ip"
	ParamLastScanFirstIP  = "last_scan_first_ip"
)

// ErrAlreadyIndexing is returned by Acquire when another holder has the
// lease and has not released it. Leases do not expire.
var ErrAlreadyIndexing = errors.New("catalog: server is already indexing")

// ErrNotFound is returned by lookups that find no matching record.
var ErrNotFound = errors.New("catalog: not found")
