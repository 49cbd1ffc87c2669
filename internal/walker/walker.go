// Package walker implements the bounded recursive FTP walker (C4): given an
// authenticated control connection, it produces a lazy sequence of
// (parent_path, RemoteEntry) covering every non-link file and directory
// reachable from "/".
package walker

import (
	"context"
	"errors"
	"fmt"

	"github.com/lanftp/indexer/internal/listparse"
	"github.com/lanftp/indexer/internal/logging"
)

// Lister is the subset of *ftpclient.Client the walker depends on, so the
// walker's traversal logic can be exercised without a real FTP server.
type Lister interface {
	EnableUTF8() error
	List(path string) ([]string, error)
}

// MaxDepth is the default recursion-depth guard (§4.4): exceeding it at
// entry to any recursion raises ErrSuspiciousFtp.
const MaxDepth = 500

// ErrSuspiciousFtp signals a walk that hit a guard and must be abandoned:
// the depth guard here, or the file-count guard in the catalog reconciler.
// The caller's lease release leaves the catalog untouched.
var ErrSuspiciousFtp = errors.New("walker: suspicious ftp tree")

// Entry is one yielded (parent_path, RemoteEntry) pair. ParentPath is the
// decoded storage path ("" for root, "/sub/dir" form below it); the walker
// itself issues LIST against the raw, pre-decoded path to avoid
// round-tripping through ambiguous encodings.
type Entry struct {
	ParentPath string
	Remote     *listparse.RemoteEntry
}

type frame struct {
	rawPath     string
	decodedPath string
	depth       int
}

// Walk drives the traversal in a goroutine, sending entries on the returned
// channel and at most one terminal error on the error channel before both
// close. The caller must drain entries until closed (or cancel ctx) to
// avoid leaking the goroutine.
func Walk(ctx context.Context, client Lister, maxDepth int) (<-chan Entry, <-chan error) {
	if maxDepth <= 0 {
		maxDepth = MaxDepth
	}

	entries := make(chan Entry)
	errc := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errc)

		if err := client.EnableUTF8(); err != nil {
			logging.Warn("OPTS UTF8 ON rejected, relying on encoding fallback", logging.Err(err))
		}

		decoder := listparse.NewDecoder()
		stack := []frame{{rawPath: "", decodedPath: "", depth: 0}}

		for len(stack) > 0 {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}

			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if top.depth > maxDepth {
				errc <- fmt.Errorf("%w: depth %d exceeds max %d", ErrSuspiciousFtp, top.depth, maxDepth)
				return
			}

			listPath := top.rawPath
			if listPath == "" {
				listPath = "/"
			}
			lines, err := client.List(listPath)
			if err != nil {
				errc <- err
				return
			}

			var children []frame
			for _, line := range lines {
				remote, err := listparse.Parse(line)
				if err != nil {
					errc <- fmt.Errorf("walker: parsing %q: %w", top.rawPath, err)
					return
				}

				decoded, err := decoder.Decode([]byte(remote.RawName))
				if err != nil {
					errc <- fmt.Errorf("walker: decoding entry under %q: %w", top.rawPath, err)
					return
				}
				remote.DecodedName = decoded

				if remote.IsLink {
					continue // symlinks are never followed or yielded
				}

				select {
				case entries <- Entry{ParentPath: top.decodedPath, Remote: remote}:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}

				if remote.IsDirectory {
					children = append(children, frame{
						rawPath:     top.rawPath + "/" + remote.RawName,
						decodedPath: top.decodedPath + "/" + remote.DecodedName,
						depth:       top.depth + 1,
					})
				}
			}

			// Push in reverse so the stack (LIFO) visits the first child
			// first, preserving depth-first order.
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}()

	return entries, errc
}
