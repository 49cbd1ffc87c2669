// Package listparse parses non-standard unix-style FTP LIST output into
// RemoteEntry values, with a per-walk encoding-fallback decoder.
package listparse

import (
	"errors"
	"regexp"
	"strconv"
)

// RemoteEntry is the transient result of parsing one LIST line. Created per
// line by Parse, consumed by the walker and reconciler, never persisted.
type RemoteEntry struct {
	RawName     string
	DecodedName string
	IsDirectory bool
	IsLink      bool
	RawSize     int64
	Size        int64
}

// ErrMalformedLine is returned when a line does not match the accepted
// unix LIST grammar.
var ErrMalformedLine = errors.New("listparse: malformed LIST line")

// listLine matches:
//
//	<10-char mode> <linkcount> <user> [<group>] <size> <month> <day> <time-or-year> <name>
//
// The group field is optional, which is why user/group/size is matched as a
// run of 2-3 whitespace-separated tokens ending in the numeric size, rather
// than a fixed field count. Name starts immediately after exactly one space
// following the date/time field and may itself contain spaces.
var listLine = regexp.MustCompile(
	`^([bcdlpsD-][rwxstST-]{9})\s+(\d+)\s+(\S+)(?:\s+(\S+))?\s+(\d+)\s+(\S+\s+\S+\s+\S+)\s(.*)$`,
)

// symlinkArrow separates a symlink's displayed name from its target:
// "incoming -> pub/incoming".
var symlinkArrow = regexp.MustCompile(`^(.*) -> .*$`)

// Parse parses one raw, undecoded LIST line into a RemoteEntry. It leaves
// DecodedName empty: the caller runs RawName through a Decoder afterwards;
// Parse itself only splits the grammar's fixed fields from the free-form name.
func Parse(line string) (*RemoteEntry, error) {
	m := listLine.FindStringSubmatch(line)
	if m == nil {
		return nil, ErrMalformedLine
	}

	mode := m[1]
	size, err := strconv.ParseInt(m[5], 10, 64)
	if err != nil {
		return nil, ErrMalformedLine
	}

	name := m[7]
	isLink := mode[0] == 'l'
	if isLink {
		if sm := symlinkArrow.FindStringSubmatch(name); sm != nil {
			name = sm[1]
		}
	}

	return &RemoteEntry{
		RawName:     name,
		IsDirectory: mode[0] == 'd',
		IsLink:      isLink,
		RawSize:     size,
		Size:        size,
	}, nil
}
