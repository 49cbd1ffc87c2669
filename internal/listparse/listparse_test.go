package listparse

import "testing"

func TestParseHappyPath(t *testing.T) {
	file, err := Parse("-r--r--r-- 1 ftp ftp 57 Feb 20 2012 smthg.zip")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if file.IsDirectory || file.IsLink {
		t.Errorf("expected a regular file, got dir=%v link=%v", file.IsDirectory, file.IsLink)
	}
	if file.RawName != "smthg.zip" {
		t.Errorf("name = %q, want smthg.zip", file.RawName)
	}
	if file.RawSize != 57 {
		t.Errorf("size = %d, want 57", file.RawSize)
	}

	dir, err := Parse("drwxr-xr-x 1 ftp ftp 0 Mar 11 13:49 stuff")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !dir.IsDirectory {
		t.Error("expected a directory")
	}
	if dir.RawName != "stuff" {
		t.Errorf("name = %q, want stuff", dir.RawName)
	}
}

func TestParseLeadingSpaceName(t *testing.T) {
	entry, err := Parse("-r--r--r-- 1 ftp ftp 57 Feb 20 2012  smthg.zip")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if entry.RawName != " smthg.zip" {
		t.Errorf("name = %q, want leading space preserved", entry.RawName)
	}
}

func TestParseSymlink(t *testing.T) {
	entry, err := Parse("lrwxrwxrwx 1 0 0 12 Sep 12 2007 incoming -> pub/incoming")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !entry.IsLink {
		t.Error("expected a symlink")
	}
	if entry.RawName != "incoming" {
		t.Errorf("name = %q, want incoming", entry.RawName)
	}
}

func TestParseMissingGroupField(t *testing.T) {
	entry, err := Parse("-rw-r--r-- 1 ftp 1024 Jan 5 2020 readme.txt")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if entry.RawName != "readme.txt" {
		t.Errorf("name = %q, want readme.txt", entry.RawName)
	}
	if entry.RawSize != 1024 {
		t.Errorf("size = %d, want 1024", entry.RawSize)
	}
}

func TestParseMalformedLine(t *testing.T) {
	if _, err := Parse("this is not a list line"); err == nil {
		t.Error("expected a parse error")
	}
}

func TestDecoderFallsBackOnInvalidUTF8(t *testing.T) {
	// "élève.zip" in ISO-8859-15 (latin-9): bytes for é and è are single
	// bytes 0xE9/0xE8, which are not valid standalone UTF-8 continuation
	// bytes, so the UTF-8 attempt must fail first.
	raw := []byte{0xE9, 'l', 0xE8, 'v', 'e', '.', 'z', 'i', 'p'}

	d := NewDecoder()
	decoded, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if decoded != "élève.zip" {
		t.Errorf("decoded = %q, want élève.zip", decoded)
	}
}

func TestDecoderStaysOnFallbackForWholeWalk(t *testing.T) {
	d := NewDecoder()
	invalidUTF8 := []byte{0xE9}
	if _, err := d.Decode(invalidUTF8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Once settled on latin-9, plain ASCII (also valid latin-9) must not
	// bounce the decoder back to the utf-8 index.
	plain, err := d.Decode([]byte("plain.txt"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain != "plain.txt" {
		t.Errorf("decoded = %q, want plain.txt", plain)
	}
	if d.index != 1 {
		t.Errorf("decoder should remain on latin-9 (index 1), got %d", d.index)
	}
}
