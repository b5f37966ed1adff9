package attachments

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Limits applied when reading archives.
const (
	MaxAttachmentSize = 64 << 20
	MaxEntrySize      = 32 << 20
	MaxEntries        = 1 << 16
)

// CodeExtension marks entries holding compiled modules.
const CodeExtension = ".wasm"

// Entry is one file or directory of an archive.
type Entry struct {
	Path string
	Data []byte
	Dir  bool
}

// NormalizePath maps a path to its canonical form: lower case with forward
// slashes.
func NormalizePath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
}

// IsCode reports whether path names a compiled module.
func IsCode(path string) bool {
	return strings.HasSuffix(NormalizePath(path), CodeExtension)
}

// ReadArchive reads every entry of a zip archive in stored order.
func ReadArchive(data []byte) ([]Entry, error) {
	if len(data) > MaxAttachmentSize {
		return nil, &InvalidArchiveError{Message: fmt.Sprintf("archive is %d bytes, limit is %d", len(data), MaxAttachmentSize)}
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &InvalidArchiveError{Message: "cannot open zip", Cause: err}
	}
	if len(zr.File) > MaxEntries {
		return nil, &InvalidArchiveError{Message: fmt.Sprintf("%d entries, limit is %d", len(zr.File), MaxEntries)}
	}

	seen := make(map[string]bool, len(zr.File))
	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if err := checkPath(f.Name); err != nil {
			return nil, err
		}
		norm := NormalizePath(f.Name)
		if seen[norm] {
			return nil, &InvalidArchiveError{Message: fmt.Sprintf("duplicate entry %q", f.Name)}
		}
		seen[norm] = true

		if f.FileInfo().IsDir() {
			entries = append(entries, Entry{Path: f.Name, Dir: true})
			continue
		}
		if f.UncompressedSize64 > MaxEntrySize {
			return nil, &InvalidArchiveError{Message: fmt.Sprintf("entry %q is too large", f.Name)}
		}
		content, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Path: f.Name, Data: content})
	}
	return entries, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &InvalidArchiveError{Message: fmt.Sprintf("cannot open entry %q", f.Name), Cause: err}
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, &InvalidArchiveError{Message: fmt.Sprintf("cannot read entry %q", f.Name), Cause: err}
	}
	if len(content) > MaxEntrySize {
		return nil, &InvalidArchiveError{Message: fmt.Sprintf("entry %q is too large", f.Name)}
	}
	return content, nil
}

// checkPath rejects entry names that could escape the archive root.
func checkPath(name string) error {
	p := NormalizePath(name)
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, ":") {
		return &InvalidArchiveError{Message: fmt.Sprintf("unsafe entry path %q", name)}
	}
	for _, seg := range strings.Split(strings.TrimSuffix(p, "/"), "/") {
		if seg == ".." || seg == "." || seg == "" {
			return &InvalidArchiveError{Message: fmt.Sprintf("unsafe entry path %q", name)}
		}
	}
	return nil
}

// WriteArchive writes entries to a zip archive in the given order. Entry
// timestamps are left zero so equal entries give equal archives.
func WriteArchive(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		if err := checkPath(e.Path); err != nil {
			return nil, err
		}
		name := e.Path
		if e.Dir && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if e.Dir {
			hdr.Method = zip.Store
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("failed to add %q: %w", e.Path, err)
		}
		if !e.Dir {
			if _, err := w.Write(e.Data); err != nil {
				return nil, fmt.Errorf("failed to write %q: %w", e.Path, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}
