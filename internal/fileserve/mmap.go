//go:build linux

// Package fileserve resolves a request path against the static root,
// stats it, and memory-maps the file read-only so its bytes become the
// second slot of a connection's gather-write descriptor with no copy
// into user space. Region.Close unmaps explicitly rather than relying on
// a finalizer, since a connection's response lifetime is short and
// known.
package fileserve

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Outcome classifies how Stat resolved a path; each outcome maps onto an
// HTTP status (NotFound and IsDirectory both become 404).
type Outcome int

const (
	OK Outcome = iota
	NotFound
	Forbidden
	IsDirectory
	StatError
)

// Info is what the resolver learned about a path before deciding whether
// to map it.
type Info struct {
	Outcome Outcome
	Size    int64
	ModTime time.Time
	Mode    os.FileMode
}

// Stat resolves root+path and classifies the result.
func Stat(root, path string) (string, Info) {
	full := filepath.Join(root, filepath.Clean("/"+path))
	fi, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return full, Info{Outcome: NotFound}
		}
		return full, Info{Outcome: StatError}
	}
	if fi.IsDir() {
		// Directories resolve as 404 rather than 403/301 — this avoids
		// leaking directory listings and treats any non-regular-file
		// resolve as a miss.
		return full, Info{Outcome: IsDirectory}
	}
	if fi.Mode().Perm()&0o004 == 0 {
		return full, Info{Outcome: Forbidden}
	}
	return full, Info{Outcome: OK, Size: fi.Size(), ModTime: fi.ModTime(), Mode: fi.Mode()}
}

// Region is an owned, read-only private mapping of a file's full contents.
// Close unmaps; the connection that opened one owns it for the duration of
// a single response.
type Region struct {
	data []byte
}

// Map memory-maps the full contents of path, read-only, MAP_PRIVATE.
func Map(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fileserve: open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("fileserve: stat %s: %w", path, err)
	}
	size := fi.Size()
	if size == 0 {
		return &Region{data: nil}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("fileserve: mmap %s: %w", path, err)
	}
	return &Region{data: data}, nil
}

// Bytes returns the mapped region.
func (r *Region) Bytes() []byte { return r.data }

// Len returns the mapped region's length.
func (r *Region) Len() int { return len(r.data) }

// Close unmaps the region. Idempotent and safe to call more than once.
func (r *Region) Close() error {
	if r == nil || r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// ContentType returns the MIME type for filename's extension, falling
// back to text/html for unknown or extensionless names.
func ContentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".html", ".htm":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".ico":
		return "image/x-icon"
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".gz":
		return "application/gzip"
	case ".txt":
		return "text/plain"
	default:
		return "text/html"
	}
}
