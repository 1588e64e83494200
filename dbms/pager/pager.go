package pager

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	PageSize = 4096 // 4 KB — matches OS page size

	// Invalid marks a missing page offset (-1 in the file format).
	Invalid = int32(-1)

	// HeaderSize is the semantic part of the header page:
	// [branching factor (4) | root offset (4)], zero-padded to PageSize.
	HeaderSize = 8
)

// Page is a raw 4 KB block read from or written to disk.
type Page [PageSize]byte

// Pager performs page-granular I/O against a single index file.
// It holds no file handle and no cache: every primitive opens the file,
// does its reads or writes, and closes it again, so the on-disk state is
// the only state that survives between operations.
type Pager struct {
	path string
}

func New(path string) *Pager {
	return &Pager{path: path}
}

func (p *Pager) Path() string { return p.path }

// Format truncates the file and writes a fresh header page recording the
// branching factor and the root offset.
func (p *Pager) Format(b, root int32) error {
	f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("pager: format %s: %w", p.path, err)
	}
	defer f.Close()

	var hdr Page
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(b))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(root))
	if _, err := f.Write(hdr[:]); err != nil {
		return fmt.Errorf("pager: write header: %w", err)
	}
	return nil
}

// ReadHeader returns the branching factor and root offset from the header page.
func (p *Pager) ReadHeader() (b, root int32, err error) {
	f, err := os.Open(p.path)
	if err != nil {
		return 0, 0, fmt.Errorf("pager: open %s: %w", p.path, err)
	}
	defer f.Close()

	var buf [HeaderSize]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return 0, 0, fmt.Errorf("pager: read header: %w", err)
	}
	b = int32(binary.LittleEndian.Uint32(buf[0:4]))
	root = int32(binary.LittleEndian.Uint32(buf[4:8]))
	return b, root, nil
}

// SetRoot rewrites the root-offset field of the header page in place.
func (p *Pager) SetRoot(root int32) error {
	f, err := os.OpenFile(p.path, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("pager: open %s: %w", p.path, err)
	}
	defer f.Close()

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(root))
	if _, err := f.WriteAt(buf[:], 4); err != nil {
		return fmt.Errorf("pager: set root: %w", err)
	}
	return nil
}

// ReadPage returns the page at the given byte offset.
func (p *Pager) ReadPage(off int32) (*Page, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", p.path, err)
	}
	defer f.Close()

	pg := new(Page)
	if _, err := f.ReadAt(pg[:], int64(off)); err != nil {
		return nil, fmt.Errorf("pager: read page at %d: %w", off, err)
	}
	return pg, nil
}

// WritePage overwrites the page at the given byte offset.
func (p *Pager) WritePage(off int32, pg *Page) error {
	f, err := os.OpenFile(p.path, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("pager: open %s: %w", p.path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(pg[:], int64(off)); err != nil {
		return fmt.Errorf("pager: write page at %d: %w", off, err)
	}
	return nil
}

// Allocate appends the page at end-of-file and returns the byte offset it
// was placed at. Allocation is append-only; pages are never reclaimed.
func (p *Pager) Allocate(pg *Page) (int32, error) {
	f, err := os.OpenFile(p.path, os.O_RDWR, 0644)
	if err != nil {
		return Invalid, fmt.Errorf("pager: open %s: %w", p.path, err)
	}
	defer f.Close()

	off, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return Invalid, fmt.Errorf("pager: seek end: %w", err)
	}
	if _, err := f.Write(pg[:]); err != nil {
		return Invalid, fmt.Errorf("pager: append page at %d: %w", off, err)
	}
	return int32(off), nil
}
