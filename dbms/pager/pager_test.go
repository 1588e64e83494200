package pager

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestPager(t *testing.T) *Pager {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "test.idx"))
}

func TestFormatAndReadHeader(t *testing.T) {
	p := newTestPager(t)
	if err := p.Format(4, PageSize); err != nil {
		t.Fatalf("Format: %v", err)
	}

	b, root, err := p.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if b != 4 || root != PageSize {
		t.Fatalf("header = (%d, %d), want (4, %d)", b, root, PageSize)
	}

	info, err := os.Stat(p.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != PageSize {
		t.Fatalf("file size = %d, want one header page (%d)", info.Size(), PageSize)
	}
}

func TestFormatTruncates(t *testing.T) {
	p := newTestPager(t)
	if err := p.Format(4, PageSize); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if _, err := p.Allocate(new(Page)); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := p.Format(7, PageSize); err != nil {
		t.Fatalf("re-Format: %v", err)
	}

	info, err := os.Stat(p.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != PageSize {
		t.Fatalf("file size after re-format = %d, want %d", info.Size(), PageSize)
	}
	b, _, err := p.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if b != 7 {
		t.Fatalf("branching factor = %d, want 7", b)
	}
}

func TestSetRoot(t *testing.T) {
	p := newTestPager(t)
	if err := p.Format(4, PageSize); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if err := p.SetRoot(3 * PageSize); err != nil {
		t.Fatalf("SetRoot: %v", err)
	}

	b, root, err := p.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if b != 4 {
		t.Fatalf("SetRoot clobbered branching factor: got %d", b)
	}
	if root != 3*PageSize {
		t.Fatalf("root = %d, want %d", root, 3*PageSize)
	}
}

func TestAllocateAppends(t *testing.T) {
	p := newTestPager(t)
	if err := p.Format(4, PageSize); err != nil {
		t.Fatalf("Format: %v", err)
	}

	// Offsets are prior end-of-file: page-size multiples in order.
	for i := 1; i <= 3; i++ {
		off, err := p.Allocate(new(Page))
		if err != nil {
			t.Fatalf("Allocate %d: %v", i, err)
		}
		if off != int32(i*PageSize) {
			t.Fatalf("Allocate %d: offset = %d, want %d", i, off, i*PageSize)
		}
	}
}

func TestReadWritePage(t *testing.T) {
	p := newTestPager(t)
	if err := p.Format(4, PageSize); err != nil {
		t.Fatalf("Format: %v", err)
	}

	var pg Page
	for i := range pg {
		pg[i] = byte(i % 251)
	}
	off, err := p.Allocate(&pg)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	got, err := p.ReadPage(off)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if *got != pg {
		t.Fatal("ReadPage returned different bytes than allocated")
	}

	pg[0] = 0xAB
	if err := p.WritePage(off, &pg); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	got, err = p.ReadPage(off)
	if err != nil {
		t.Fatalf("ReadPage after overwrite: %v", err)
	}
	if got[0] != 0xAB {
		t.Fatalf("page not overwritten in place: byte 0 = %#x", got[0])
	}
}

func TestReadPastEOF(t *testing.T) {
	p := newTestPager(t)
	if err := p.Format(4, PageSize); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if _, err := p.ReadPage(10 * PageSize); err == nil {
		t.Fatal("ReadPage past EOF succeeded, want error")
	}
}
