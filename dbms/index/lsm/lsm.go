// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the disk-based
// B+ tree engine.
package lsm

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/btree-query-bench/bpidx/dbms/index"
)

var _ index.Index = (*LSM)(nil)

type LSM struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string) (*LSM, error) {
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
		// Keep extra memtables so one can flush while another is active.
		MemTableStopWritesThreshold: 4,
		// L0 compaction trigger.
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("lsm: open: %w", err)
	}
	return &LSM{db: db}, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

// Insert inserts or updates the value for key.
func (l *LSM) Insert(key, value int32) error {
	return l.db.Set(encodeKey(key), encodeValue(value), pebble.NoSync)
}

// Search retrieves the value for key.
func (l *LSM) Search(key int32) (int32, bool, error) {
	val, closer, err := l.db.Get(encodeKey(key))
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lsm: get: %w", err)
	}
	defer closer.Close()
	if len(val) != 4 {
		return 0, false, fmt.Errorf("lsm: unexpected value length %d", len(val))
	}
	return int32(binary.LittleEndian.Uint32(val)), true, nil
}

// Delete removes the key from the store.
func (l *LSM) Delete(key int32) (bool, error) {
	_, found, err := l.Search(key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := l.db.Delete(encodeKey(key), pebble.NoSync); err != nil {
		return false, fmt.Errorf("lsm: delete: %w", err)
	}
	return true, nil
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end int32) (index.Iterator, error) {
	iterOpts := &pebble.IterOptions{
		LowerBound: encodeKey(start),
		UpperBound: encodeKeyExclusive(end),
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, fmt.Errorf("lsm: range: %w", err)
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

// encodeKey encodes an int32 as a big-endian 4-byte slice with the sign bit
// flipped, so that bytewise order (which Pebble relies on) matches signed
// integer order.
func encodeKey(k int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(k)^(1<<31))
	return b
}

// encodeKeyExclusive returns the exclusive upper bound for Pebble's
// UpperBound option (our interface is inclusive). Appending a zero byte
// covers end == MaxInt32, where adding one would wrap.
func encodeKeyExclusive(k int32) []byte {
	return append(encodeKey(k), 0)
}

func encodeValue(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int32
	val   int32
	err   error
}

func (it *rangeIterator) Next() bool {
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}
	k := it.iter.Key()
	if len(k) != 4 {
		it.err = fmt.Errorf("lsm: unexpected key length %d", len(k))
		return false
	}
	it.key = int32(binary.BigEndian.Uint32(k) ^ (1 << 31))
	v := it.iter.Value()
	if len(v) != 4 {
		it.err = fmt.Errorf("lsm: unexpected value length %d", len(v))
		return false
	}
	it.val = int32(binary.LittleEndian.Uint32(v))
	return true
}

func (it *rangeIterator) Key() int32   { return it.key }
func (it *rangeIterator) Value() int32 { return it.val }
func (it *rangeIterator) Error() error { return it.err }
func (it *rangeIterator) Close() error { return it.iter.Close() }
