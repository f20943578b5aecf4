package hashindex

import (
	"fmt"
	"os"

	"github.com/lindeneg/yarrd/internal/xerr"
)

// Index is a single on-disk hash index file for one (table, column) pair.
// It operates purely on pre-hashed uint64 keys and int64 row ids; the
// caller (the table package) is responsible for computing the hash of an
// SqlValue via HashInteger/HashString before calling in.
type Index struct {
	file *os.File
	path string
}

// Open opens the index file at path, creating it (with one empty primary
// bucket) if it does not already exist.
func Open(path string) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("hashindex: open %s: %w", path, xerr.IO)
	}
	idx := &Index{file: f, path: path}
	if _, err := Open0(f); err != nil {
		return nil, err
	}
	return idx, nil
}

// Open0 ensures bucket 0 exists, initialising the file's primary-bucket
// counter to 1 the first time it's created.
func Open0(f *os.File) (*Bucket, error) {
	return OpenBucket(f, 0)
}

// Path returns the backing file path.
func (idx *Index) Path() string { return idx.path }

// Close closes the underlying file.
func (idx *Index) Close() error {
	if err := idx.file.Close(); err != nil {
		return fmt.Errorf("hashindex: close %s: %w", idx.path, xerr.IO)
	}
	return nil
}

func (idx *Index) primaryBucketsCount() (int64, error) {
	b, err := OpenBucket(idx.file, 0)
	if err != nil {
		return 0, err
	}
	return b.PrimaryBucketsCount(), nil
}

func (idx *Index) bucketForHash(h uint64) (int64, error) {
	count, err := idx.primaryBucketsCount()
	if err != nil {
		return 0, err
	}
	if count <= 0 {
		count = 1
	}
	return int64(h % uint64(count)), nil
}

// FindRowIDs returns every row id whose entry in the chain starting at h's
// primary bucket matches h exactly. Callers must still verify the actual
// column value equals the value that produced h, since distinct values can
// share a hash.
func (idx *Index) FindRowIDs(h uint64) ([]int64, error) {
	start, err := idx.bucketForHash(h)
	if err != nil {
		return nil, err
	}
	var ids []int64
	err = Chain(idx.file, start, func(b *Bucket) (bool, error) {
		ids = append(ids, b.FindRows(h)...)
		return true, nil
	})
	return ids, err
}

// InsertRow inserts (h, rowID) into the first bucket in h's chain with a
// free slot, spawning a new overflow bucket on the chain tail if every
// bucket in the chain is full.
func (idx *Index) InsertRow(h uint64, rowID int64) error {
	start, err := idx.bucketForHash(h)
	if err != nil {
		return err
	}
	var tail *Bucket
	done := false
	err = Chain(idx.file, start, func(b *Bucket) (bool, error) {
		if insErr := b.InsertRow(h, rowID); insErr == nil {
			done = true
			return false, nil
		}
		tail = b
		return true, nil
	})
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	overflow, err := tail.SpawnOverflowBucket()
	if err != nil {
		return err
	}
	if err := overflow.InsertRow(h, rowID); err != nil {
		return err
	}
	return overflow.Flush()
}

// DeleteRow removes the entry (h, rowID) from h's chain. It is not an error
// for the entry to be missing.
func (idx *Index) DeleteRow(h uint64, rowID int64) error {
	start, err := idx.bucketForHash(h)
	if err != nil {
		return err
	}
	return Chain(idx.file, start, func(b *Bucket) (bool, error) {
		b.DeleteRow(rowID)
		return true, nil
	})
}

// UpdateRow moves rowID's indexed entry from oldHash's chain to newHash's
// chain.
func (idx *Index) UpdateRow(oldHash, newHash uint64, rowID int64) error {
	if err := idx.DeleteRow(oldHash, rowID); err != nil {
		return err
	}
	return idx.InsertRow(newHash, rowID)
}

// Clear truncates the index file and reinitialises it with a single empty
// primary bucket.
func (idx *Index) Clear() error {
	if err := idx.file.Truncate(0); err != nil {
		return fmt.Errorf("hashindex: clear %s: %w", idx.path, xerr.IO)
	}
	_, err := OpenBucket(idx.file, 0)
	return err
}

// SetExpectedRowCount recomputes and persists the primary-bucket count as
// max(1, ceil(rowCount/RowsInBucket)). Called by reindex, never on a plain
// insert: expansion of the primary bucket count is deferred to reindex, so
// that a single insert never has to rehash every resident entry.
func (idx *Index) SetExpectedRowCount(rowCount int64) error {
	count := rowCount / int64(RowsInBucket)
	if rowCount%int64(RowsInBucket) != 0 {
		count++
	}
	if count < 1 {
		count = 1
	}
	b, err := OpenBucket(idx.file, 0)
	if err != nil {
		return err
	}
	b.SetPrimaryBucketsCount(count)
	if err := b.Flush(); err != nil {
		return err
	}
	// allocate every primary bucket up front, so no overflow bucket spawned
	// later can take a number below count.
	for n := int64(1); n < count; n++ {
		if _, err := OpenBucket(idx.file, n); err != nil {
			return err
		}
	}
	return nil
}
