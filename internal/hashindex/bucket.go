// Package hashindex implements the per-column on-disk hash index: fixed
// 512-byte buckets chained through an overflow pointer, grounded on the
// bucket file format described for the storage engine's secondary indexes.
package hashindex

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/lindeneg/yarrd/internal/xerr"
)

const (
	// BucketSize is the fixed on-disk size of one hash bucket, in bytes.
	BucketSize = 512
	// entrySize is 1 presence byte + 8-byte hashed value + 8-byte row id.
	entrySize = 17
	// RowsInBucket leaves one entry's worth of room for the trailing
	// pointer fields.
	RowsInBucket = BucketSize/entrySize - 1
	// primaryCountOffset holds, in bucket 0 only, the little-endian u64
	// count of primary buckets.
	primaryCountOffset = BucketSize - 16
	// overflowPointerOffset holds, in every bucket, the little-endian u64
	// bucket number of its overflow bucket (0 = none).
	overflowPointerOffset = BucketSize - 8
)

// Bucket is one 512-byte page of a hash index file.
type Bucket struct {
	file     *os.File
	number   int64
	bytes    [BucketSize]byte
	Modified bool
}

// OpenBucket loads (or, if it is the next bucket past the end of the file,
// creates) bucket number `number`. Creating bucket 0 of a brand-new file
// also initialises the primary-bucket counter to 1.
func OpenBucket(file *os.File, number int64) (*Bucket, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("hashindex: stat: %w", xerr.IO)
	}
	fileLen := info.Size()
	bucketsPresent := fileLen / BucketSize
	startsAt := number * BucketSize

	switch {
	case number > bucketsPresent:
		return nil, fmt.Errorf("hashindex: unexpected bucket number %d (file holds %d): %w", number, bucketsPresent, xerr.Index)
	case number == bucketsPresent:
		if err := file.Truncate(startsAt + BucketSize); err != nil {
			return nil, fmt.Errorf("hashindex: extend file for bucket %d: %w", number, xerr.IO)
		}
		if fileLen == 0 {
			var countBytes [8]byte
			binary.LittleEndian.PutUint64(countBytes[:], 1)
			if _, err := file.WriteAt(countBytes[:], primaryCountOffset); err != nil {
				return nil, fmt.Errorf("hashindex: init primary bucket count: %w", xerr.IO)
			}
		}
	}

	b := &Bucket{file: file, number: number}
	if _, err := file.ReadAt(b.bytes[:], startsAt); err != nil {
		return nil, fmt.Errorf("hashindex: read bucket %d: %w", number, xerr.IO)
	}
	return b, nil
}

// Number returns this bucket's position in the file.
func (b *Bucket) Number() int64 { return b.number }

func entryOffset(slot int) int { return slot * entrySize }

// IndexRow is one resident (hashedValue, rowID) entry of a bucket.
type IndexRow struct {
	HashedValue uint64
	RowID       int64
}

// AllRows returns every present entry in the bucket.
func (b *Bucket) AllRows() []IndexRow {
	var rows []IndexRow
	for slot := 0; slot < RowsInBucket; slot++ {
		off := entryOffset(slot)
		if b.bytes[off] != 1 {
			continue
		}
		rows = append(rows, IndexRow{
			HashedValue: binary.LittleEndian.Uint64(b.bytes[off+1 : off+9]),
			RowID:       int64(binary.LittleEndian.Uint64(b.bytes[off+9 : off+17])),
		})
	}
	return rows
}

// FindRows returns every row id in this bucket whose entry matches hash h.
func (b *Bucket) FindRows(h uint64) []int64 {
	var ids []int64
	for _, row := range b.AllRows() {
		if row.HashedValue == h {
			ids = append(ids, row.RowID)
		}
	}
	return ids
}

// InsertRow writes a new (h, rowID) entry into the first free slot. Fails if
// the bucket is full.
func (b *Bucket) InsertRow(h uint64, rowID int64) error {
	for slot := 0; slot < RowsInBucket; slot++ {
		off := entryOffset(slot)
		if b.bytes[off] == 1 {
			continue
		}
		b.bytes[off] = 1
		binary.LittleEndian.PutUint64(b.bytes[off+1:off+9], h)
		binary.LittleEndian.PutUint64(b.bytes[off+9:off+17], uint64(rowID))
		b.Modified = true
		return nil
	}
	return fmt.Errorf("hashindex: bucket %d full: %w", b.number, xerr.Index)
}

// DeleteRow clears the first present entry matching rowID.
func (b *Bucket) DeleteRow(rowID int64) bool {
	for slot := 0; slot < RowsInBucket; slot++ {
		off := entryOffset(slot)
		if b.bytes[off] != 1 {
			continue
		}
		if int64(binary.LittleEndian.Uint64(b.bytes[off+9:off+17])) == rowID {
			b.bytes[off] = 0
			b.Modified = true
			return true
		}
	}
	return false
}

// OverflowBucketNumber reads this bucket's overflow pointer; 0 means none.
func (b *Bucket) OverflowBucketNumber() int64 {
	return int64(binary.LittleEndian.Uint64(b.bytes[overflowPointerOffset:BucketSize]))
}

func (b *Bucket) setOverflowBucketNumber(number int64) {
	binary.LittleEndian.PutUint64(b.bytes[overflowPointerOffset:BucketSize], uint64(number))
	b.Modified = true
}

// SpawnOverflowBucket appends a new bucket at the end of the file, points
// this bucket's overflow pointer at it, and returns the new bucket.
func (b *Bucket) SpawnOverflowBucket() (*Bucket, error) {
	info, err := b.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("hashindex: stat: %w", xerr.IO)
	}
	nextNumber := info.Size() / BucketSize
	next, err := OpenBucket(b.file, nextNumber)
	if err != nil {
		return nil, err
	}
	b.setOverflowBucketNumber(nextNumber)
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return next, nil
}

// PrimaryBucketsCount reads the primary-bucket counter. Only valid when
// called on bucket 0.
func (b *Bucket) PrimaryBucketsCount() int64 {
	return int64(binary.LittleEndian.Uint64(b.bytes[primaryCountOffset : primaryCountOffset+8]))
}

// SetPrimaryBucketsCount writes the primary-bucket counter. Only valid when
// called on bucket 0.
func (b *Bucket) SetPrimaryBucketsCount(count int64) {
	binary.LittleEndian.PutUint64(b.bytes[primaryCountOffset:primaryCountOffset+8], uint64(count))
	b.Modified = true
}

// Flush writes the bucket's bytes back to its offset if it has been
// modified.
func (b *Bucket) Flush() error {
	if !b.Modified {
		return nil
	}
	if _, err := b.file.WriteAt(b.bytes[:], b.number*BucketSize); err != nil {
		return fmt.Errorf("hashindex: write bucket %d: %w", b.number, xerr.IO)
	}
	b.Modified = false
	return nil
}

// Chain walks the overflow chain starting at (and including) the bucket
// numbered start, calling fn on each until the chain ends or fn returns
// false.
func Chain(file *os.File, start int64, fn func(*Bucket) (keepGoing bool, err error)) error {
	number := start
	for {
		bucket, err := OpenBucket(file, number)
		if err != nil {
			return err
		}
		keepGoing, err := fn(bucket)
		if err != nil {
			return err
		}
		if err := bucket.Flush(); err != nil {
			return err
		}
		if !keepGoing {
			return nil
		}
		next := bucket.OverflowBucketNumber()
		if next == 0 {
			return nil
		}
		number = next
	}
}
