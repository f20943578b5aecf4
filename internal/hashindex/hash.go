package hashindex

import "hash/fnv"

// HashInteger hashes an int64 for bucket placement.
func HashInteger(v int64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
	return h.Sum64()
}

// HashString hashes a UTF-8 string for bucket placement.
func HashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// HashNull is the fixed hash constant used for Null values. Null is never
// actually inserted into an index (the table package skips Null cells
// before hashing, see Table.updateIndexesOnInsert), but a deterministic
// value is defined here so callers that hash before checking nullness behave
// consistently rather than hitting the spec's documented Null/Float hashing
// ambiguity.
const HashNull uint64 = 0
