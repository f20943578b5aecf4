package yarrd

import "fmt"

// bitmaskSize returns the number of bytes needed to hold one presence bit
// per column.
func bitmaskSize(columnCount int) int {
	return (columnCount + 7) / 8
}

// RowSize returns the fixed encoded width R of a row over the given column
// types: the null bitmask prefix plus the sum of each column's cell width.
func RowSize(types []ColumnType) int {
	size := bitmaskSize(len(types))
	for _, t := range types {
		size += CellWidth(t)
	}
	return size
}

// Row is a fixed-width record: a null bitmask of ceil(C/8) bytes followed by
// C fixed-width cells in column order.
type Row struct {
	Bytes []byte
}

// NewRow builds an all-null row sized for the given column types.
func NewRow(types []ColumnType) Row {
	r := Row{Bytes: make([]byte, RowSize(types))}
	mask := bitmaskSize(len(types))
	for i := range mask {
		r.Bytes[i] = 0xff
	}
	return r
}

// RowFromBytes wraps an existing byte buffer (e.g. one read from a page
// slot) as a Row without copying.
func RowFromBytes(b []byte) Row { return Row{Bytes: b} }

func (r Row) cellOffset(types []ColumnType, i int) int {
	off := bitmaskSize(len(types))
	for j := 0; j < i; j++ {
		off += CellWidth(types[j])
	}
	return off
}

// CellIsNull reports whether column i's presence bit is set (meaning: the
// value is Null).
func (r Row) CellIsNull(i int) bool {
	byteIdx, bit := i/8, uint(i%8)
	return r.Bytes[byteIdx]&(1<<bit) != 0
}

func (r Row) setNullBit(i int, isNull bool) {
	byteIdx, bit := i/8, uint(i%8)
	if isNull {
		r.Bytes[byteIdx] |= 1 << bit
	} else {
		r.Bytes[byteIdx] &^= 1 << bit
	}
}

// GetCell decodes column i's value out of the row, given the table's column
// types.
func (r Row) GetCell(types []ColumnType, i int) (SqlValue, error) {
	if i < 0 || i >= len(types) {
		return SqlValue{}, fmt.Errorf("row: column index %d out of range", i)
	}
	isNull := r.CellIsNull(i)
	off := r.cellOffset(types, i)
	w := CellWidth(types[i])
	return DecodeCell(types[i], r.Bytes[off:off+w], isNull)
}

// SetCell encodes v into column i's cell and updates the null bit
// accordingly.
func (r Row) SetCell(types []ColumnType, i int, v SqlValue) error {
	if i < 0 || i >= len(types) {
		return fmt.Errorf("row: column index %d out of range", i)
	}
	encoded, err := EncodeCell(types[i], v)
	if err != nil {
		return err
	}
	off := r.cellOffset(types, i)
	w := CellWidth(types[i])
	copy(r.Bytes[off:off+w], encoded)
	r.setNullBit(i, v.IsNull())
	return nil
}

// AsBytes returns the row's raw backing buffer.
func (r Row) AsBytes() []byte { return r.Bytes }
