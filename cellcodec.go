package yarrd

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lindeneg/yarrd/internal/xerr"
)

// StringCellWidth is the fixed on-disk width of a String cell: one length
// byte followed by up to 255 content bytes.
const StringCellWidth = 256

// CellWidth returns the fixed encoded width of a column type: 8 bytes for
// Integer and Float, 256 bytes for String.
func CellWidth(t ColumnType) int {
	switch t {
	case TypeInteger, TypeFloat:
		return 8
	case TypeString:
		return StringCellWidth
	default:
		return 0
	}
}

// EncodeCell packs v into exactly CellWidth(t) bytes. A Null value encodes
// as all zeros; callers are expected to additionally track nullness in the
// row's bitmask, since an all-zero Integer cell is indistinguishable from a
// genuine zero otherwise.
func EncodeCell(t ColumnType, v SqlValue) ([]byte, error) {
	buf := make([]byte, CellWidth(t))
	if v.IsNull() {
		return buf, nil
	}
	switch t {
	case TypeInteger:
		if v.Kind != KindInteger {
			return nil, fmt.Errorf("encode integer cell: %w", &xerr.ValueError{Type: "int", Got: v})
		}
		binary.LittleEndian.PutUint64(buf, uint64(v.Integer))
		return buf, nil
	case TypeFloat:
		if v.Kind != KindFloat {
			return nil, fmt.Errorf("encode float cell: %w", &xerr.ValueError{Type: "float", Got: v})
		}
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.Float))
		return buf, nil
	case TypeString:
		if v.Kind != KindString && v.Kind != KindIdentifier {
			return nil, fmt.Errorf("encode string cell: %w", &xerr.ValueError{Type: "string", Got: v})
		}
		if len(v.Str) > 255 {
			return nil, fmt.Errorf("encode string cell: string of %d bytes exceeds 255: %w", len(v.Str), xerr.Serde)
		}
		buf[0] = byte(len(v.Str))
		copy(buf[1:1+len(v.Str)], v.Str)
		return buf, nil
	default:
		return nil, fmt.Errorf("encode cell: unknown column type: %w", xerr.Serde)
	}
}

// DecodeCell unpacks an SqlValue of kind t from exactly CellWidth(t) bytes.
// When isNull is true the bytes are not inspected and Null is returned.
func DecodeCell(t ColumnType, bytes []byte, isNull bool) (SqlValue, error) {
	if isNull {
		return Null, nil
	}
	if len(bytes) != CellWidth(t) {
		return SqlValue{}, fmt.Errorf("decode cell: expected %d bytes, got %d: %w", CellWidth(t), len(bytes), xerr.Serde)
	}
	switch t {
	case TypeInteger:
		return NewInteger(int64(binary.LittleEndian.Uint64(bytes))), nil
	case TypeFloat:
		return NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(bytes))), nil
	case TypeString:
		l := int(bytes[0])
		if l > 255 || 1+l > len(bytes) {
			return SqlValue{}, fmt.Errorf("decode cell: corrupt string length %d: %w", l, xerr.Serde)
		}
		return NewString(string(bytes[1 : 1+l])), nil
	default:
		return SqlValue{}, fmt.Errorf("decode cell: unknown column type: %w", xerr.Serde)
	}
}
