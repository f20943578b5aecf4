package yarrd

import "fmt"

// ValueKind tags the variant held by an SqlValue.
type ValueKind int

const (
	KindInteger ValueKind = iota
	KindFloat
	KindString
	KindIdentifier
	KindNull
)

func (k ValueKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindIdentifier:
		return "identifier"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// SqlValue is a tagged variant over the literal values the engine can store
// or compare: Integer, Float, String, Identifier (an unresolved column
// reference prior to compilation), and Null.
type SqlValue struct {
	Kind    ValueKind
	Integer int64
	Float   float64
	Str     string
}

// Null is the canonical null SqlValue.
var Null = SqlValue{Kind: KindNull}

// NewInteger builds an Integer SqlValue.
func NewInteger(v int64) SqlValue { return SqlValue{Kind: KindInteger, Integer: v} }

// NewFloat builds a Float SqlValue.
func NewFloat(v float64) SqlValue { return SqlValue{Kind: KindFloat, Float: v} }

// NewString builds a String SqlValue.
func NewString(v string) SqlValue { return SqlValue{Kind: KindString, Str: v} }

// NewIdentifier builds an Identifier SqlValue (an unresolved name, possibly
// qualified table.column, prior to BinaryCondition compilation).
func NewIdentifier(v string) SqlValue { return SqlValue{Kind: KindIdentifier, Str: v} }

// IsNull reports whether v is the Null variant.
func (v SqlValue) IsNull() bool { return v.Kind == KindNull }

// String implements fmt.Stringer so SqlValue prints sensibly in result
// tables and log messages.
func (v SqlValue) String() string {
	switch v.Kind {
	case KindInteger:
		return fmt.Sprintf("%d", v.Integer)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString, KindIdentifier:
		return v.Str
	case KindNull:
		return "NULL"
	default:
		return "<invalid>"
	}
}

// ColumnType is the declared type of a table column.
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeFloat
	TypeString
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// MatchesValue reports whether v is compatible with column type t: either a
// value of the corresponding kind, or Null.
func (t ColumnType) MatchesValue(v SqlValue) bool {
	if v.IsNull() {
		return true
	}
	switch t {
	case TypeInteger:
		return v.Kind == KindInteger
	case TypeFloat:
		return v.Kind == KindFloat
	case TypeString:
		return v.Kind == KindString || v.Kind == KindIdentifier
	default:
		return false
	}
}

// ParseColumnType parses the lowercase schema-grammar spelling of a column
// type (int, float, string).
func ParseColumnType(s string) (ColumnType, bool) {
	switch s {
	case "int":
		return TypeInteger, true
	case "float":
		return TypeFloat, true
	case "string":
		return TypeString, true
	default:
		return 0, false
	}
}
