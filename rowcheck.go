package yarrd

import "fmt"

// RowCheckValue is one side of a compiled RowCheck: either a reference into
// the row being evaluated, or a static literal.
type RowCheckValue struct {
	IsColumn bool
	Column   int
	Static   SqlValue
}

func tableColumn(i int) RowCheckValue { return RowCheckValue{IsColumn: true, Column: i} }
func staticValue(v SqlValue) RowCheckValue { return RowCheckValue{Static: v} }

func (v RowCheckValue) resolve(row Row, types []ColumnType) (SqlValue, error) {
	if v.IsColumn {
		return row.GetCell(types, v.Column)
	}
	return v.Static, nil
}

// RowCheck is a compiled `left OP right` predicate, ready to evaluate
// against a row without re-parsing or re-resolving identifiers.
type RowCheck struct {
	Operator CmpOperator
	Left     RowCheckValue
	Right    RowCheckValue
}

// DummyRowCheck is the always-true predicate (`1 = 1`) used when a
// statement carries no WHERE clause.
func DummyRowCheck() RowCheck {
	return RowCheck{Operator: OpEquals, Left: staticValue(NewInteger(1)), Right: staticValue(NewInteger(1))}
}

// Matches resolves both sides against row and applies the operator.
func (c RowCheck) Matches(row Row, types []ColumnType) (bool, error) {
	left, err := c.Left.resolve(row, types)
	if err != nil {
		return false, fmt.Errorf("row check: resolve left operand: %w", err)
	}
	right, err := c.Right.resolve(row, types)
	if err != nil {
		return false, fmt.Errorf("row check: resolve right operand: %w", err)
	}
	return c.Operator.Apply(left, right)
}

// IsColumnEqStatic reports whether this check is an equality test between
// exactly one column reference and one static value, and if so which
// column and value. The planner uses this to decide whether an index scan
// is available.
func (c RowCheck) IsColumnEqStatic() (column int, value SqlValue, ok bool) {
	if c.Operator != OpEquals {
		return 0, SqlValue{}, false
	}
	switch {
	case c.Left.IsColumn && !c.Right.IsColumn:
		return c.Left.Column, c.Right.Static, true
	case c.Right.IsColumn && !c.Left.IsColumn:
		return c.Right.Column, c.Left.Static, true
	default:
		return 0, SqlValue{}, false
	}
}
