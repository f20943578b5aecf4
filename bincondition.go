package yarrd

import (
	"fmt"
	"strings"

	"github.com/lindeneg/yarrd/internal/xerr"
)

// BinaryCondition is the parsed, uncompiled form of `left OP right`: each
// side is either a literal SqlValue or an Identifier (possibly qualified
// `table.column`).
type BinaryCondition struct {
	Left     SqlValue
	Right    SqlValue
	Operator CmpOperator
}

// Compile resolves each side against tableName/columnNames, turning any
// Identifier into a RowCheckValue column reference and anything else into a
// static value.
func (c BinaryCondition) Compile(tableName string, columnNames []string) (RowCheck, error) {
	left, err := buildRowCheckValue(c.Left, tableName, columnNames)
	if err != nil {
		return RowCheck{}, err
	}
	right, err := buildRowCheckValue(c.Right, tableName, columnNames)
	if err != nil {
		return RowCheck{}, err
	}
	return RowCheck{Operator: c.Operator, Left: left, Right: right}, nil
}

func buildRowCheckValue(v SqlValue, tableName string, columnNames []string) (RowCheckValue, error) {
	if v.Kind != KindIdentifier {
		return staticValue(v), nil
	}
	name := v.Str
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		qualifier, column := name[:dot], name[dot+1:]
		if qualifier != tableName {
			return RowCheckValue{}, fmt.Errorf("identifier %q does not reference table %q: %w", name, tableName, xerr.Value)
		}
		name = column
	}
	for i, col := range columnNames {
		if col == name {
			return tableColumn(i), nil
		}
	}
	return RowCheckValue{}, fmt.Errorf("column %q does not exist: %w", name, &xerr.NotFoundError{Kind: "column", Name: name})
}
