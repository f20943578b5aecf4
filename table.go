package yarrd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/lindeneg/yarrd/internal/hashindex"
	"github.com/lindeneg/yarrd/internal/pager"
	"github.com/lindeneg/yarrd/internal/xerr"
)

// compiledCheck pairs a Check constraint's compiled RowCheck with the
// column it was declared on, so DropColumnConstraint can find it again.
type compiledCheck struct {
	column    int
	condition BinaryCondition
	check     RowCheck
}

// Table owns one table's on-disk row store, its per-column hash indexes,
// and its compiled constraints.
type Table struct {
	dir     string
	Name    string
	Columns []Column

	RowCount int64

	notNull    []bool
	defaults   []SqlValue
	checks     []compiledCheck
	indexes    []*hashindex.Index
	indexPaths []string
	indexNames []string

	pager *pager.Pager
	log   *slog.Logger
}

// IndexSpec names one column's hash index together with the identifier
// users address it by in CREATE INDEX/DROP INDEX, so a schema reload can
// reconstruct the index-by-name lookup DropIndex relies on.
type IndexSpec struct {
	Column string
	Name   string
}

// FieldAssignment is one `column = value` pair of an UPDATE statement.
type FieldAssignment struct {
	Column string
	Value  SqlValue
}

func (t *Table) columnTypes() []ColumnType {
	types := make([]ColumnType, len(t.Columns))
	for i, c := range t.Columns {
		types[i] = c.Type
	}
	return types
}

func (t *Table) columnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) columnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q does not exist on table %q: %w", name, t.Name, &xerr.NotFoundError{Kind: "column", Name: name})
}

func tablePath(dir, name string) string { return filepath.Join(dir, name+".tbl") }

func indexPath(dir, table, column string) string {
	return filepath.Join(dir, table+"."+column+".idx")
}

// OpenTable constructs (or reopens) a table: it opens the pager for its row
// file and, for every entry in indexes, opens (or creates) that column's
// hash index file under its given name. cacheCapacity is forwarded to the
// pager's page cache; <= 0 uses pager.DefaultCacheCapacity.
func OpenTable(dir, name string, rowCount int64, columns []Column, indexes []IndexSpec, cacheCapacity int, log *slog.Logger) (*Table, error) {
	if log == nil {
		log = slog.Default()
	}
	t := &Table{
		dir:        dir,
		Name:       name,
		Columns:    columns,
		RowCount:   rowCount,
		notNull:    make([]bool, len(columns)),
		defaults:   make([]SqlValue, len(columns)),
		indexes:    make([]*hashindex.Index, len(columns)),
		indexPaths: make([]string, len(columns)),
		indexNames: make([]string, len(columns)),
		log:        log,
	}
	for i := range t.defaults {
		t.defaults[i] = Null
	}

	for i, col := range columns {
		haveDefault := false
		for _, c := range col.Constraints {
			switch c.Kind {
			case ConstraintNotNull:
				t.notNull[i] = true
			case ConstraintDefault:
				if haveDefault {
					return nil, fmt.Errorf("column %q: %w", col.Name, &xerr.ConflictError{Kind: "default", Name: col.Name})
				}
				if !col.Type.MatchesValue(c.Default) {
					return nil, fmt.Errorf("column %q: default value kind does not match column type: %w", col.Name, xerr.Value)
				}
				t.defaults[i] = c.Default
				haveDefault = true
			case ConstraintCheck:
				compiled, err := c.Check.Compile(name, t.columnNames())
				if err != nil {
					return nil, fmt.Errorf("column %q: compile check: %w", col.Name, err)
				}
				t.checks = append(t.checks, compiledCheck{column: i, condition: c.Check, check: compiled})
			}
		}
	}

	rowSize := RowSize(t.columnTypes())
	p, err := pager.Open(tablePath(dir, name), rowSize, cacheCapacity, log)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}
	t.pager = p

	for _, spec := range indexes {
		idx, err := t.columnIndex(spec.Column)
		if err != nil {
			return nil, err
		}
		path := indexPath(dir, name, spec.Column)
		hi, err := hashindex.Open(path)
		if err != nil {
			return nil, fmt.Errorf("table %q: open index for %q: %w", name, spec.Column, err)
		}
		t.indexes[idx] = hi
		t.indexPaths[idx] = path
		t.indexNames[idx] = spec.Name
	}
	return t, nil
}

// IndexedColumnNames returns the names of columns that currently carry a
// hash index.
func (t *Table) IndexedColumnNames() []string {
	var names []string
	for i, idx := range t.indexes {
		if idx != nil {
			names = append(names, t.Columns[i].Name)
		}
	}
	return names
}

// IndexSpecs returns every currently indexed column paired with the name it
// was created under, for persisting into the schema file.
func (t *Table) IndexSpecs() []IndexSpec {
	var specs []IndexSpec
	for i, idx := range t.indexes {
		if idx != nil {
			specs = append(specs, IndexSpec{Column: t.Columns[i].Name, Name: t.indexNames[i]})
		}
	}
	return specs
}

// columnByIndexName resolves the column index carrying the hash index
// declared under name.
func (t *Table) columnByIndexName(name string) (int, error) {
	for i, idx := range t.indexes {
		if idx != nil && t.indexNames[i] == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("index %q does not exist on table %q: %w", name, t.Name, &xerr.NotFoundError{Kind: "index", Name: name})
}

func (t *Table) hashValue(v SqlValue) (uint64, error) {
	switch v.Kind {
	case KindInteger:
		return hashindex.HashInteger(v.Integer), nil
	case KindString, KindIdentifier:
		return hashindex.HashString(v.Str), nil
	default:
		return 0, fmt.Errorf("cannot index value of kind %s: %w", v.Kind, xerr.Index)
	}
}

func (t *Table) validateConstraints(row Row) error {
	types := t.columnTypes()
	for i, col := range t.Columns {
		if t.notNull[i] && row.CellIsNull(i) {
			return fmt.Errorf("column %q: %w", col.Name, &xerr.ConstraintError{Table: t.Name, Column: col.Name, Reason: "not null"})
		}
	}
	for _, c := range t.checks {
		ok, err := c.check.Matches(row, types)
		if err != nil {
			return fmt.Errorf("table %q: evaluate check: %w", t.Name, err)
		}
		if !ok {
			return fmt.Errorf("column %q: %w", t.Columns[c.column].Name, &xerr.ConstraintError{Table: t.Name, Column: t.Columns[c.column].Name, Reason: "check violated"})
		}
	}
	return nil
}

// compileWhere compiles an optional BinaryCondition against this table, or
// returns the dummy (always-true) predicate when where is nil.
func (t *Table) compileWhere(where *BinaryCondition) (RowCheck, error) {
	if where == nil {
		return DummyRowCheck(), nil
	}
	return where.Compile(t.Name, t.columnNames())
}

// scan dispatches to an index scan (when the compiled predicate is a
// column = static equality test over an indexed column) or a sequential
// scan, then filters every candidate through the predicate before handing
// it to visit. The predicate re-verifies equality on index hits, guarding
// against hash collisions.
func (t *Table) scan(check RowCheck, visit func(rowID int64, row Row) error) error {
	types := t.columnTypes()
	filterAndVisit := func(rowID int64, row Row) error {
		ok, err := check.Matches(row, types)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return visit(rowID, row)
	}

	if col, val, ok := check.IsColumnEqStatic(); ok && t.indexes[col] != nil {
		h, err := t.hashValue(val)
		if err != nil {
			return err
		}
		ids, err := t.indexes[col].FindRowIDs(h)
		if err != nil {
			return fmt.Errorf("table %q: index scan: %w", t.Name, err)
		}
		for _, id := range ids {
			raw, present, err := t.pager.GetRow(id)
			if err != nil {
				return err
			}
			if !present {
				continue
			}
			if err := filterAndVisit(id, RowFromBytes(raw)); err != nil {
				return err
			}
		}
		return nil
	}

	maxRows, err := t.pager.MaxRows()
	if err != nil {
		return err
	}
	for id := int64(0); id < maxRows; id++ {
		raw, present, err := t.pager.GetRow(id)
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		if err := filterAndVisit(id, RowFromBytes(raw)); err != nil {
			return err
		}
	}
	return nil
}

// Select resolves columnNames (nil/empty means every column, in
// declaration order) and streams every row matching where into a
// QueryResult.
func (t *Table) Select(columnNames []string, where *BinaryCondition) (*QueryResult, error) {
	selected := columnNames
	if len(selected) == 0 {
		selected = t.columnNames()
	}
	indices := make([]int, len(selected))
	types := make([]ColumnType, len(selected))
	for i, name := range selected {
		idx, err := t.columnIndex(name)
		if err != nil {
			return nil, err
		}
		indices[i] = idx
		types[i] = t.Columns[idx].Type
	}

	check, err := t.compileWhere(where)
	if err != nil {
		return nil, err
	}
	result := &QueryResult{ColumnNames: selected, ColumnTypes: types}
	err = t.scan(check, func(rowID int64, row Row) error {
		values := make([]SqlValue, len(indices))
		for i, idx := range indices {
			v, err := row.GetCell(t.columnTypes(), idx)
			if err != nil {
				return err
			}
			values[i] = v
		}
		result.Rows = append(result.Rows, values)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("table %q: select: %w", t.Name, err)
	}
	return result, nil
}

// Insert resolves names (nil/empty means every column in declaration
// order) against values, applies declared defaults to unspecified columns,
// validates constraints, and persists the new row, maintaining every
// affected hash index.
func (t *Table) Insert(names []string, values []SqlValue) (int64, error) {
	targetNames := names
	if len(targetNames) == 0 {
		targetNames = t.columnNames()
	}
	if len(targetNames) != len(values) {
		return 0, fmt.Errorf("table %q: %d columns but %d values: %w", t.Name, len(targetNames), len(values), xerr.Value)
	}
	indices := make([]int, len(targetNames))
	for i, name := range targetNames {
		idx, err := t.columnIndex(name)
		if err != nil {
			return 0, err
		}
		if !t.Columns[idx].Type.MatchesValue(values[i]) {
			return 0, fmt.Errorf("table %q: %w", t.Name, &xerr.ValueError{Column: name, Type: t.Columns[idx].Type.String(), Got: values[i]})
		}
		indices[i] = idx
	}

	types := t.columnTypes()
	row := NewRow(types)
	for i, d := range t.defaults {
		if err := row.SetCell(types, i, d); err != nil {
			return 0, err
		}
	}
	for i, idx := range indices {
		if err := row.SetCell(types, idx, values[i]); err != nil {
			return 0, err
		}
	}

	if err := t.validateConstraints(row); err != nil {
		return 0, err
	}

	rowID, err := t.pager.InsertRow(row.AsBytes())
	if err != nil {
		return 0, fmt.Errorf("table %q: insert: %w", t.Name, err)
	}
	t.RowCount++

	if err := t.updateIndexesOnInsert(row, rowID); err != nil {
		return 0, err
	}
	return rowID, nil
}

func (t *Table) updateIndexesOnInsert(row Row, rowID int64) error {
	types := t.columnTypes()
	for i, idx := range t.indexes {
		if idx == nil {
			continue
		}
		v, err := row.GetCell(types, i)
		if err != nil {
			return err
		}
		if v.IsNull() {
			continue
		}
		h, err := t.hashValue(v)
		if err != nil {
			return err
		}
		if err := idx.InsertRow(h, rowID); err != nil {
			return fmt.Errorf("table %q: update index on insert: %w", t.Name, err)
		}
	}
	return nil
}

// Update resolves assignments, streams every row matching where, and for
// each row: captures the old values of changed columns, applies the new
// values, validates constraints, updates each affected index, and rewrites
// the row. A per-row failure aborts the statement; rows already rewritten
// remain persisted.
func (t *Table) Update(assignments []FieldAssignment, where *BinaryCondition) error {
	indices := make([]int, len(assignments))
	for i, a := range assignments {
		idx, err := t.columnIndex(a.Column)
		if err != nil {
			return err
		}
		if !t.Columns[idx].Type.MatchesValue(a.Value) {
			return fmt.Errorf("table %q: %w", t.Name, &xerr.ValueError{Column: a.Column, Type: t.Columns[idx].Type.String(), Got: a.Value})
		}
		indices[i] = idx
	}

	check, err := t.compileWhere(where)
	if err != nil {
		return err
	}
	types := t.columnTypes()

	err = t.scan(check, func(rowID int64, row Row) error {
		oldValues := make([]SqlValue, len(indices))
		for i, idx := range indices {
			v, err := row.GetCell(types, idx)
			if err != nil {
				return err
			}
			oldValues[i] = v
		}

		newRow := Row{Bytes: append([]byte(nil), row.Bytes...)}
		for i, idx := range indices {
			if err := newRow.SetCell(types, idx, assignments[i].Value); err != nil {
				return err
			}
		}

		if err := t.validateConstraints(newRow); err != nil {
			return err
		}

		for i, idx := range indices {
			hashIdx := t.indexes[idx]
			if hashIdx == nil {
				continue
			}
			if !oldValues[i].IsNull() {
				h, err := t.hashValue(oldValues[i])
				if err != nil {
					return err
				}
				if err := hashIdx.DeleteRow(h, rowID); err != nil {
					return err
				}
			}
			if !assignments[i].Value.IsNull() {
				h, err := t.hashValue(assignments[i].Value)
				if err != nil {
					return err
				}
				if err := hashIdx.InsertRow(h, rowID); err != nil {
					return err
				}
			}
		}

		if err := t.pager.UpdateRow(rowID, newRow.AsBytes()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("table %q: update: %w", t.Name, err)
	}
	return nil
}

// Delete streams every row matching where, removes it from every index
// that covers a non-null cell, then removes it from the pager.
func (t *Table) Delete(where *BinaryCondition) error {
	check, err := t.compileWhere(where)
	if err != nil {
		return err
	}
	types := t.columnTypes()

	var toDelete []int64
	err = t.scan(check, func(rowID int64, row Row) error {
		for i, idx := range t.indexes {
			if idx == nil {
				continue
			}
			v, err := row.GetCell(types, i)
			if err != nil {
				return err
			}
			if v.IsNull() {
				continue
			}
			h, err := t.hashValue(v)
			if err != nil {
				return err
			}
			if err := idx.DeleteRow(h, rowID); err != nil {
				return err
			}
		}
		toDelete = append(toDelete, rowID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("table %q: delete: %w", t.Name, err)
	}
	for _, rowID := range toDelete {
		if err := t.pager.DeleteRow(rowID); err != nil {
			return fmt.Errorf("table %q: delete: %w", t.Name, err)
		}
		t.RowCount--
	}
	return nil
}

// RenameColumn updates a column's declared name. Compiled checks reference
// columns by index, not name, so no recompilation is needed.
func (t *Table) RenameColumn(oldName, newName string) error {
	idx, err := t.columnIndex(oldName)
	if err != nil {
		return err
	}
	if _, err := t.columnIndex(newName); err == nil {
		return fmt.Errorf("table %q: %w", t.Name, &xerr.ConflictError{Kind: "column", Name: newName})
	}
	t.Columns[idx].Name = newName
	if t.indexes[idx] != nil {
		newPath := indexPath(t.dir, t.Name, newName)
		if err := t.indexes[idx].Close(); err != nil {
			return err
		}
		// the index file's own content is position-independent of the
		// column's display name, so the file is closed, renamed on disk to
		// the new column's path, and reopened there unchanged.
		if err := renameFile(t.indexPaths[idx], newPath); err != nil {
			return err
		}
		reopened, err := hashindex.Open(newPath)
		if err != nil {
			return err
		}
		t.indexes[idx] = reopened
		t.indexPaths[idx] = newPath
	}
	return nil
}

// AddColumnConstraint attaches a NotNull, Default, or Check constraint to
// an existing column.
func (t *Table) AddColumnConstraint(columnName string, c Constraint) error {
	idx, err := t.columnIndex(columnName)
	if err != nil {
		return err
	}
	switch c.Kind {
	case ConstraintNotNull:
		t.notNull[idx] = true
	case ConstraintDefault:
		if !t.defaults[idx].IsNull() {
			return fmt.Errorf("table %q: %w", t.Name, &xerr.ConflictError{Kind: "default", Name: columnName})
		}
		if !t.Columns[idx].Type.MatchesValue(c.Default) {
			return fmt.Errorf("table %q: default value kind does not match column %q: %w", t.Name, columnName, xerr.Value)
		}
		t.defaults[idx] = c.Default
	case ConstraintCheck:
		compiled, err := c.Check.Compile(t.Name, t.columnNames())
		if err != nil {
			return err
		}
		t.checks = append(t.checks, compiledCheck{column: idx, condition: c.Check, check: compiled})
	}
	t.Columns[idx].Constraints = append(t.Columns[idx].Constraints, c)
	return nil
}

// DropColumnConstraint removes a previously added constraint of the given
// kind from a column. For Check, every check declared on that column is
// dropped (the schema grammar does not name individual checks).
func (t *Table) DropColumnConstraint(columnName string, kind ConstraintKind) error {
	idx, err := t.columnIndex(columnName)
	if err != nil {
		return err
	}
	switch kind {
	case ConstraintNotNull:
		if !t.notNull[idx] {
			return fmt.Errorf("table %q: %w", t.Name, &xerr.NotFoundError{Kind: "not null constraint", Name: columnName})
		}
		t.notNull[idx] = false
	case ConstraintDefault:
		if t.defaults[idx].IsNull() {
			return fmt.Errorf("table %q: %w", t.Name, &xerr.NotFoundError{Kind: "default constraint", Name: columnName})
		}
		t.defaults[idx] = Null
	case ConstraintCheck:
		kept := t.checks[:0]
		removed := false
		for _, c := range t.checks {
			if c.column == idx {
				removed = true
				continue
			}
			kept = append(kept, c)
		}
		if !removed {
			return fmt.Errorf("table %q: %w", t.Name, &xerr.NotFoundError{Kind: "check constraint", Name: columnName})
		}
		t.checks = kept
	}
	filtered := t.Columns[idx].Constraints[:0]
	for _, c := range t.Columns[idx].Constraints {
		if c.Kind != kind {
			filtered = append(filtered, c)
		}
	}
	t.Columns[idx].Constraints = filtered
	return nil
}

// CreateIndex builds a new hash index named name over columnName, rejecting
// Float columns (floating-point indexing is explicitly out of scope), a
// column that is already indexed, and a name already in use by another
// index on this table.
func (t *Table) CreateIndex(name, columnName string) error {
	idx, err := t.columnIndex(columnName)
	if err != nil {
		return err
	}
	if t.Columns[idx].Type == TypeFloat {
		return fmt.Errorf("table %q: cannot index float column %q: %w", t.Name, columnName, xerr.Index)
	}
	if t.indexes[idx] != nil {
		return fmt.Errorf("table %q: %w", t.Name, &xerr.ConflictError{Kind: "index", Name: columnName})
	}
	if _, err := t.columnByIndexName(name); err == nil {
		return fmt.Errorf("table %q: %w", t.Name, &xerr.ConflictError{Kind: "index name", Name: name})
	}
	path := indexPath(t.dir, t.Name, columnName)
	hi, err := hashindex.Open(path)
	if err != nil {
		return err
	}
	t.indexes[idx] = hi
	t.indexPaths[idx] = path
	t.indexNames[idx] = name
	return t.reindexColumn(idx)
}

// DropIndex removes the hash index declared under name and deletes its
// file.
func (t *Table) DropIndex(name string) error {
	idx, err := t.columnByIndexName(name)
	if err != nil {
		return err
	}
	path := t.indexPaths[idx]
	if err := t.indexes[idx].Close(); err != nil {
		return err
	}
	t.indexes[idx] = nil
	t.indexPaths[idx] = ""
	t.indexNames[idx] = ""
	if err := removeFile(path); err != nil {
		return err
	}
	return nil
}

func (t *Table) reindexColumn(col int) error {
	hi := t.indexes[col]
	if err := hi.Clear(); err != nil {
		return err
	}
	if err := hi.SetExpectedRowCount(t.RowCount); err != nil {
		return err
	}
	types := t.columnTypes()
	dummy := DummyRowCheck()
	return t.scan(dummy, func(rowID int64, row Row) error {
		v, err := row.GetCell(types, col)
		if err != nil {
			return err
		}
		if v.IsNull() {
			return nil
		}
		h, err := t.hashValue(v)
		if err != nil {
			return err
		}
		return hi.InsertRow(h, rowID)
	})
}

// Vacuum compacts the pager's table file, then rebuilds every hash index
// from the post-compaction row ids.
func (t *Table) Vacuum() error {
	t.log.Info("vacuuming table", "table", t.Name)
	if err := t.pager.Vacuum(); err != nil {
		return fmt.Errorf("table %q: vacuum: %w", t.Name, err)
	}
	for i := range t.indexes {
		if t.indexes[i] == nil {
			continue
		}
		if err := t.reindexColumn(i); err != nil {
			return fmt.Errorf("table %q: reindex column %q: %w", t.Name, t.Columns[i].Name, err)
		}
	}
	return nil
}

// Close flushes and closes the pager and every open index file.
func (t *Table) Close() error {
	if err := t.pager.Close(); err != nil {
		return err
	}
	for _, idx := range t.indexes {
		if idx == nil {
			continue
		}
		if err := idx.Close(); err != nil {
			return err
		}
	}
	return nil
}
