package yarrd_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindeneg/yarrd"
	"github.com/lindeneg/yarrd/internal/xerr"
)

func peopleColumns() []yarrd.Column {
	return []yarrd.Column{
		{Name: "id", Type: yarrd.TypeInteger},
		{Name: "name", Type: yarrd.TypeString},
		{Name: "score", Type: yarrd.TypeFloat},
	}
}

func openTestTable(t *testing.T, columns []yarrd.Column, indexedColumns []string) *yarrd.Table {
	t.Helper()
	dir := t.TempDir()
	specs := make([]yarrd.IndexSpec, len(indexedColumns))
	for i, col := range indexedColumns {
		specs[i] = yarrd.IndexSpec{Column: col, Name: "idx_" + col}
	}
	tbl, err := yarrd.OpenTable(dir, "people", 0, columns, specs, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tbl.Close() })
	return tbl
}

func Test_Table_InsertAndSelect_AllColumns(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("alice"), yarrd.NewFloat(9.5)})
	require.NoError(t, err)

	result, err := tbl.Select(nil, nil)
	require.NoError(t, err)

	want := &yarrd.QueryResult{
		ColumnNames: []string{"id", "name", "score"},
		ColumnTypes: []yarrd.ColumnType{yarrd.TypeInteger, yarrd.TypeString, yarrd.TypeFloat},
		Rows:        [][]yarrd.SqlValue{{yarrd.NewInteger(1), yarrd.NewString("alice"), yarrd.NewFloat(9.5)}},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("select result mismatch (-want +got):\n%s", diff)
	}
}

func Test_Table_Insert_AppliesDefaultsToUnspecifiedColumns(t *testing.T) {
	t.Parallel()

	columns := peopleColumns()
	columns[2].Constraints = append(columns[2].Constraints, yarrd.Constraint{Kind: yarrd.ConstraintDefault, Default: yarrd.NewFloat(0)})
	tbl := openTestTable(t, columns, nil)

	_, err := tbl.Insert([]string{"id", "name"}, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("bob")})
	require.NoError(t, err)

	result, err := tbl.Select(nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, yarrd.NewFloat(0), result.Rows[0][2])
}

func Test_Table_Insert_RejectsValueCountMismatch(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(1)})
	assert.ErrorIs(t, err, xerr.Value)
}

func Test_Table_Insert_RejectsTypeMismatch(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	_, err := tbl.Insert([]string{"id"}, []yarrd.SqlValue{yarrd.NewString("not-an-int")})
	var valErr *xerr.ValueError
	assert.True(t, errors.As(err, &valErr))
}

func Test_Table_Insert_EnforcesNotNull(t *testing.T) {
	t.Parallel()

	columns := peopleColumns()
	columns[1].Constraints = append(columns[1].Constraints, yarrd.Constraint{Kind: yarrd.ConstraintNotNull})
	tbl := openTestTable(t, columns, nil)

	_, err := tbl.Insert([]string{"id"}, []yarrd.SqlValue{yarrd.NewInteger(1)})
	var constraintErr *xerr.ConstraintError
	assert.True(t, errors.As(err, &constraintErr))
}

func Test_Table_Insert_EnforcesCheckConstraint(t *testing.T) {
	t.Parallel()

	columns := peopleColumns()
	columns[0].Constraints = append(columns[0].Constraints, yarrd.Constraint{
		Kind: yarrd.ConstraintCheck,
		Check: yarrd.BinaryCondition{
			Left:     yarrd.NewIdentifier("id"),
			Right:    yarrd.NewInteger(0),
			Operator: yarrd.OpGreater,
		},
	})
	tbl := openTestTable(t, columns, nil)

	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(-1), yarrd.NewString("x"), yarrd.NewFloat(1)})
	var constraintErr *xerr.ConstraintError
	assert.True(t, errors.As(err, &constraintErr))

	_, err = tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("x"), yarrd.NewFloat(1)})
	assert.NoError(t, err)
}

func Test_Table_Select_FiltersByWhere(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("alice"), yarrd.NewFloat(1)})
	require.NoError(t, err)
	_, err = tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(2), yarrd.NewString("bob"), yarrd.NewFloat(2)})
	require.NoError(t, err)

	where := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("name"), Right: yarrd.NewString("bob"), Operator: yarrd.OpEquals}
	result, err := tbl.Select([]string{"id"}, where)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, yarrd.NewInteger(2), result.Rows[0][0])
}

func Test_Table_Select_UsesIndexForColumnEquality(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), []string{"name"})
	for i := int64(0); i < 5; i++ {
		_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(i), yarrd.NewString("person"), yarrd.NewFloat(float64(i))})
		require.NoError(t, err)
	}
	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(99), yarrd.NewString("target"), yarrd.NewFloat(0)})
	require.NoError(t, err)

	where := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("name"), Right: yarrd.NewString("target"), Operator: yarrd.OpEquals}
	result, err := tbl.Select(nil, where)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, yarrd.NewInteger(99), result.Rows[0][0])
}

func Test_Table_Update_RewritesMatchingRowsAndMaintainsIndex(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), []string{"name"})
	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("alice"), yarrd.NewFloat(1)})
	require.NoError(t, err)

	where := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("id"), Right: yarrd.NewInteger(1), Operator: yarrd.OpEquals}
	err = tbl.Update([]yarrd.FieldAssignment{{Column: "name", Value: yarrd.NewString("alicia")}}, where)
	require.NoError(t, err)

	byOld := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("name"), Right: yarrd.NewString("alice"), Operator: yarrd.OpEquals}
	result, err := tbl.Select(nil, byOld)
	require.NoError(t, err)
	assert.Empty(t, result.Rows)

	byNew := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("name"), Right: yarrd.NewString("alicia"), Operator: yarrd.OpEquals}
	result, err = tbl.Select(nil, byNew)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
}

func Test_Table_Update_RejectsCheckViolation(t *testing.T) {
	t.Parallel()

	columns := peopleColumns()
	columns[0].Constraints = append(columns[0].Constraints, yarrd.Constraint{
		Kind: yarrd.ConstraintCheck,
		Check: yarrd.BinaryCondition{
			Left:     yarrd.NewIdentifier("id"),
			Right:    yarrd.NewInteger(0),
			Operator: yarrd.OpGreater,
		},
	})
	tbl := openTestTable(t, columns, nil)
	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("x"), yarrd.NewFloat(1)})
	require.NoError(t, err)

	err = tbl.Update([]yarrd.FieldAssignment{{Column: "id", Value: yarrd.NewInteger(-5)}}, nil)
	var constraintErr *xerr.ConstraintError
	assert.True(t, errors.As(err, &constraintErr))
}

func Test_Table_Delete_RemovesMatchingRowsAndIndexEntries(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), []string{"name"})
	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("alice"), yarrd.NewFloat(1)})
	require.NoError(t, err)
	_, err = tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(2), yarrd.NewString("bob"), yarrd.NewFloat(2)})
	require.NoError(t, err)

	where := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("name"), Right: yarrd.NewString("alice"), Operator: yarrd.OpEquals}
	require.NoError(t, tbl.Delete(where))

	result, err := tbl.Select(nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, yarrd.NewInteger(2), result.Rows[0][0])
	assert.EqualValues(t, 1, tbl.RowCount)
}

func Test_Table_RenameColumn_UpdatesNameAndKeepsIndex(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), []string{"name"})
	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("alice"), yarrd.NewFloat(1)})
	require.NoError(t, err)

	require.NoError(t, tbl.RenameColumn("name", "full_name"))
	assert.Equal(t, []string{"full_name"}, tbl.IndexedColumnNames())

	where := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("full_name"), Right: yarrd.NewString("alice"), Operator: yarrd.OpEquals}
	result, err := tbl.Select(nil, where)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
}

func Test_Table_RenameColumn_RejectsExistingName(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	err := tbl.RenameColumn("name", "id")
	var conflictErr *xerr.ConflictError
	assert.True(t, errors.As(err, &conflictErr))
}

func Test_Table_CreateIndex_RejectsFloatColumn(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	err := tbl.CreateIndex("idx_score", "score")
	assert.ErrorIs(t, err, xerr.Index)
}

func Test_Table_CreateIndex_BackfillsExistingRows(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	_, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("alice"), yarrd.NewFloat(1)})
	require.NoError(t, err)

	require.NoError(t, tbl.CreateIndex("idx_name", "name"))

	where := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("name"), Right: yarrd.NewString("alice"), Operator: yarrd.OpEquals}
	result, err := tbl.Select(nil, where)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
}

func Test_Table_CreateIndex_RejectsAlreadyIndexed(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), []string{"name"})
	err := tbl.CreateIndex("idx_name_again", "name")
	var conflictErr *xerr.ConflictError
	assert.True(t, errors.As(err, &conflictErr))
}

func Test_Table_CreateIndex_RejectsDuplicateName(t *testing.T) {
	t.Parallel()

	columns := peopleColumns()
	tbl := openTestTable(t, columns, []string{"name"})
	err := tbl.CreateIndex("idx_name", "id")
	var conflictErr *xerr.ConflictError
	assert.True(t, errors.As(err, &conflictErr))
}

func Test_Table_DropIndex_RemovesIndex(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), []string{"name"})
	require.NoError(t, tbl.DropIndex("idx_name"))
	assert.Empty(t, tbl.IndexedColumnNames())

	err := tbl.DropIndex("idx_name")
	var notFoundErr *xerr.NotFoundError
	assert.True(t, errors.As(err, &notFoundErr))
}

func Test_Table_AddThenDropColumnConstraint(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	require.NoError(t, tbl.AddColumnConstraint("name", yarrd.Constraint{Kind: yarrd.ConstraintNotNull}))

	_, err := tbl.Insert([]string{"id"}, []yarrd.SqlValue{yarrd.NewInteger(1)})
	var constraintErr *xerr.ConstraintError
	assert.True(t, errors.As(err, &constraintErr))

	require.NoError(t, tbl.DropColumnConstraint("name", yarrd.ConstraintNotNull))
	_, err = tbl.Insert([]string{"id"}, []yarrd.SqlValue{yarrd.NewInteger(1)})
	assert.NoError(t, err)
}

func Test_Table_DropColumnConstraint_MissingIsError(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	err := tbl.DropColumnConstraint("name", yarrd.ConstraintNotNull)
	var notFoundErr *xerr.NotFoundError
	assert.True(t, errors.As(err, &notFoundErr))
}

func Test_Table_Vacuum_PreservesRowsAndReindexes(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), []string{"name"})
	var ids []int64
	for i := int64(0); i < 20; i++ {
		id, err := tbl.Insert(nil, []yarrd.SqlValue{yarrd.NewInteger(i), yarrd.NewString("row"), yarrd.NewFloat(float64(i))})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	where := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("id"), Right: yarrd.NewInteger(ids[0]), Operator: yarrd.OpEquals}
	require.NoError(t, tbl.Delete(where))

	require.NoError(t, tbl.Vacuum())

	result, err := tbl.Select(nil, nil)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 19)

	byName := &yarrd.BinaryCondition{Left: yarrd.NewIdentifier("name"), Right: yarrd.NewString("row"), Operator: yarrd.OpEquals}
	result, err = tbl.Select(nil, byName)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 19, "the index must still find every surviving row after vacuum rebuilds it")
}

func Test_Table_Select_UnknownColumnIsError(t *testing.T) {
	t.Parallel()

	tbl := openTestTable(t, peopleColumns(), nil)
	_, err := tbl.Select([]string{"ghost"}, nil)
	var notFoundErr *xerr.NotFoundError
	assert.True(t, errors.As(err, &notFoundErr))
}
