package sqlfront_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	yarrd "github.com/lindeneg/yarrd"
	"github.com/lindeneg/yarrd/internal/sqlfront"
)

func Test_Parse_EmptyStatementIsVoid(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("   ")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdVoid, cmd.Kind)
}

func Test_Parse_CreateTable_WithConstraints(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse(`create table people ( id int not null , name string default "bob" , score float check ( score > 0 ) )`)
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdCreateTable, cmd.Kind)
	assert.Equal(t, "people", cmd.Table)
	require.Len(t, cmd.Columns, 3)
	assert.Equal(t, yarrd.ConstraintNotNull, cmd.Columns[0].Constraints[0].Kind)
	assert.Equal(t, yarrd.NewString("bob"), cmd.Columns[1].Constraints[0].Default)
	assert.Equal(t, yarrd.OpGreater, cmd.Columns[2].Constraints[0].Check.Operator)
}

func Test_Parse_DropTable(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("drop table people")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdDropTable, cmd.Kind)
	assert.Equal(t, "people", cmd.Table)
}

func Test_Parse_Insert_WithExplicitColumns(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse(`insert into people ( id , name ) values ( 1 , "alice" )`)
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdInsert, cmd.Kind)
	assert.Equal(t, []string{"id", "name"}, cmd.InsertColumns)
	assert.Equal(t, []yarrd.SqlValue{yarrd.NewInteger(1), yarrd.NewString("alice")}, cmd.InsertValues)
}

func Test_Parse_Insert_WithoutColumnList(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse(`insert into people values ( 1 , "alice" )`)
	require.NoError(t, err)
	assert.Empty(t, cmd.InsertColumns)
	assert.Len(t, cmd.InsertValues, 2)
}

func Test_Parse_Select_Star_GoesThroughFastPath(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("select * from people where id = 1")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdSelect, cmd.Kind)
	assert.Equal(t, "people", cmd.Table)
	assert.Empty(t, cmd.SelectColumns)
	require.NotNil(t, cmd.Where)
	assert.Equal(t, yarrd.OpEquals, cmd.Where.Operator)
}

func Test_Parse_Select_ExplicitColumns(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("select id, name from people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cmd.SelectColumns)
	assert.Nil(t, cmd.Where)
}

func Test_Parse_Select_IsNullFallsBackToHandRolledParser(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("select * from people where name is null")
	require.NoError(t, err)
	require.NotNil(t, cmd.Where)
	assert.Equal(t, yarrd.OpIsNull, cmd.Where.Operator)
}

func Test_Parse_Update_MultipleAssignments(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse(`update people set name = "carl" , score = 4.5 where id = 2`)
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdUpdate, cmd.Kind)
	require.Len(t, cmd.Assignments, 2)
	assert.Equal(t, "name", cmd.Assignments[0].Column)
	assert.Equal(t, yarrd.NewFloat(4.5), cmd.Assignments[1].Value)
	require.NotNil(t, cmd.Where)
}

func Test_Parse_Delete_WithWhere(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("delete from people where id = 1")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdDelete, cmd.Kind)
	require.NotNil(t, cmd.Where)
}

func Test_Parse_CreateIndex(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("create index idx_name on people name")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdCreateIndex, cmd.Kind)
	assert.Equal(t, "people", cmd.Table)
	assert.Equal(t, "idx_name", cmd.IndexName)
	assert.Equal(t, "name", cmd.IndexColumn)
}

func Test_Parse_DropIndex(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("drop index idx_name on people")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdDropIndex, cmd.Kind)
	assert.Equal(t, "people", cmd.Table)
	assert.Equal(t, "idx_name", cmd.IndexName)
}

func Test_Parse_Vacuum(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("vacuum people")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdVacuum, cmd.Kind)
	assert.Equal(t, "people", cmd.Table)
}

func Test_Parse_AlterTable_RenameTable(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("alter table people rename to folks")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdRenameTable, cmd.Kind)
	assert.Equal(t, "people", cmd.Table)
	assert.Equal(t, "folks", cmd.NewName)
}

func Test_Parse_AlterTable_RenameColumn(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("alter table people rename column name to full_name")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdRenameColumn, cmd.Kind)
	assert.Equal(t, "name", cmd.ConstraintColumn)
	assert.Equal(t, "full_name", cmd.NewName)
}

func Test_Parse_AlterTable_AddColumn(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("alter table people add column age int")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdAddColumn, cmd.Kind)
	assert.Equal(t, "age", cmd.Column.Name)
	assert.Equal(t, yarrd.TypeInteger, cmd.Column.Type)
}

func Test_Parse_AlterTable_AddConstraint(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("alter table people add constraint not null ( name )")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdAddConstraint, cmd.Kind)
	assert.Equal(t, "name", cmd.ConstraintColumn)
	assert.Equal(t, yarrd.ConstraintNotNull, cmd.ConstraintKind)
}

func Test_Parse_AlterTable_DropConstraint(t *testing.T) {
	t.Parallel()

	cmd, err := sqlfront.Parse("alter table people drop constraint default ( name )")
	require.NoError(t, err)
	assert.Equal(t, yarrd.CmdDropConstraint, cmd.Kind)
	assert.Equal(t, yarrd.ConstraintDefault, cmd.ConstraintKind)
}

func Test_Parse_UnsupportedStatementIsError(t *testing.T) {
	t.Parallel()

	_, err := sqlfront.Parse("explain people")
	assert.Error(t, err)
}

func Test_Parse_CreateTable_MissingClosingParenIsError(t *testing.T) {
	t.Parallel()

	_, err := sqlfront.Parse("create table people ( id int")
	assert.Error(t, err)
}
