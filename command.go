package yarrd

import "fmt"

// CommandKind tags the variant of a parsed Command.
type CommandKind int

const (
	CmdVoid CommandKind = iota
	CmdCreateTable
	CmdDropTable
	CmdSelect
	CmdInsert
	CmdUpdate
	CmdDelete
	CmdRenameTable
	CmdRenameColumn
	CmdAddColumn
	CmdAddConstraint
	CmdDropConstraint
	CmdCreateIndex
	CmdDropIndex
	CmdVacuum
)

// Command is the executor's single input type: every statement shape in
// the command surface compiles down to one of these before reaching
// Database.Execute.
type Command struct {
	Kind CommandKind

	Table   string
	NewName string // RenameTable / RenameColumn target

	Columns []Column // CreateTable
	Column  Column   // AddColumn

	SelectColumns []string // nil/empty means every column ("*")
	Where         *BinaryCondition

	InsertColumns []string
	InsertValues  []SqlValue

	Assignments []FieldAssignment

	ConstraintColumn string
	Constraint       Constraint
	ConstraintKind   ConstraintKind

	IndexName   string
	IndexColumn string // CreateIndex only; DropIndex resolves the column by IndexName
}

// Execute dispatches a compiled Command to the matching Database
// operation.
func (db *Database) Execute(cmd Command) (*QueryResult, error) {
	switch cmd.Kind {
	case CmdVoid:
		return nil, nil
	case CmdCreateTable:
		return nil, db.CreateTable(cmd.Table, cmd.Columns)
	case CmdDropTable:
		return nil, db.DropTable(cmd.Table)
	case CmdSelect:
		return db.Select(cmd.Table, cmd.SelectColumns, cmd.Where)
	case CmdInsert:
		_, err := db.Insert(cmd.Table, cmd.InsertColumns, cmd.InsertValues)
		return nil, err
	case CmdUpdate:
		return nil, db.Update(cmd.Table, cmd.Assignments, cmd.Where)
	case CmdDelete:
		return nil, db.Delete(cmd.Table, cmd.Where)
	case CmdRenameTable:
		return nil, db.RenameTable(cmd.Table, cmd.NewName)
	case CmdRenameColumn:
		return nil, db.RenameTableColumn(cmd.Table, cmd.ConstraintColumn, cmd.NewName)
	case CmdAddColumn:
		return nil, db.AddColumn(cmd.Table, cmd.Column)
	case CmdAddConstraint:
		return nil, db.AddColumnConstraint(cmd.Table, cmd.ConstraintColumn, cmd.Constraint)
	case CmdDropConstraint:
		return nil, db.DropColumnConstraint(cmd.Table, cmd.ConstraintColumn, cmd.ConstraintKind)
	case CmdCreateIndex:
		return nil, db.CreateIndex(cmd.Table, cmd.IndexName, cmd.IndexColumn)
	case CmdDropIndex:
		return nil, db.DropIndex(cmd.Table, cmd.IndexName)
	case CmdVacuum:
		return nil, db.Vacuum(cmd.Table)
	default:
		return nil, fmt.Errorf("database: unknown command kind %d", cmd.Kind)
	}
}
