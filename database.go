package yarrd

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/lindeneg/yarrd/internal/xerr"
)

// Database owns the table registry and the schema file that durably
// records it. Scoped acquisition (Open on connect, Close on disconnect)
// guarantees that closing flushes the schema and every table's pager and
// index files.
type Database struct {
	schemaPath    string
	tablesDir     string
	cacheCapacity int
	Tables        map[string]*Table
	log           *slog.Logger
}

// Open reads the schema file at path: line 1 names the tables directory,
// every subsequent line parses one table definition (see ParseSchemaLine).
// cacheCapacity bounds every table's page cache; <= 0 uses
// pager.DefaultCacheCapacity.
func Open(path string, cacheCapacity int, log *slog.Logger) (*Database, error) {
	if log == nil {
		log = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("database: open schema %s: %w", path, xerr.IO)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("database: schema %s is empty: %w", path, &xerr.SchemaError{Detail: "missing tables directory line"})
	}
	tablesDir := scanner.Text()
	info, err := os.Stat(tablesDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("database: tables directory %q: %w", tablesDir, &xerr.NotFoundError{Kind: "directory", Name: tablesDir})
	}

	db := &Database{schemaPath: path, tablesDir: tablesDir, cacheCapacity: cacheCapacity, Tables: make(map[string]*Table), log: log}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		name, rowCount, columns, indexed, err := ParseSchemaLine(line)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		table, err := OpenTable(tablesDir, name, rowCount, columns, indexed, cacheCapacity, log)
		if err != nil {
			return nil, fmt.Errorf("database: load table %q: %w", name, err)
		}
		db.Tables[name] = table
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("database: read schema %s: %w", path, xerr.IO)
	}
	return db, nil
}

// Create initialises a brand-new database: an empty schema file naming
// tablesDir, and tablesDir itself if it does not already exist. cacheCapacity
// is forwarded to every table opened afterwards; <= 0 uses
// pager.DefaultCacheCapacity.
func Create(schemaPath, tablesDir string, cacheCapacity int, log *slog.Logger) (*Database, error) {
	if _, err := os.Stat(schemaPath); err == nil {
		return nil, fmt.Errorf("database: %w", &xerr.ConflictError{Kind: "database file", Name: schemaPath})
	}
	if err := os.MkdirAll(tablesDir, 0o755); err != nil {
		return nil, fmt.Errorf("database: create tables dir %s: %w", tablesDir, xerr.IO)
	}
	if err := atomic.WriteFile(schemaPath, bytes.NewBufferString(tablesDir+"\n")); err != nil {
		return nil, fmt.Errorf("database: write schema %s: %w", schemaPath, xerr.IO)
	}
	return Open(schemaPath, cacheCapacity, log)
}

// flushSchema atomically truncates and rewrites the schema file from the
// registry's current state.
func (db *Database) flushSchema() error {
	var buf bytes.Buffer
	buf.WriteString(db.tablesDir)
	buf.WriteByte('\n')
	for _, t := range db.Tables {
		buf.WriteString(FormatSchemaLine(t))
		buf.WriteByte('\n')
	}
	if err := atomic.WriteFile(db.schemaPath, &buf); err != nil {
		return fmt.Errorf("database: flush schema: %w", xerr.IO)
	}
	return nil
}

// Close closes (flushing) every table, then flushes the schema file.
// Per the resource-release model a flush failure here is fatal; the
// connection layer (internal/connection) logs it and exits the process.
func (db *Database) Close() error {
	for name, t := range db.Tables {
		if err := t.Close(); err != nil {
			return fmt.Errorf("database: close table %q: %w", name, err)
		}
	}
	return db.flushSchema()
}

func (db *Database) table(name string) (*Table, error) {
	t, ok := db.Tables[name]
	if !ok {
		return nil, fmt.Errorf("database: %w", &xerr.NotFoundError{Kind: "table", Name: name})
	}
	return t, nil
}

// CreateTable registers and persists a brand-new table.
func (db *Database) CreateTable(name string, columns []Column) error {
	if _, exists := db.Tables[name]; exists {
		return fmt.Errorf("database: %w", &xerr.ConflictError{Kind: "table", Name: name})
	}
	t, err := OpenTable(db.tablesDir, name, 0, columns, nil, db.cacheCapacity, db.log)
	if err != nil {
		_ = removeFile(tablePath(db.tablesDir, name))
		return fmt.Errorf("database: create table %q: %w", name, err)
	}
	db.Tables[name] = t
	return db.flushSchema()
}

// DropTable removes a table from the registry and deletes its table file
// and every index file it had open.
func (db *Database) DropTable(name string) error {
	t, err := db.table(name)
	if err != nil {
		return err
	}
	var indexFiles []string
	for _, p := range t.indexPaths {
		if p != "" {
			indexFiles = append(indexFiles, p)
		}
	}
	if err := t.Close(); err != nil {
		return err
	}
	delete(db.Tables, name)
	if err := removeFile(tablePath(db.tablesDir, name)); err != nil {
		return err
	}
	for _, p := range indexFiles {
		_ = removeFile(p)
	}
	return db.flushSchema()
}

// RenameTable renames a table both in the registry and on disk. If the
// rename fails, the table is reinserted in the registry under its old
// name.
func (db *Database) RenameTable(oldName, newName string) error {
	t, err := db.table(oldName)
	if err != nil {
		return err
	}
	if _, exists := db.Tables[newName]; exists {
		return fmt.Errorf("database: %w", &xerr.ConflictError{Kind: "table", Name: newName})
	}
	delete(db.Tables, oldName)
	if err := renameFile(tablePath(db.tablesDir, oldName), tablePath(db.tablesDir, newName)); err != nil {
		db.Tables[oldName] = t
		return err
	}
	t.Name = newName
	db.Tables[newName] = t
	return db.flushSchema()
}

// RenameTableColumn renames a column and flushes the schema.
func (db *Database) RenameTableColumn(table, oldName, newName string) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	if err := t.RenameColumn(oldName, newName); err != nil {
		return err
	}
	return db.flushSchema()
}

// AddColumnConstraint flushes the schema after delegating to the table.
func (db *Database) AddColumnConstraint(table, column string, c Constraint) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	if err := t.AddColumnConstraint(column, c); err != nil {
		return err
	}
	return db.flushSchema()
}

// DropColumnConstraint flushes the schema after delegating to the table.
func (db *Database) DropColumnConstraint(table, column string, kind ConstraintKind) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	if err := t.DropColumnConstraint(column, kind); err != nil {
		return err
	}
	return db.flushSchema()
}

// CreateIndex flushes the schema after delegating to the table.
func (db *Database) CreateIndex(table, name, column string) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	if err := t.CreateIndex(name, column); err != nil {
		return err
	}
	return db.flushSchema()
}

// DropIndex flushes the schema after delegating to the table.
func (db *Database) DropIndex(table, name string) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	if err := t.DropIndex(name); err != nil {
		return err
	}
	return db.flushSchema()
}

// Vacuum delegates to the table; vacuum never changes the schema text, so
// no flush is needed.
func (db *Database) Vacuum(table string) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	return t.Vacuum()
}

func (db *Database) Select(table string, columns []string, where *BinaryCondition) (*QueryResult, error) {
	t, err := db.table(table)
	if err != nil {
		return nil, err
	}
	return t.Select(columns, where)
}

func (db *Database) Insert(table string, columns []string, values []SqlValue) (int64, error) {
	t, err := db.table(table)
	if err != nil {
		return 0, err
	}
	return t.Insert(columns, values)
}

func (db *Database) Update(table string, assignments []FieldAssignment, where *BinaryCondition) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	return t.Update(assignments, where)
}

func (db *Database) Delete(table string, where *BinaryCondition) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	return t.Delete(where)
}

// addColumnStep is one forward step of the AddColumn copy-and-swap
// orchestration, paired with the inverse action to run during unwind if a
// later step fails. inverse is nil for steps that need no undoing (e.g.
// read-only checks).
type addColumnStep struct {
	name    string
	forward func() error
	inverse func()
}

// AddColumn implements the copy-to-new-table-then-swap operation: build a
// temp table with the expanded schema, copy every row across (appending
// Null for the new column), then swap the temp table into the original
// table's name and drop the displaced original. Every forward step has a
// paired inverse; on failure, only the inverses of steps that actually
// completed are run, in reverse order, so the unwind never references a
// table or file that was never created (the bug flagged against the
// source implementation's timestamp-based unwind).
func (db *Database) AddColumn(tableName string, newColumn Column) error {
	original, err := db.table(tableName)
	if err != nil {
		return err
	}
	if _, err := original.columnIndex(newColumn.Name); err == nil {
		return fmt.Errorf("database: %w", &xerr.ConflictError{Kind: "column", Name: newColumn.Name})
	}

	tempName := tableName + "-" + uuid.NewString()
	retiredName := tableName + "-retired-" + uuid.NewString()
	expandedColumns := append(append([]Column(nil), original.Columns...), newColumn)

	var completed []func()
	unwind := func() {
		for i := len(completed) - 1; i >= 0; i-- {
			completed[i]()
		}
	}

	steps := []addColumnStep{
		{
			name: "create temp table",
			forward: func() error {
				return db.CreateTable(tempName, expandedColumns)
			},
			inverse: func() {
				_ = db.DropTable(tempName)
			},
		},
		{
			name: "copy rows",
			forward: func() error {
				return db.copyRowsAppendingNull(tableName, tempName)
			},
			inverse: nil, // dropping the temp table (above) discards the copy too
		},
		{
			name: "retire original table",
			forward: func() error {
				return db.RenameTable(tableName, retiredName)
			},
			inverse: func() {
				_ = db.RenameTable(retiredName, tableName)
			},
		},
		{
			name: "promote temp table",
			forward: func() error {
				return db.RenameTable(tempName, tableName)
			},
			inverse: func() {
				_ = db.RenameTable(tableName, tempName)
			},
		},
		{
			name: "drop retired table",
			forward: func() error {
				return db.DropTable(retiredName)
			},
			inverse: nil, // nothing meaningful to restore: the retired table's
			// data already lives in the promoted table.
		},
	}

	for _, step := range steps {
		if err := step.forward(); err != nil {
			db.log.Error("add_column step failed, unwinding", "step", step.name, "error", err)
			unwind()
			return fmt.Errorf("database: add column %q to %q: %w", newColumn.Name, tableName, err)
		}
		if step.inverse != nil {
			completed = append(completed, step.inverse)
		}
	}
	return nil
}

func (db *Database) copyRowsAppendingNull(fromTable, toTable string) error {
	src, err := db.table(fromTable)
	if err != nil {
		return err
	}
	result, err := src.Select(nil, nil)
	if err != nil {
		return err
	}
	for _, row := range result.Rows {
		values := append(append([]SqlValue(nil), row...), Null)
		if _, err := db.Insert(toTable, nil, values); err != nil {
			return err
		}
	}
	return nil
}

// SchemaPath returns the path of the schema file this database was opened
// from.
func (db *Database) SchemaPath() string { return db.schemaPath }

// TablesDir returns the directory this database stores table and index
// files in.
func (db *Database) TablesDir() string { return db.tablesDir }

// TableFilePath exposes the table-file naming convention for callers
// outside this package.
func TableFilePath(dir, name string) string { return tablePath(dir, name) }
