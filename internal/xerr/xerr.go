// Package xerr defines the error kinds shared by every layer of yarrd.
//
// Each kind is a plain sentinel value, in the style of a small Go CLI's
// error.go file. Call sites that need to attach context (a column name, a
// table name, an offending value) wrap the sentinel in one of the typed
// structs below rather than formatting it away; errors.Is against the
// sentinel keeps working through fmt.Errorf("%w") and through the typed
// wrappers' Unwrap methods.
package xerr

import "errors"

var (
	// IO covers failures reading or writing the underlying table, index, or
	// schema files.
	IO = errors.New("io error")
	// Serde covers cell/row encode-decode failures: truncated bytes, a
	// string longer than its fixed slot, an unrecognized column type tag.
	Serde = errors.New("serialization error")
	// Schema covers malformed schema-file and config-file contents and
	// other database-catalog inconsistencies (duplicate names are Conflict).
	Schema = errors.New("schema error")
	// Value covers a value that doesn't match its declared column type, or
	// a value count mismatch against a column list.
	Value = errors.New("value error")
	// Constraint covers NOT NULL / CHECK violations.
	Constraint = errors.New("constraint error")
	// Page covers page-level failures: page full, row too big for a page.
	Page = errors.New("page error")
	// LRU covers cache-construction failures (capacity too small).
	LRU = errors.New("lru error")
	// Index covers hash-index failures: bucket full, unexpected bucket
	// number, unindexable value kind, float column indexed.
	Index = errors.New("index error")
	// Syntax covers SQL parse failures.
	Syntax = errors.New("syntax error")
	// NotFound covers missing tables, columns, indexes, or databases.
	NotFound = errors.New("not found")
	// Conflict covers already-exists conditions: table/constraint/index
	// that is already present.
	Conflict = errors.New("already exists")
)

// ValueError reports a value that does not match its declared column type.
type ValueError struct {
	Column string
	Type   string
	Got    any
}

func (e *ValueError) Error() string {
	return "column " + e.Column + " expects " + e.Type + ", got mismatched value"
}

func (e *ValueError) Unwrap() error { return Value }

// ConstraintError reports a NOT NULL or CHECK violation on insert/update.
type ConstraintError struct {
	Table  string
	Column string
	Reason string
}

func (e *ConstraintError) Error() string {
	return "constraint violated on " + e.Table + "." + e.Column + ": " + e.Reason
}

func (e *ConstraintError) Unwrap() error { return Constraint }

// SchemaError reports a malformed schema-file line or catalog
// inconsistency.
type SchemaError struct {
	Detail string
}

func (e *SchemaError) Error() string { return "schema error: " + e.Detail }

func (e *SchemaError) Unwrap() error { return Schema }

// NotFoundError reports a missing named entity (table, column, index,
// database).
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string { return e.Kind + " not found: " + e.Name }

func (e *NotFoundError) Unwrap() error { return NotFound }

// ConflictError reports an already-exists condition.
type ConflictError struct {
	Kind string
	Name string
}

func (e *ConflictError) Error() string { return e.Kind + " already exists: " + e.Name }

func (e *ConflictError) Unwrap() error { return Conflict }

// IndexError reports a hash-index specific failure.
type IndexError struct {
	Detail string
}

func (e *IndexError) Error() string { return "index error: " + e.Detail }

func (e *IndexError) Unwrap() error { return Index }
