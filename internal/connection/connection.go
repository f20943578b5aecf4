// Package connection manages the lifecycle of a single open Database
// across a REPL session: connect, close, and the meta-commands that drive
// them.
package connection

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	yarrd "github.com/lindeneg/yarrd"
	"github.com/lindeneg/yarrd/internal/xerr"
)

func removeFile(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, xerr.IO)
	}
	return nil
}

// Connection holds at most one open Database at a time.
type Connection struct {
	Database         *yarrd.Database
	cacheCapacity    int
	defaultTablesDir string
	log              *slog.Logger
}

// Blank returns a Connection with no database open. cacheCapacity bounds
// the page cache of every database subsequently opened or created through
// it (<= 0 uses the engine's built-in default); defaultTablesDir is used by
// CreateDB when its caller leaves tablesDir empty (empty falls back further
// to a "<dbPath>.tables" sibling directory).
func Blank(cacheCapacity int, defaultTablesDir string, log *slog.Logger) *Connection {
	if log == nil {
		log = slog.Default()
	}
	return &Connection{cacheCapacity: cacheCapacity, defaultTablesDir: defaultTablesDir, log: log}
}

// IsActive reports whether a database is currently open.
func (c *Connection) IsActive() bool { return c.Database != nil }

// Close flushes and closes the active database, if any. A close (flush)
// failure is fatal: it is logged and the process exits with status 1.
func (c *Connection) Close() error {
	if c.Database == nil {
		return nil
	}
	db := c.Database
	c.Database = nil
	if err := db.Close(); err != nil {
		c.log.Error("database close failed", "error", err)
		os.Exit(1)
	}
	return nil
}

// Connect closes any currently open database, then opens the one at path.
func (c *Connection) Connect(path string) error {
	if err := c.Close(); err != nil {
		return err
	}
	db, err := yarrd.Open(path, c.cacheCapacity, c.log)
	if err != nil {
		return fmt.Errorf("connection: connect %s: %w", path, err)
	}
	c.Database = db
	return nil
}

// CreateDB initialises a new database at dbPath (tablesDir defaults to a
// sibling "<dbPath>.tables" directory when empty) and leaves it open.
func (c *Connection) CreateDB(dbPath, tablesDir string) error {
	if err := c.Close(); err != nil {
		return err
	}
	if tablesDir == "" {
		tablesDir = c.defaultTablesDir
	}
	if tablesDir == "" {
		tablesDir = dbPath + ".tables"
	}
	db, err := yarrd.Create(dbPath, tablesDir, c.cacheCapacity, c.log)
	if err != nil {
		return fmt.Errorf("connection: createdb %s: %w", dbPath, err)
	}
	c.Database = db
	return nil
}

// DropDB closes the database at dbPath if it is the one currently open,
// then removes the schema file. It does not recursively remove the tables
// directory; callers that want that can do so explicitly.
func (c *Connection) DropDB(dbPath string) error {
	if c.Database != nil && samePath(c.Database.SchemaPath(), dbPath) {
		if err := c.Close(); err != nil {
			return err
		}
	}
	if err := removeFile(dbPath); err != nil {
		return fmt.Errorf("connection: dropdb %s: %w", dbPath, err)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

// RequireActive returns the open database or a NotFound-kind error if none
// is open.
func (c *Connection) RequireActive() (*yarrd.Database, error) {
	if c.Database == nil {
		return nil, fmt.Errorf("connection: %w", &xerr.NotFoundError{Kind: "connection", Name: "active"})
	}
	return c.Database, nil
}
