// Command yarrd is the interactive front end to the engine: a REPL that
// accepts both dot-prefixed meta-commands (.createdb, .connect, .dropdb,
// .close, .exit) and SQL statements against whichever database is
// currently open.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/peterh/liner"

	yarrd "github.com/lindeneg/yarrd"
	"github.com/lindeneg/yarrd/internal/config"
	"github.com/lindeneg/yarrd/internal/connection"
	"github.com/lindeneg/yarrd/internal/logging"
	"github.com/lindeneg/yarrd/internal/sqlfront"
)

var CLI struct {
	Config    string `name:"config" short:"c" help:"Path to a YAML config file" type:"path"`
	Database  string `name:"database" short:"d" help:"Database schema file to open on startup" type:"path"`
	CacheSize int    `name:"cache-size" help:"Page cache size (pages resident per table)"`
	LogLevel  string `name:"log-level" help:"Log level: debug, info, warn, error" default:"info"`
	LogJSON   bool   `name:"log-json" help:"Emit logs as JSON instead of text"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("yarrd"),
		kong.Description("yarrd - an embedded relational storage engine REPL"),
		kong.UsageOnError(),
	)

	cfg := config.Default()
	if CLI.Config != "" {
		loaded, err := config.Load(CLI.Config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if CLI.LogLevel != "" {
		cfg.LogLevel = CLI.LogLevel
	}
	if CLI.LogJSON {
		cfg.LogFormat = "json"
	}
	if CLI.CacheSize != 0 {
		cfg.PageCacheSize = CLI.CacheSize
	}

	log := logging.InitLogger(cfg.Level(), cfg.LogFmt())
	logging.SetDefault(log)

	conn := connection.Blank(cfg.CacheCapacity(), cfg.DefaultTablesDir, log)

	dbPath := CLI.Database
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	if dbPath != "" {
		if err := conn.Connect(dbPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	repl := &repl{conn: conn, log: log}
	if err := repl.run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type repl struct {
	conn  *connection.Connection
	log   *slog.Logger
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".yarrd_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("yarrd - type .exit to quit, .help for meta-commands")

	for {
		prompt := "yarrd> "
		if r.conn.IsActive() {
			prompt = "yarrd (open)> "
		}

		line, err := r.liner.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		if strings.HasPrefix(line, ".") {
			if r.runMetaCommand(line) == connection.OutcomeExit {
				break
			}
			continue
		}

		r.runStatement(line)
	}

	r.saveHistory()
	if err := r.conn.Close(); err != nil {
		r.log.Error("closing database on exit failed", "error", err)
	}
	return nil
}

func (r *repl) runMetaCommand(line string) connection.Outcome {
	if strings.Fields(line)[0] == ".help" {
		r.printHelp()
		return connection.OutcomeContinue
	}
	cmd := connection.ParseMetaCommand(line)
	outcome, err := cmd.Execute(r.conn)
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
	return outcome
}

func (r *repl) runStatement(line string) {
	db, err := r.conn.RequireActive()
	if err != nil {
		fmt.Println("error: no database open (use .createdb or .connect)")
		return
	}

	cmd, err := sqlfront.Parse(line)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	result, err := db.Execute(cmd)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if result != nil {
		printResult(result)
	}
}

func printResult(result *yarrd.QueryResult) {
	if len(result.Rows) == 0 {
		fmt.Println("(0 rows)")
		return
	}

	widths := make([]int, len(result.ColumnNames))
	for i, name := range result.ColumnNames {
		widths[i] = len(name)
	}
	rendered := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		rendered[i] = make([]string, len(row))
		for j, v := range row {
			text := v.String()
			rendered[i][j] = text
			if len(text) > widths[j] {
				widths[j] = len(text)
			}
		}
	}

	printRow(result.ColumnNames, widths)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	printRow(sep, widths)
	for _, row := range rendered {
		printRow(row, widths)
	}
	fmt.Printf("(%d row%s)\n", len(result.Rows), plural(len(result.Rows)))
}

func printRow(cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c + strings.Repeat(" ", widths[i]-len(c))
	}
	fmt.Println(strings.Join(parts, " | "))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) completer(line string) []string {
	commands := []string{
		".exit", ".quit", ".close", ".connect", ".createdb", ".dropdb", ".help",
		"create table", "drop table", "select", "insert into", "update",
		"delete from", "alter table", "create index", "drop index", "vacuum",
	}
	var completions []string
	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}
	return completions
}

func (r *repl) printHelp() {
	fmt.Println("Meta-commands:")
	fmt.Println("  .createdb <schema-file> [tables-dir]   Create and open a new database")
	fmt.Println("  .connect <schema-file>                 Open an existing database")
	fmt.Println("  .dropdb <schema-file>                  Delete a database's schema file")
	fmt.Println("  .close                                 Close the currently open database")
	fmt.Println("  .exit / .quit                          Exit")
	fmt.Println()
	fmt.Println("Otherwise, lines are parsed as SQL statements against the open database.")
}
