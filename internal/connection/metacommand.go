package connection

import (
	"fmt"
	"strings"
)

// MetaCommandKind tags the variant of a parsed MetaCommand.
type MetaCommandKind int

const (
	MetaVoid MetaCommandKind = iota
	MetaUnknown
	MetaWrongArgs
	MetaExit
	MetaCreateDB
	MetaDropDB
	MetaConnect
	MetaClose
)

// MetaCommand is a parsed `.`-prefixed REPL command.
type MetaCommand struct {
	Kind      MetaCommandKind
	Raw       string
	DBPath    string
	TablesDir string
}

// Outcome is what the REPL should do after executing a MetaCommand.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeExit
)

// ParseMetaCommand parses a line beginning with `.` into a MetaCommand. A
// line that does not begin with `.` is not a meta-command at all; callers
// should check that themselves before calling this.
func ParseMetaCommand(line string) MetaCommand {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return MetaCommand{Kind: MetaVoid, Raw: line}
	}
	switch fields[0] {
	case ".exit", ".quit":
		return MetaCommand{Kind: MetaExit, Raw: line}
	case ".close":
		return MetaCommand{Kind: MetaClose, Raw: line}
	case ".connect":
		if len(fields) != 2 {
			return MetaCommand{Kind: MetaWrongArgs, Raw: line}
		}
		return MetaCommand{Kind: MetaConnect, Raw: line, DBPath: fields[1]}
	case ".createdb":
		if len(fields) < 2 || len(fields) > 3 {
			return MetaCommand{Kind: MetaWrongArgs, Raw: line}
		}
		cmd := MetaCommand{Kind: MetaCreateDB, Raw: line, DBPath: fields[1]}
		if len(fields) == 3 {
			cmd.TablesDir = fields[2]
		}
		return cmd
	case ".dropdb":
		if len(fields) != 2 {
			return MetaCommand{Kind: MetaWrongArgs, Raw: line}
		}
		return MetaCommand{Kind: MetaDropDB, Raw: line, DBPath: fields[1]}
	default:
		return MetaCommand{Kind: MetaUnknown, Raw: line}
	}
}

// Execute runs cmd against conn, returning whether the REPL should keep
// going and any user-facing error.
func (cmd MetaCommand) Execute(conn *Connection) (Outcome, error) {
	switch cmd.Kind {
	case MetaVoid:
		return OutcomeContinue, nil
	case MetaExit:
		return OutcomeExit, nil
	case MetaClose:
		return OutcomeContinue, conn.Close()
	case MetaConnect:
		return OutcomeContinue, conn.Connect(cmd.DBPath)
	case MetaCreateDB:
		return OutcomeContinue, conn.CreateDB(cmd.DBPath, cmd.TablesDir)
	case MetaDropDB:
		return OutcomeContinue, conn.DropDB(cmd.DBPath)
	case MetaWrongArgs:
		return OutcomeContinue, fmt.Errorf("meta-command %q: wrong number of arguments", cmd.Raw)
	case MetaUnknown:
		return OutcomeContinue, fmt.Errorf("unknown meta-command %q", cmd.Raw)
	default:
		return OutcomeContinue, fmt.Errorf("unhandled meta-command kind %d", cmd.Kind)
	}
}
