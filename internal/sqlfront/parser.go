package sqlfront

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"

	yarrd "github.com/lindeneg/yarrd"
	"github.com/lindeneg/yarrd/internal/xerr"
)

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *parser) expectKeyword(kw string) error {
	tok := p.next()
	if tok.Kind != TokKeyword || tok.Text != kw {
		return fmt.Errorf("sqlfront: expected %q, got %q: %w", kw, tok.Text, xerr.Syntax)
	}
	return nil
}

func (p *parser) expectPunct(punct string) error {
	tok := p.next()
	if tok.Kind != TokPunct || tok.Text != punct {
		return fmt.Errorf("sqlfront: expected %q, got %q: %w", punct, tok.Text, xerr.Syntax)
	}
	return nil
}

func (p *parser) expectIdent() (string, error) {
	tok := p.next()
	if tok.Kind != TokIdent {
		return "", fmt.Errorf("sqlfront: expected identifier, got %q: %w", tok.Text, xerr.Syntax)
	}
	return tok.Text, nil
}

func (p *parser) checkKeyword(kw string) bool {
	tok := p.peek()
	return tok.Kind == TokKeyword && tok.Text == kw
}

func (p *parser) checkPunct(punct string) bool {
	tok := p.peek()
	return tok.Kind == TokPunct && tok.Text == punct
}

// Parse lexes and parses a single statement into a yarrd.Command.
func Parse(stmt string) (yarrd.Command, error) {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return yarrd.Command{Kind: yarrd.CmdVoid}, nil
	}
	if looksLikeSelect(trimmed) {
		if cmd, ok := tryFastSelect(trimmed); ok {
			return cmd, nil
		}
	}
	tokens, err := Lex(trimmed)
	if err != nil {
		return yarrd.Command{}, err
	}
	p := &parser{tokens: tokens}
	return p.parseStatement()
}

func looksLikeSelect(stmt string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(stmt)), "select")
}

// tryFastSelect attempts to parse stmt with the general-purpose sqlparser
// grammar; it only succeeds for the subset (no joins, no subqueries, no
// aggregation) this engine actually supports, falling through to the
// hand-rolled parser otherwise.
func tryFastSelect(stmt string) (yarrd.Command, bool) {
	parsed, err := sqlparser.Parse(stmt)
	if err != nil {
		return yarrd.Command{}, false
	}
	sel, ok := parsed.(*sqlparser.Select)
	if !ok || len(sel.From) != 1 {
		return yarrd.Command{}, false
	}
	tableExpr, ok := sel.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return yarrd.Command{}, false
	}
	tableName, ok := tableExpr.Expr.(sqlparser.TableName)
	if !ok {
		return yarrd.Command{}, false
	}

	var columns []string
	for _, expr := range sel.SelectExprs {
		switch e := expr.(type) {
		case *sqlparser.StarExpr:
			columns = nil
			continue
		case *sqlparser.AliasedExpr:
			colName, ok := e.Expr.(*sqlparser.ColName)
			if !ok {
				return yarrd.Command{}, false
			}
			columns = append(columns, colName.Name.String())
		default:
			return yarrd.Command{}, false
		}
	}

	var where *yarrd.BinaryCondition
	if sel.Where != nil {
		cond, ok := sqlExprToCondition(sel.Where.Expr)
		if !ok {
			return yarrd.Command{}, false
		}
		where = &cond
	}

	return yarrd.Command{
		Kind:          yarrd.CmdSelect,
		Table:         tableName.Name.String(),
		SelectColumns: columns,
		Where:         where,
	}, true
}

func sqlExprToCondition(expr sqlparser.Expr) (yarrd.BinaryCondition, bool) {
	cmp, ok := expr.(*sqlparser.ComparisonExpr)
	if !ok {
		return yarrd.BinaryCondition{}, false
	}
	op, ok := sqlOperator(cmp.Operator)
	if !ok {
		return yarrd.BinaryCondition{}, false
	}
	left, ok := sqlExprToValue(cmp.Left)
	if !ok {
		return yarrd.BinaryCondition{}, false
	}
	right, ok := sqlExprToValue(cmp.Right)
	if !ok {
		return yarrd.BinaryCondition{}, false
	}
	return yarrd.BinaryCondition{Left: left, Right: right, Operator: op}, true
}

func sqlOperator(op string) (yarrd.CmpOperator, bool) {
	switch op {
	case "=":
		return yarrd.OpEquals, true
	case "!=", "<>":
		return yarrd.OpNotEquals, true
	case "<":
		return yarrd.OpLess, true
	case ">":
		return yarrd.OpGreater, true
	case "<=":
		return yarrd.OpLessEquals, true
	case ">=":
		return yarrd.OpGreaterEquals, true
	default:
		return 0, false
	}
}

func sqlExprToValue(expr sqlparser.Expr) (yarrd.SqlValue, bool) {
	switch e := expr.(type) {
	case *sqlparser.ColName:
		return yarrd.NewIdentifier(e.Name.String()), true
	case *sqlparser.SQLVal:
		switch e.Type {
		case sqlparser.IntVal:
			v, err := parseIntLiteral(string(e.Val))
			if err != nil {
				return yarrd.SqlValue{}, false
			}
			return yarrd.NewInteger(v), true
		case sqlparser.FloatVal:
			v, err := parseFloatLiteral(string(e.Val))
			if err != nil {
				return yarrd.SqlValue{}, false
			}
			return yarrd.NewFloat(v), true
		case sqlparser.StrVal:
			return yarrd.NewString(string(e.Val)), true
		default:
			return yarrd.SqlValue{}, false
		}
	case *sqlparser.NullVal:
		return yarrd.Null, true
	default:
		return yarrd.SqlValue{}, false
	}
}

func (p *parser) parseStatement() (yarrd.Command, error) {
	tok := p.peek()
	if tok.Kind != TokKeyword {
		return yarrd.Command{}, fmt.Errorf("sqlfront: expected statement keyword, got %q: %w", tok.Text, xerr.Syntax)
	}
	switch tok.Text {
	case "create":
		p.next()
		if p.checkKeyword("table") {
			return p.parseCreateTable()
		}
		if p.checkKeyword("index") {
			return p.parseCreateIndex()
		}
		return yarrd.Command{}, fmt.Errorf("sqlfront: expected TABLE or INDEX after CREATE: %w", xerr.Syntax)
	case "drop":
		p.next()
		if p.checkKeyword("table") {
			p.next()
			name, err := p.expectIdent()
			return yarrd.Command{Kind: yarrd.CmdDropTable, Table: name}, err
		}
		if p.checkKeyword("index") {
			return p.parseDropIndex()
		}
		return yarrd.Command{}, fmt.Errorf("sqlfront: expected TABLE or INDEX after DROP: %w", xerr.Syntax)
	case "insert":
		return p.parseInsert()
	case "select":
		return p.parseSelect()
	case "update":
		return p.parseUpdate()
	case "delete":
		return p.parseDelete()
	case "alter":
		return p.parseAlter()
	case "vacuum":
		p.next()
		name, err := p.expectIdent()
		return yarrd.Command{Kind: yarrd.CmdVacuum, Table: name}, err
	default:
		return yarrd.Command{}, fmt.Errorf("sqlfront: unsupported statement %q: %w", tok.Text, xerr.Syntax)
	}
}

func (p *parser) parseCreateTable() (yarrd.Command, error) {
	if err := p.expectKeyword("table"); err != nil {
		return yarrd.Command{}, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	if err := p.expectPunct("("); err != nil {
		return yarrd.Command{}, err
	}
	var columns []yarrd.Column
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return yarrd.Command{}, err
		}
		columns = append(columns, col)
		if p.checkPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return yarrd.Command{}, err
	}
	return yarrd.Command{Kind: yarrd.CmdCreateTable, Table: name, Columns: columns}, nil
}

func (p *parser) parseColumnDef() (yarrd.Column, error) {
	name, err := p.expectIdent()
	if err != nil {
		return yarrd.Column{}, err
	}
	typeTok := p.next()
	colType, ok := yarrd.ParseColumnType(typeTok.Text)
	if !ok {
		return yarrd.Column{}, fmt.Errorf("sqlfront: unknown column type %q: %w", typeTok.Text, xerr.Syntax)
	}
	col := yarrd.Column{Name: name, Type: colType}
	for {
		if p.checkKeyword("not") {
			p.next()
			if err := p.expectKeyword("null"); err != nil {
				return yarrd.Column{}, err
			}
			col.Constraints = append(col.Constraints, yarrd.Constraint{Kind: yarrd.ConstraintNotNull})
			continue
		}
		if p.checkKeyword("default") {
			p.next()
			v, err := p.parseLiteral()
			if err != nil {
				return yarrd.Column{}, err
			}
			col.Constraints = append(col.Constraints, yarrd.Constraint{Kind: yarrd.ConstraintDefault, Default: v})
			continue
		}
		if p.checkKeyword("check") {
			p.next()
			cond, err := p.parseParenCondition()
			if err != nil {
				return yarrd.Column{}, err
			}
			col.Constraints = append(col.Constraints, yarrd.Constraint{Kind: yarrd.ConstraintCheck, Check: cond})
			continue
		}
		break
	}
	return col, nil
}

func (p *parser) parseParenCondition() (yarrd.BinaryCondition, error) {
	if err := p.expectPunct("("); err != nil {
		return yarrd.BinaryCondition{}, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return yarrd.BinaryCondition{}, err
	}
	if err := p.expectPunct(")"); err != nil {
		return yarrd.BinaryCondition{}, err
	}
	return cond, nil
}

func (p *parser) parseCondition() (yarrd.BinaryCondition, error) {
	left, err := p.parseOperand()
	if err != nil {
		return yarrd.BinaryCondition{}, err
	}
	if p.checkKeyword("is") {
		p.next()
		if err := p.expectKeyword("null"); err != nil {
			return yarrd.BinaryCondition{}, err
		}
		return yarrd.BinaryCondition{Left: left, Right: yarrd.Null, Operator: yarrd.OpIsNull}, nil
	}
	opTok := p.next()
	op, ok := parseOperatorPunct(opTok.Text)
	if opTok.Kind != TokPunct || !ok {
		return yarrd.BinaryCondition{}, fmt.Errorf("sqlfront: expected comparison operator, got %q: %w", opTok.Text, xerr.Syntax)
	}
	right, err := p.parseOperand()
	if err != nil {
		return yarrd.BinaryCondition{}, err
	}
	return yarrd.BinaryCondition{Left: left, Right: right, Operator: op}, nil
}

func parseOperatorPunct(s string) (yarrd.CmpOperator, bool) {
	switch s {
	case "=":
		return yarrd.OpEquals, true
	case "<>", "!=":
		return yarrd.OpNotEquals, true
	case "<":
		return yarrd.OpLess, true
	case ">":
		return yarrd.OpGreater, true
	case "<=":
		return yarrd.OpLessEquals, true
	case ">=":
		return yarrd.OpGreaterEquals, true
	default:
		return 0, false
	}
}

// parseOperand parses a literal or a possibly-qualified identifier
// (table.column).
func (p *parser) parseOperand() (yarrd.SqlValue, error) {
	tok := p.peek()
	if tok.Kind == TokIdent {
		p.next()
		name := tok.Text
		if p.checkPunct(".") {
			p.next()
			col, err := p.expectIdent()
			if err != nil {
				return yarrd.SqlValue{}, err
			}
			name = name + "." + col
		}
		return yarrd.NewIdentifier(name), nil
	}
	return p.parseLiteral()
}

func (p *parser) parseLiteral() (yarrd.SqlValue, error) {
	tok := p.next()
	switch tok.Kind {
	case TokInteger:
		v, err := parseIntLiteral(tok.Text)
		return yarrd.NewInteger(v), err
	case TokFloat:
		v, err := parseFloatLiteral(tok.Text)
		return yarrd.NewFloat(v), err
	case TokString:
		return yarrd.NewString(tok.Text), nil
	case TokKeyword:
		if tok.Text == "null" {
			return yarrd.Null, nil
		}
	}
	return yarrd.SqlValue{}, fmt.Errorf("sqlfront: expected literal, got %q: %w", tok.Text, xerr.Syntax)
}

// parseOptionalWhere parses a trailing `WHERE <condition>` clause, if
// present.
func (p *parser) parseOptionalWhere() (*yarrd.BinaryCondition, error) {
	if !p.checkKeyword("where") {
		return nil, nil
	}
	p.next()
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	return &cond, nil
}

func (p *parser) parseSelect() (yarrd.Command, error) {
	p.next() // select
	var columns []string
	if p.checkPunct("*") {
		p.next()
	} else {
		for {
			name, err := p.expectIdent()
			if err != nil {
				return yarrd.Command{}, err
			}
			columns = append(columns, name)
			if p.checkPunct(",") {
				p.next()
				continue
			}
			break
		}
	}
	if err := p.expectKeyword("from"); err != nil {
		return yarrd.Command{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	where, err := p.parseOptionalWhere()
	if err != nil {
		return yarrd.Command{}, err
	}
	return yarrd.Command{Kind: yarrd.CmdSelect, Table: table, SelectColumns: columns, Where: where}, nil
}

func (p *parser) parseInsert() (yarrd.Command, error) {
	p.next() // insert
	if err := p.expectKeyword("into"); err != nil {
		return yarrd.Command{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	var columns []string
	if p.checkPunct("(") {
		p.next()
		for {
			name, err := p.expectIdent()
			if err != nil {
				return yarrd.Command{}, err
			}
			columns = append(columns, name)
			if p.checkPunct(",") {
				p.next()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return yarrd.Command{}, err
		}
	}
	if err := p.expectKeyword("values"); err != nil {
		return yarrd.Command{}, err
	}
	if err := p.expectPunct("("); err != nil {
		return yarrd.Command{}, err
	}
	var values []yarrd.SqlValue
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return yarrd.Command{}, err
		}
		values = append(values, v)
		if p.checkPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return yarrd.Command{}, err
	}
	return yarrd.Command{Kind: yarrd.CmdInsert, Table: table, InsertColumns: columns, InsertValues: values}, nil
}

func (p *parser) parseUpdate() (yarrd.Command, error) {
	p.next() // update
	table, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	if err := p.expectKeyword("set"); err != nil {
		return yarrd.Command{}, err
	}
	var assignments []yarrd.FieldAssignment
	for {
		col, err := p.expectIdent()
		if err != nil {
			return yarrd.Command{}, err
		}
		if err := p.expectPunct("="); err != nil {
			return yarrd.Command{}, err
		}
		v, err := p.parseLiteral()
		if err != nil {
			return yarrd.Command{}, err
		}
		assignments = append(assignments, yarrd.FieldAssignment{Column: col, Value: v})
		if p.checkPunct(",") {
			p.next()
			continue
		}
		break
	}
	where, err := p.parseOptionalWhere()
	if err != nil {
		return yarrd.Command{}, err
	}
	return yarrd.Command{Kind: yarrd.CmdUpdate, Table: table, Assignments: assignments, Where: where}, nil
}

func (p *parser) parseDelete() (yarrd.Command, error) {
	p.next() // delete
	if err := p.expectKeyword("from"); err != nil {
		return yarrd.Command{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	where, err := p.parseOptionalWhere()
	if err != nil {
		return yarrd.Command{}, err
	}
	return yarrd.Command{Kind: yarrd.CmdDelete, Table: table, Where: where}, nil
}

func (p *parser) parseCreateIndex() (yarrd.Command, error) {
	if err := p.expectKeyword("index"); err != nil {
		return yarrd.Command{}, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	if err := p.expectKeyword("on"); err != nil {
		return yarrd.Command{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	column, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	return yarrd.Command{Kind: yarrd.CmdCreateIndex, Table: table, IndexName: name, IndexColumn: column}, nil
}

func (p *parser) parseDropIndex() (yarrd.Command, error) {
	if err := p.expectKeyword("index"); err != nil {
		return yarrd.Command{}, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	if err := p.expectKeyword("on"); err != nil {
		return yarrd.Command{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	return yarrd.Command{Kind: yarrd.CmdDropIndex, Table: table, IndexName: name}, nil
}

func (p *parser) parseAlter() (yarrd.Command, error) {
	p.next() // alter
	if err := p.expectKeyword("table"); err != nil {
		return yarrd.Command{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	switch {
	case p.checkKeyword("rename"):
		p.next()
		if p.checkKeyword("column") {
			p.next()
			oldName, err := p.expectIdent()
			if err != nil {
				return yarrd.Command{}, err
			}
			if err := p.expectKeyword("to"); err != nil {
				return yarrd.Command{}, err
			}
			newName, err := p.expectIdent()
			return yarrd.Command{Kind: yarrd.CmdRenameColumn, Table: table, ConstraintColumn: oldName, NewName: newName}, err
		}
		if err := p.expectKeyword("to"); err != nil {
			return yarrd.Command{}, err
		}
		newName, err := p.expectIdent()
		return yarrd.Command{Kind: yarrd.CmdRenameTable, Table: table, NewName: newName}, err
	case p.checkKeyword("add"):
		p.next()
		if p.checkKeyword("column") {
			p.next()
			col, err := p.parseColumnDef()
			return yarrd.Command{Kind: yarrd.CmdAddColumn, Table: table, Column: col}, err
		}
		if p.checkKeyword("constraint") {
			p.next()
			return p.parseConstraintClause(table, yarrd.CmdAddConstraint)
		}
		return yarrd.Command{}, fmt.Errorf("sqlfront: expected COLUMN or CONSTRAINT after ADD: %w", xerr.Syntax)
	case p.checkKeyword("drop"):
		p.next()
		if err := p.expectKeyword("constraint"); err != nil {
			return yarrd.Command{}, err
		}
		return p.parseConstraintClause(table, yarrd.CmdDropConstraint)
	default:
		return yarrd.Command{}, fmt.Errorf("sqlfront: expected RENAME, ADD, or DROP after ALTER TABLE %s: %w", table, xerr.Syntax)
	}
}

// parseConstraintClause parses `<not null|default <lit>|check(...)> ( col )`.
func (p *parser) parseConstraintClause(table string, kind yarrd.CommandKind) (yarrd.Command, error) {
	cmd := yarrd.Command{Kind: kind, Table: table}
	switch {
	case p.checkKeyword("not"):
		p.next()
		if err := p.expectKeyword("null"); err != nil {
			return yarrd.Command{}, err
		}
		cmd.Constraint = yarrd.Constraint{Kind: yarrd.ConstraintNotNull}
		cmd.ConstraintKind = yarrd.ConstraintNotNull
	case p.checkKeyword("default"):
		p.next()
		v, err := p.parseLiteral()
		if err != nil {
			return yarrd.Command{}, err
		}
		cmd.Constraint = yarrd.Constraint{Kind: yarrd.ConstraintDefault, Default: v}
		cmd.ConstraintKind = yarrd.ConstraintDefault
	case p.checkKeyword("check"):
		p.next()
		cond, err := p.parseParenCondition()
		if err != nil {
			return yarrd.Command{}, err
		}
		cmd.Constraint = yarrd.Constraint{Kind: yarrd.ConstraintCheck, Check: cond}
		cmd.ConstraintKind = yarrd.ConstraintCheck
	default:
		return yarrd.Command{}, fmt.Errorf("sqlfront: expected NOT NULL, DEFAULT, or CHECK: %w", xerr.Syntax)
	}
	if err := p.expectPunct("("); err != nil {
		return yarrd.Command{}, err
	}
	column, err := p.expectIdent()
	if err != nil {
		return yarrd.Command{}, err
	}
	if err := p.expectPunct(")"); err != nil {
		return yarrd.Command{}, err
	}
	cmd.ConstraintColumn = column
	return cmd, nil
}
