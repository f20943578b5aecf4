package yarrd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lindeneg/yarrd/internal/xerr"
)

// schemaToken is one lexical unit of a schema-file table-definition line:
// a bare word, a double-quoted string literal, or one of the punctuation
// runes `,`, `;`, `(`, `)`.
type schemaToken struct {
	text    string
	literal bool
}

func tokenizeSchemaLine(line string) ([]schemaToken, error) {
	var tokens []schemaToken
	runes := []rune(line)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			i++
		case r == ',' || r == ';' || r == '(' || r == ')':
			tokens = append(tokens, schemaToken{text: string(r)})
			i++
		case r == '"':
			j := i + 1
			var sb strings.Builder
			for j < len(runes) && runes[j] != '"' {
				sb.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("schema: unterminated string literal: %w", &xerr.SchemaError{Detail: line})
			}
			tokens = append(tokens, schemaToken{text: sb.String(), literal: true})
			i = j + 1
		default:
			j := i
			for j < len(runes) && !strings.ContainsRune(" \t,;()", runes[j]) {
				j++
			}
			tokens = append(tokens, schemaToken{text: string(runes[i:j])})
			i = j
		}
	}
	return tokens, nil
}

type schemaCursor struct {
	tokens []schemaToken
	pos    int
}

func (c *schemaCursor) done() bool { return c.pos >= len(c.tokens) }

func (c *schemaCursor) peek() (schemaToken, bool) {
	if c.done() {
		return schemaToken{}, false
	}
	return c.tokens[c.pos], true
}

func (c *schemaCursor) next() (schemaToken, bool) {
	tok, ok := c.peek()
	if ok {
		c.pos++
	}
	return tok, ok
}

func (c *schemaCursor) expectPunct(p string) error {
	tok, ok := c.next()
	if !ok || tok.literal || tok.text != p {
		return fmt.Errorf("schema: expected %q: %w", p, &xerr.SchemaError{Detail: p})
	}
	return nil
}

// ParseSchemaLine parses one table-definition line of the schema-file
// grammar:
//
//	name row_count col1 type1 [constraint...] , col2 type2 [constraint...] ... [; idx_col idx_name , ... ;]
func ParseSchemaLine(line string) (name string, rowCount int64, columns []Column, indexes []IndexSpec, err error) {
	tokens, err := tokenizeSchemaLine(line)
	if err != nil {
		return "", 0, nil, nil, err
	}
	c := &schemaCursor{tokens: tokens}

	nameTok, ok := c.next()
	if !ok {
		return "", 0, nil, nil, fmt.Errorf("schema: empty table definition: %w", &xerr.SchemaError{Detail: line})
	}
	name = nameTok.text

	countTok, ok := c.next()
	if !ok {
		return "", 0, nil, nil, fmt.Errorf("schema: missing row count: %w", &xerr.SchemaError{Detail: line})
	}
	rowCount, convErr := strconv.ParseInt(countTok.text, 10, 64)
	if convErr != nil {
		return "", 0, nil, nil, fmt.Errorf("schema: invalid row count %q: %w", countTok.text, &xerr.SchemaError{Detail: line})
	}

	for !c.done() {
		tok, _ := c.peek()
		if tok.text == ";" {
			break
		}
		col, parseErr := parseColumnDef(c)
		if parseErr != nil {
			return "", 0, nil, nil, parseErr
		}
		columns = append(columns, col)
		if next, ok := c.peek(); ok && next.text == "," {
			c.next()
		}
	}

	if !c.done() {
		if err := c.expectPunct(";"); err != nil {
			return "", 0, nil, nil, err
		}
		for {
			tok, ok := c.peek()
			if !ok || tok.text == ";" {
				break
			}
			colTok, ok := c.next()
			if !ok {
				return "", 0, nil, nil, fmt.Errorf("schema: expected index column: %w", xerr.Schema)
			}
			nameTok, ok := c.next()
			if !ok {
				return "", 0, nil, nil, fmt.Errorf("schema: expected index name for column %q: %w", colTok.text, xerr.Schema)
			}
			indexes = append(indexes, IndexSpec{Column: colTok.text, Name: nameTok.text})
			if next, ok := c.peek(); ok && next.text == "," {
				c.next()
			}
		}
		if err := c.expectPunct(";"); err != nil {
			return "", 0, nil, nil, err
		}
	}

	return name, rowCount, columns, indexes, nil
}

func parseColumnDef(c *schemaCursor) (Column, error) {
	nameTok, ok := c.next()
	if !ok {
		return Column{}, fmt.Errorf("schema: expected column name: %w", xerr.Schema)
	}
	typeTok, ok := c.next()
	if !ok {
		return Column{}, fmt.Errorf("schema: expected column type after %q: %w", nameTok.text, xerr.Schema)
	}
	colType, ok := ParseColumnType(typeTok.text)
	if !ok {
		return Column{}, fmt.Errorf("schema: unknown column type %q: %w", typeTok.text, xerr.Schema)
	}
	col := Column{Name: nameTok.text, Type: colType}

	for {
		tok, ok := c.peek()
		if !ok || tok.text == "," || tok.text == ";" {
			break
		}
		switch tok.text {
		case "not":
			c.next()
			nullTok, ok := c.next()
			if !ok || nullTok.text != "null" {
				return Column{}, fmt.Errorf("schema: expected 'null' after 'not': %w", xerr.Schema)
			}
			col.Constraints = append(col.Constraints, Constraint{Kind: ConstraintNotNull})
		case "default":
			c.next()
			valTok, ok := c.next()
			if !ok {
				return Column{}, fmt.Errorf("schema: expected default literal: %w", xerr.Schema)
			}
			v, err := literalToValue(colType, valTok)
			if err != nil {
				return Column{}, err
			}
			col.Constraints = append(col.Constraints, Constraint{Kind: ConstraintDefault, Default: v})
		case "check":
			c.next()
			cond, err := parseCheckClause(c)
			if err != nil {
				return Column{}, err
			}
			col.Constraints = append(col.Constraints, Constraint{Kind: ConstraintCheck, Check: cond})
		default:
			return Column{}, fmt.Errorf("schema: unknown column constraint %q: %w", tok.text, xerr.Schema)
		}
	}
	return col, nil
}

// parseCheckClause parses `( ident op literal )`, immediately after
// consuming the `check` keyword.
func parseCheckClause(c *schemaCursor) (BinaryCondition, error) {
	if err := c.expectPunct("("); err != nil {
		return BinaryCondition{}, err
	}
	identTok, ok := c.next()
	if !ok {
		return BinaryCondition{}, fmt.Errorf("schema: expected identifier in check clause: %w", xerr.Schema)
	}
	opTok, ok := c.next()
	if !ok {
		return BinaryCondition{}, fmt.Errorf("schema: expected operator in check clause: %w", xerr.Schema)
	}
	op, ok := parseOperatorToken(opTok.text)
	if !ok {
		return BinaryCondition{}, fmt.Errorf("schema: unknown operator %q in check clause: %w", opTok.text, xerr.Schema)
	}
	valTok, ok := c.next()
	if !ok {
		return BinaryCondition{}, fmt.Errorf("schema: expected literal in check clause: %w", xerr.Schema)
	}
	if err := c.expectPunct(")"); err != nil {
		return BinaryCondition{}, err
	}
	right, err := literalOrIdentifier(valTok)
	if err != nil {
		return BinaryCondition{}, err
	}
	return BinaryCondition{Left: NewIdentifier(identTok.text), Right: right, Operator: op}, nil
}

func parseOperatorToken(s string) (CmpOperator, bool) {
	switch s {
	case "<":
		return OpLess, true
	case ">":
		return OpGreater, true
	case "=":
		return OpEquals, true
	case "<>", "!=":
		return OpNotEquals, true
	case "<=":
		return OpLessEquals, true
	case ">=":
		return OpGreaterEquals, true
	default:
		return 0, false
	}
}

func literalOrIdentifier(tok schemaToken) (SqlValue, error) {
	if tok.literal {
		return NewString(tok.text), nil
	}
	if i, err := strconv.ParseInt(tok.text, 10, 64); err == nil {
		return NewInteger(i), nil
	}
	if f, err := strconv.ParseFloat(tok.text, 64); err == nil {
		return NewFloat(f), nil
	}
	return NewString(tok.text), nil
}

func literalToValue(t ColumnType, tok schemaToken) (SqlValue, error) {
	switch t {
	case TypeInteger:
		i, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return SqlValue{}, fmt.Errorf("schema: invalid integer literal %q: %w", tok.text, xerr.Schema)
		}
		return NewInteger(i), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return SqlValue{}, fmt.Errorf("schema: invalid float literal %q: %w", tok.text, xerr.Schema)
		}
		return NewFloat(f), nil
	case TypeString:
		return NewString(tok.text), nil
	default:
		return SqlValue{}, fmt.Errorf("schema: unknown column type: %w", xerr.Schema)
	}
}

// FormatSchemaLine renders a table's current definition back into the
// schema-file grammar, for persisting on flush.
func FormatSchemaLine(t *Table) string {
	var sb strings.Builder
	sb.WriteString(t.Name)
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatInt(t.RowCount, 10))
	for i, col := range t.Columns {
		sb.WriteByte(' ')
		sb.WriteString(col.Name)
		sb.WriteByte(' ')
		sb.WriteString(col.Type.String())
		for _, c := range col.Constraints {
			sb.WriteByte(' ')
			switch c.Kind {
			case ConstraintNotNull:
				sb.WriteString("not null")
			case ConstraintDefault:
				sb.WriteString("default ")
				sb.WriteString(formatLiteral(c.Default))
			case ConstraintCheck:
				sb.WriteString("check(")
				sb.WriteString(c.Check.Left.String())
				sb.WriteByte(' ')
				sb.WriteString(c.Check.Operator.String())
				sb.WriteByte(' ')
				sb.WriteString(formatLiteral(c.Check.Right))
				sb.WriteByte(')')
			}
		}
		if i != len(t.Columns)-1 {
			sb.WriteString(" ,")
		}
	}
	specs := t.IndexSpecs()
	if len(specs) > 0 {
		sb.WriteString(" ;")
		for i, spec := range specs {
			if i > 0 {
				sb.WriteString(" ,")
			}
			sb.WriteByte(' ')
			sb.WriteString(spec.Column)
			sb.WriteByte(' ')
			sb.WriteString(spec.Name)
		}
		sb.WriteString(" ;")
	}
	return sb.String()
}

func formatLiteral(v SqlValue) string {
	if v.Kind == KindString {
		return `"` + v.Str + `"`
	}
	return v.String()
}
