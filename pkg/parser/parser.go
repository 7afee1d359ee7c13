// Package parser implements the recursive-descent parser for miniscript.
//
// Parser Architecture:
//
// The parser keeps a two-token lookahead window (cur, peek) over the lexer's
// token stream, the same shape as the teacher's smog parser. Expressions are
// parsed with a precedence-climbing core; statements dispatch on the current
// token's keyword.
//
// Precedence (low to high), per spec §4.2:
//
//	assignment (right-assoc)
//	||
//	&&
//	== !=
//	< <= > >=
//	+ -
//	* / %
//	unary prefix
//	primary
//
// Error Handling:
//
// Syntax errors are accumulated rather than aborting the parse. On error the
// parser synchronizes to the next statement boundary (a `;` or `}`) and
// keeps going, so a single pass can report multiple mistakes.
package parser

import (
	"fmt"
	"strconv"

	"github.com/miniscript-lang/miniscript/pkg/ast"
	"github.com/miniscript-lang/miniscript/pkg/lexer"
	"github.com/miniscript-lang/miniscript/pkg/vmerrors"
)

// Parser converts a token stream into an AST.
type Parser struct {
	l    *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token

	errors []*vmerrors.CompileError
}

// New creates a parser over the given source text.
func New(input string) *Parser {
	p := &Parser{l: lexer.New(input)}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) addError(loc vmerrors.Location, format string, args ...interface{}) {
	p.errors = append(p.errors, vmerrors.NewCompileError(vmerrors.ParseError, loc, fmt.Sprintf(format, args...)))
}

func (p *Parser) expectedError(expected string) {
	p.addError(p.cur.Location, "unexpected token")
	p.errors[len(p.errors)-1].Expected = expected
	p.errors[len(p.errors)-1].Actual = p.cur.Lexeme
}

// Errors returns every error accumulated while parsing (syntax errors from
// this parser plus lex errors surfaced by the underlying lexer).
func (p *Parser) Errors() []*vmerrors.CompileError {
	all := append([]*vmerrors.CompileError{}, p.l.Errors()...)
	return append(all, p.errors...)
}

// Parse parses the whole program and returns the AST. Errors accumulated
// along the way are available via Errors(); the returned tree may still be
// partially built if Errors() is non-empty, to support tooling that wants
// the best-effort tree anyway.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := &ast.Program{Base: ast.At(p.cur.Location)}
	for p.cur.Type != lexer.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Body = append(prog.Body, stmt)
		}
	}
	if errs := p.Errors(); len(errs) > 0 {
		return prog, fmt.Errorf("%d parse error(s), first: %v", len(errs), errs[0])
	}
	return prog, nil
}

// synchronize skips tokens until a likely statement boundary, so one syntax
// error doesn't cascade into a wall of spurious follow-on errors.
func (p *Parser) synchronize() {
	for p.cur.Type != lexer.EOF && p.cur.Type != lexer.RBRACE {
		if p.cur.Type == lexer.SEMI {
			p.advance()
			return
		}
		p.advance()
	}
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case lexer.LET:
		return p.parseVariableDeclaration()
	case lexer.IF:
		return p.parseIfStatement()
	case lexer.WHILE:
		return p.parseWhileStatement()
	case lexer.RETURN:
		return p.parseReturnStatement()
	case lexer.FUNCTION:
		return p.parseFunctionDeclaration()
	case lexer.LBRACE:
		return p.parseBlockStatement()
	default:
		return p.parseExpressionStatement()
	}
}

// parseVariableDeclaration parses `let name [= expr] [;]`.
func (p *Parser) parseVariableDeclaration() ast.Statement {
	loc := p.cur.Location
	p.advance() // consume 'let'

	if p.cur.Type != lexer.IDENTIFIER {
		p.expectedError("identifier")
		p.synchronize()
		return nil
	}
	name := p.cur.Lexeme
	p.advance()

	var init ast.Expression
	if p.cur.Type == lexer.ASSIGN {
		p.advance()
		init = p.parseExpression()
	}

	p.consumeOptionalSemi()
	return &ast.VariableDeclaration{Base: ast.At(loc), Name: name, Initializer: init}
}

// parseIfStatement parses `if (cond) stmt [else stmt]`, supporting both
// block and single-statement bodies. `else if` chains parse as nested
// IfStatements, per spec §4.2.
func (p *Parser) parseIfStatement() ast.Statement {
	loc := p.cur.Location
	p.advance() // consume 'if'

	if p.cur.Type != lexer.LPAREN {
		p.expectedError("(")
		p.synchronize()
		return nil
	}
	p.advance()
	cond := p.parseExpression()
	if p.cur.Type != lexer.RPAREN {
		p.expectedError(")")
		p.synchronize()
		return nil
	}
	p.advance()

	consequent := p.parseStatement()

	var alternate ast.Statement
	if p.cur.Type == lexer.ELSE {
		p.advance()
		alternate = p.parseStatement()
	}

	return &ast.IfStatement{Base: ast.At(loc), Condition: cond, Consequent: consequent, Alternate: alternate}
}

// parseWhileStatement parses `while (cond) stmt`.
func (p *Parser) parseWhileStatement() ast.Statement {
	loc := p.cur.Location
	p.advance() // consume 'while'

	if p.cur.Type != lexer.LPAREN {
		p.expectedError("(")
		p.synchronize()
		return nil
	}
	p.advance()
	cond := p.parseExpression()
	if p.cur.Type != lexer.RPAREN {
		p.expectedError(")")
		p.synchronize()
		return nil
	}
	p.advance()

	body := p.parseStatement()
	return &ast.WhileStatement{Base: ast.At(loc), Condition: cond, Body: body}
}

// parseReturnStatement parses `return [expr] [;]`.
func (p *Parser) parseReturnStatement() ast.Statement {
	loc := p.cur.Location
	p.advance() // consume 'return'

	var arg ast.Expression
	if p.cur.Type != lexer.SEMI && p.cur.Type != lexer.RBRACE && p.cur.Type != lexer.EOF {
		arg = p.parseExpression()
	}
	p.consumeOptionalSemi()
	return &ast.ReturnStatement{Base: ast.At(loc), Argument: arg}
}

// parseBlockStatement parses `{ stmt* }`.
func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	loc := p.cur.Location
	p.advance() // consume '{'

	block := &ast.BlockStatement{Base: ast.At(loc)}
	for p.cur.Type != lexer.RBRACE && p.cur.Type != lexer.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Body = append(block.Body, stmt)
		}
	}
	if p.cur.Type != lexer.RBRACE {
		p.expectedError("}")
	} else {
		p.advance()
	}
	return block
}

// parseFunctionDeclaration parses `function name(params) { body }`.
func (p *Parser) parseFunctionDeclaration() ast.Statement {
	loc := p.cur.Location
	p.advance() // consume 'function'

	if p.cur.Type != lexer.IDENTIFIER {
		p.expectedError("identifier")
		p.synchronize()
		return nil
	}
	name := p.cur.Lexeme
	p.advance()

	if p.cur.Type != lexer.LPAREN {
		p.expectedError("(")
		p.synchronize()
		return nil
	}
	p.advance()

	var params []string
	for p.cur.Type != lexer.RPAREN && p.cur.Type != lexer.EOF {
		if p.cur.Type != lexer.IDENTIFIER {
			p.expectedError("parameter name")
			break
		}
		params = append(params, p.cur.Lexeme)
		p.advance()
		if p.cur.Type == lexer.COMMA {
			p.advance()
		}
	}
	if p.cur.Type != lexer.RPAREN {
		p.expectedError(")")
		p.synchronize()
		return nil
	}
	p.advance()

	if p.cur.Type != lexer.LBRACE {
		p.expectedError("{")
		p.synchronize()
		return nil
	}
	body := p.parseBlockStatement()

	return &ast.FunctionDeclaration{Base: ast.At(loc), Name: name, Parameters: params, Body: body}
}

// parseExpressionStatement wraps a bare expression. The trailing semicolon
// is optional (spec §4.2 "semicolon optional per source behavior").
func (p *Parser) parseExpressionStatement() ast.Statement {
	loc := p.cur.Location
	expr := p.parseExpression()
	if expr == nil {
		p.synchronize()
		return nil
	}
	p.consumeOptionalSemi()
	return &ast.ExpressionStatement{Base: ast.At(loc), Expr: expr}
}

func (p *Parser) consumeOptionalSemi() {
	if p.cur.Type == lexer.SEMI {
		p.advance()
	}
}

// --- Expressions ---

func (p *Parser) parseExpression() ast.Expression {
	return p.parseAssignment()
}

// parseAssignment implements right-associative `target = value`. Only a
// bare identifier is a valid assignment target; anything else is recorded
// here as an "invalid assignment target" ParseError, so AssignmentExpression
// nodes are only ever built from an Identifier.
func (p *Parser) parseAssignment() ast.Expression {
	left := p.parseLogicalOr()
	if p.cur.Type != lexer.ASSIGN {
		return left
	}
	loc := p.cur.Location
	ident, ok := left.(*ast.Identifier)
	if !ok {
		p.addError(loc, "invalid assignment target")
		p.advance()
		p.parseAssignment()
		return left
	}
	p.advance() // consume '='
	right := p.parseAssignment()
	return &ast.AssignmentExpression{Base: ast.At(loc), Target: ident.Name, Right: right}
}

func (p *Parser) parseLogicalOr() ast.Expression {
	left := p.parseLogicalAnd()
	for p.cur.Type == lexer.OR {
		loc := p.cur.Location
		p.advance()
		right := p.parseLogicalAnd()
		left = &ast.BinaryExpression{Base: ast.At(loc), Left: left, Operator: "||", Right: right}
	}
	return left
}

func (p *Parser) parseLogicalAnd() ast.Expression {
	left := p.parseEquality()
	for p.cur.Type == lexer.AND {
		loc := p.cur.Location
		p.advance()
		right := p.parseEquality()
		left = &ast.BinaryExpression{Base: ast.At(loc), Left: left, Operator: "&&", Right: right}
	}
	return left
}

func (p *Parser) parseEquality() ast.Expression {
	left := p.parseRelational()
	for p.cur.Type == lexer.EQ || p.cur.Type == lexer.NEQ {
		op := p.cur.Lexeme
		loc := p.cur.Location
		p.advance()
		right := p.parseRelational()
		left = &ast.BinaryExpression{Base: ast.At(loc), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseRelational() ast.Expression {
	left := p.parseAdditive()
	for p.cur.Type == lexer.LT || p.cur.Type == lexer.GT || p.cur.Type == lexer.LE || p.cur.Type == lexer.GE {
		op := p.cur.Lexeme
		loc := p.cur.Location
		p.advance()
		right := p.parseAdditive()
		left = &ast.BinaryExpression{Base: ast.At(loc), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for p.cur.Type == lexer.PLUS || p.cur.Type == lexer.MINUS {
		op := p.cur.Lexeme
		loc := p.cur.Location
		p.advance()
		right := p.parseMultiplicative()
		left = &ast.BinaryExpression{Base: ast.At(loc), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parseUnary()
	for p.cur.Type == lexer.STAR || p.cur.Type == lexer.SLASH || p.cur.Type == lexer.PERCENT {
		op := p.cur.Lexeme
		loc := p.cur.Location
		p.advance()
		right := p.parseUnary()
		left = &ast.BinaryExpression{Base: ast.At(loc), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	if p.cur.Type == lexer.MINUS || p.cur.Type == lexer.PLUS {
		op := p.cur.Lexeme
		loc := p.cur.Location
		p.advance()
		operand := p.parseUnary()
		return &ast.UnaryExpression{Base: ast.At(loc), Operator: op, Operand: operand}
	}
	return p.parseCallOrPrimary()
}

// parseCallOrPrimary parses a primary expression, then a call suffix if the
// primary was an identifier directly followed by '(' (call expressions are
// left-associative on a primary expression, spec §4.2).
func (p *Parser) parseCallOrPrimary() ast.Expression {
	loc := p.cur.Location

	if p.cur.Type == lexer.IDENTIFIER && p.peek.Type == lexer.LPAREN {
		name := p.cur.Lexeme
		p.advance() // consume identifier
		p.advance() // consume '('

		var args []ast.Expression
		for p.cur.Type != lexer.RPAREN && p.cur.Type != lexer.EOF {
			args = append(args, p.parseExpression())
			if p.cur.Type == lexer.COMMA {
				p.advance()
			}
		}
		if p.cur.Type != lexer.RPAREN {
			p.expectedError(")")
		} else {
			p.advance()
		}
		return &ast.CallExpression{Base: ast.At(loc), Callee: name, Arguments: args}
	}

	return p.parsePrimary()
}

func (p *Parser) parsePrimary() ast.Expression {
	loc := p.cur.Location
	switch p.cur.Type {
	case lexer.NUMBER:
		n, err := strconv.ParseFloat(p.cur.Lexeme, 64)
		if err != nil {
			p.addError(loc, "invalid number literal %q", p.cur.Lexeme)
			p.advance()
			return nil
		}
		p.advance()
		return ast.NewNumberLiteral(loc, n)

	case lexer.STRING:
		s := p.cur.Lexeme
		p.advance()
		return ast.NewStringLiteral(loc, s)

	case lexer.TRUE:
		p.advance()
		return ast.NewBooleanLiteral(loc, true)

	case lexer.FALSE:
		p.advance()
		return ast.NewBooleanLiteral(loc, false)

	case lexer.IDENTIFIER:
		name := p.cur.Lexeme
		p.advance()
		return &ast.Identifier{Base: ast.At(loc), Name: name}

	case lexer.LPAREN:
		p.advance()
		expr := p.parseExpression()
		if p.cur.Type != lexer.RPAREN {
			p.expectedError(")")
		} else {
			p.advance()
		}
		return expr

	default:
		p.addError(loc, "unexpected token %q", p.cur.Lexeme)
		p.advance()
		return nil
	}
}
