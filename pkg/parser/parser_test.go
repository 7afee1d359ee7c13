package parser

import (
	"testing"

	"github.com/miniscript-lang/miniscript/pkg/ast"
)

func TestParse_VariableDeclaration(t *testing.T) {
	prog, err := New(`let x = 5;`).Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prog.Body) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Body))
	}
	decl, ok := prog.Body[0].(*ast.VariableDeclaration)
	if !ok {
		t.Fatalf("expected *ast.VariableDeclaration, got %T", prog.Body[0])
	}
	if decl.Name != "x" {
		t.Fatalf("expected name x, got %s", decl.Name)
	}
	lit, ok := decl.Initializer.(*ast.Literal)
	if !ok || lit.Kind != ast.NumberLiteral || lit.Num != 5 {
		t.Fatalf("expected initializer 5, got %#v", decl.Initializer)
	}
}

func TestParse_VariableDeclarationNoInitializer(t *testing.T) {
	prog, err := New(`let x;`).Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decl := prog.Body[0].(*ast.VariableDeclaration)
	if decl.Initializer != nil {
		t.Fatalf("expected nil initializer, got %#v", decl.Initializer)
	}
}

func TestParse_OperatorPrecedence(t *testing.T) {
	prog, err := New(`1 + 2 * 3;`).Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stmt := prog.Body[0].(*ast.ExpressionStatement)
	bin := stmt.Expr.(*ast.BinaryExpression)
	if bin.Operator != "+" {
		t.Fatalf("expected top-level +, got %s", bin.Operator)
	}
	right, ok := bin.Right.(*ast.BinaryExpression)
	if !ok || right.Operator != "*" {
		t.Fatalf("expected right side to be a * expression, got %#v", bin.Right)
	}
}

func TestParse_LogicalShortCircuitPrecedence(t *testing.T) {
	prog, err := New(`a == 1 && b == 2 || c == 3;`).Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stmt := prog.Body[0].(*ast.ExpressionStatement)
	top := stmt.Expr.(*ast.BinaryExpression)
	if top.Operator != "||" {
		t.Fatalf("expected top-level ||, got %s", top.Operator)
	}
	left := top.Left.(*ast.BinaryExpression)
	if left.Operator != "&&" {
		t.Fatalf("expected && under ||, got %s", left.Operator)
	}
}

func TestParse_IfElseIfChain(t *testing.T) {
	prog, err := New(`if (a) { } else if (b) { } else { }`).Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outer := prog.Body[0].(*ast.IfStatement)
	inner, ok := outer.Alternate.(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected nested IfStatement for else-if, got %T", outer.Alternate)
	}
	if inner.Alternate == nil {
		t.Fatalf("expected trailing else block")
	}
}

func TestParse_FunctionDeclaration(t *testing.T) {
	prog, err := New(`function add(a, b) { return a + b; }`).Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn := prog.Body[0].(*ast.FunctionDeclaration)
	if fn.Name != "add" {
		t.Fatalf("expected name add, got %s", fn.Name)
	}
	if len(fn.Parameters) != 2 || fn.Parameters[0] != "a" || fn.Parameters[1] != "b" {
		t.Fatalf("unexpected parameters: %v", fn.Parameters)
	}
	if len(fn.Body.Body) != 1 {
		t.Fatalf("expected 1 statement in body, got %d", len(fn.Body.Body))
	}
}

func TestParse_CallExpression(t *testing.T) {
	prog, err := New(`print(1, 2, "three");`).Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stmt := prog.Body[0].(*ast.ExpressionStatement)
	call := stmt.Expr.(*ast.CallExpression)
	if call.Callee != "print" {
		t.Fatalf("expected callee print, got %s", call.Callee)
	}
	if len(call.Arguments) != 3 {
		t.Fatalf("expected 3 arguments, got %d", len(call.Arguments))
	}
}

func TestParse_AssignmentIsRightAssociative(t *testing.T) {
	prog, err := New(`a = b = 1;`).Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stmt := prog.Body[0].(*ast.ExpressionStatement)
	outer := stmt.Expr.(*ast.AssignmentExpression)
	if outer.Target != "a" {
		t.Fatalf("expected outer target a, got %s", outer.Target)
	}
	inner, ok := outer.Right.(*ast.AssignmentExpression)
	if !ok || inner.Target != "b" {
		t.Fatalf("expected nested assignment to b, got %#v", outer.Right)
	}
}

func TestParse_InvalidAssignmentTargetRecordsError(t *testing.T) {
	_, err := New(`1 = 2;`).Parse()
	if err == nil {
		t.Fatalf("expected a parse error for an invalid assignment target")
	}
}

func TestParse_SynchronizesAfterError(t *testing.T) {
	p := New(`let = ; let y = 1;`)
	prog, err := p.Parse()
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	var foundY bool
	for _, stmt := range prog.Body {
		if decl, ok := stmt.(*ast.VariableDeclaration); ok && decl.Name == "y" {
			foundY = true
		}
	}
	if !foundY {
		t.Fatalf("expected parser to recover and still parse the second declaration")
	}
}

func TestParse_MissingClosingParenIsError(t *testing.T) {
	_, err := New(`if (a { }`).Parse()
	if err == nil {
		t.Fatalf("expected a parse error for the missing ')'")
	}
}
