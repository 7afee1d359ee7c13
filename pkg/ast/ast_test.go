package ast

import (
	"testing"

	"github.com/miniscript-lang/miniscript/pkg/vmerrors"
)

func TestNumberLiteralConstructor(t *testing.T) {
	loc := vmerrors.Location{Line: 2, Column: 4}
	lit := NewNumberLiteral(loc, 3.5)
	if lit.Kind != NumberLiteral || lit.Num != 3.5 {
		t.Fatalf("unexpected literal: %#v", lit)
	}
	if lit.Loc() != loc {
		t.Fatalf("expected Loc() to round-trip the constructor's location, got %#v", lit.Loc())
	}
}

func TestStringAndBooleanLiteralConstructors(t *testing.T) {
	loc := vmerrors.Location{Line: 1, Column: 1}
	str := NewStringLiteral(loc, "hi")
	if str.Kind != StringLiteral || str.Str != "hi" {
		t.Fatalf("unexpected string literal: %#v", str)
	}
	b := NewBooleanLiteral(loc, true)
	if b.Kind != BooleanLiteral || !b.Bool {
		t.Fatalf("unexpected boolean literal: %#v", b)
	}
}

func TestStatementAndExpressionInterfacesAreSatisfied(t *testing.T) {
	var _ Statement = (*BlockStatement)(nil)
	var _ Statement = (*VariableDeclaration)(nil)
	var _ Statement = (*ExpressionStatement)(nil)
	var _ Statement = (*IfStatement)(nil)
	var _ Statement = (*WhileStatement)(nil)
	var _ Statement = (*ReturnStatement)(nil)
	var _ Statement = (*FunctionDeclaration)(nil)

	var _ Expression = (*BinaryExpression)(nil)
	var _ Expression = (*UnaryExpression)(nil)
	var _ Expression = (*AssignmentExpression)(nil)
	var _ Expression = (*CallExpression)(nil)
	var _ Expression = (*Literal)(nil)
	var _ Expression = (*Identifier)(nil)
}
