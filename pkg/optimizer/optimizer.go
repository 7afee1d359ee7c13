// Package optimizer rewrites an AST into an equivalent, smaller one.
//
// Two passes run to a fixed point (spec §4.3): constant folding collapses
// literal-only subexpressions, and dead-code elimination drops statements
// that can never execute (code after a return, branches whose condition
// folded to a known boolean, while loops that fold to `while (false)`).
// Each pass produces a new tree — nodes are never mutated in place, so a
// caller holding a reference to the pre-optimization tree still sees the
// original.
package optimizer

import (
	"math"
	"time"

	"github.com/miniscript-lang/miniscript/pkg/ast"
	"github.com/miniscript-lang/miniscript/pkg/vmerrors"
)

// Metrics summarizes the effect of optimization on tree size.
type Metrics struct {
	OriginalCount    int
	OptimizedCount   int
	ReductionPercent float64
	Elapsed          time.Duration
}

// Result carries everything about an Optimize call beyond the tree itself.
type Result struct {
	PassCount            int
	OptimizationsApplied []string
	Metrics              Metrics
}

// Optimize folds constants and eliminates dead code until neither pass
// changes anything, or maxPasses is reached (a runaway-rewrite backstop;
// real programs converge in one or two passes).
func Optimize(prog *ast.Program, maxPasses int) (*ast.Program, Result) {
	start := time.Now()
	originalCount := countStatements(prog.Body)

	current := prog
	var applied []string
	passCount := 0

	for passCount < maxPasses {
		passCount++
		newBody, changed, names := foldStatements(current.Body)
		current = &ast.Program{Base: current.Base, Body: newBody}
		applied = append(applied, names...)
		if !changed {
			break
		}
	}

	optimizedCount := countStatements(current.Body)
	reduction := 0.0
	if originalCount > 0 {
		reduction = float64(originalCount-optimizedCount) / float64(originalCount) * 100
	}

	return current, Result{
		PassCount:            passCount,
		OptimizationsApplied: applied,
		Metrics: Metrics{
			OriginalCount:    originalCount,
			OptimizedCount:   optimizedCount,
			ReductionPercent: reduction,
			Elapsed:          time.Since(start),
		},
	}
}

// foldStatements folds and DCEs a statement list, dropping anything after
// an unconditional return (spec §4.3 dead-code elimination).
func foldStatements(stmts []ast.Statement) ([]ast.Statement, bool, []string) {
	var out []ast.Statement
	var names []string
	changed := false
	terminated := false

	for _, s := range stmts {
		if terminated {
			changed = true
			names = append(names, "dead-code-after-return")
			continue
		}

		ns, c, nm := foldStatement(s)
		if c {
			changed = true
			names = append(names, nm...)
		}
		if ns == nil {
			continue
		}
		if blk, ok := ns.(*ast.BlockStatement); ok {
			if _, wasIf := s.(*ast.IfStatement); wasIf {
				// A folded if is replaced by its selected branch's statements.
				for _, inner := range blk.Body {
					out = append(out, inner)
					if _, ok := inner.(*ast.ReturnStatement); ok {
						terminated = true
					}
				}
				continue
			}
		}
		out = append(out, ns)
		if _, ok := ns.(*ast.ReturnStatement); ok {
			terminated = true
		}
	}
	return out, changed, names
}

func foldStatementSafe(s ast.Statement) (ast.Statement, bool, []string) {
	if s == nil {
		return nil, false, nil
	}
	return foldStatement(s)
}

func foldStatement(s ast.Statement) (ast.Statement, bool, []string) {
	switch st := s.(type) {
	case *ast.ExpressionStatement:
		ne, c := foldExpr(st.Expr)
		if !c {
			return st, false, nil
		}
		return &ast.ExpressionStatement{Base: st.Base, Expr: ne}, true, []string{"constant-fold"}

	case *ast.VariableDeclaration:
		if st.Initializer == nil {
			return st, false, nil
		}
		ne, c := foldExpr(st.Initializer)
		if !c {
			return st, false, nil
		}
		return &ast.VariableDeclaration{Base: st.Base, Name: st.Name, Initializer: ne}, true, []string{"constant-fold"}

	case *ast.ReturnStatement:
		if st.Argument == nil {
			return st, false, nil
		}
		ne, c := foldExpr(st.Argument)
		if !c {
			return st, false, nil
		}
		return &ast.ReturnStatement{Base: st.Base, Argument: ne}, true, []string{"constant-fold"}

	case *ast.BlockStatement:
		nb, c, names := foldStatements(st.Body)
		return &ast.BlockStatement{Base: st.Base, Body: nb}, c, names

	case *ast.IfStatement:
		return foldIf(st)

	case *ast.WhileStatement:
		return foldWhile(st)

	case *ast.FunctionDeclaration:
		nb, c, names := foldStatements(st.Body.Body)
		nfd := &ast.FunctionDeclaration{
			Base:       st.Base,
			Name:       st.Name,
			Parameters: st.Parameters,
			Body:       &ast.BlockStatement{Base: st.Body.Base, Body: nb},
		}
		return nfd, c, names

	default:
		return s, false, nil
	}
}

func foldIf(st *ast.IfStatement) (ast.Statement, bool, []string) {
	ncond, condChanged := foldExpr(st.Condition)

	if lit, ok := ncond.(*ast.Literal); ok && lit.Kind == ast.BooleanLiteral {
		if lit.Bool {
			ns, _, names := foldStatementSafe(st.Consequent)
			return ns, true, append(names, "dead-branch-elimination")
		}
		if st.Alternate != nil {
			ns, _, names := foldStatementSafe(st.Alternate)
			return ns, true, append(names, "dead-branch-elimination")
		}
		return nil, true, []string{"dead-branch-elimination"}
	}

	ncons, consChanged, consNames := foldStatementSafe(st.Consequent)
	nalt, altChanged, altNames := foldStatementSafe(st.Alternate)

	changed := condChanged || consChanged || altChanged
	names := append(append([]string{}, consNames...), altNames...)
	if condChanged {
		names = append(names, "constant-fold")
	}
	if !changed {
		return st, false, nil
	}
	return &ast.IfStatement{Base: st.Base, Condition: ncond, Consequent: ncons, Alternate: nalt}, true, names
}

func foldWhile(st *ast.WhileStatement) (ast.Statement, bool, []string) {
	ncond, condChanged := foldExpr(st.Condition)

	if lit, ok := ncond.(*ast.Literal); ok && lit.Kind == ast.BooleanLiteral && !lit.Bool {
		return nil, true, []string{"dead-loop-elimination"}
	}

	nbody, bodyChanged, bodyNames := foldStatementSafe(st.Body)
	changed := condChanged || bodyChanged
	names := bodyNames
	if condChanged {
		names = append(names, "constant-fold")
	}
	if !changed {
		return st, false, nil
	}
	return &ast.WhileStatement{Base: st.Base, Condition: ncond, Body: nbody}, true, names
}

// foldExpr folds a single expression tree bottom-up, returning a new node
// and whether anything changed.
func foldExpr(expr ast.Expression) (ast.Expression, bool) {
	switch e := expr.(type) {
	case *ast.Literal:
		return e, false

	case *ast.Identifier:
		return e, false

	case *ast.UnaryExpression:
		noperand, changed := foldExpr(e.Operand)
		if lit, ok := noperand.(*ast.Literal); ok {
			if folded, ok2 := foldUnary(e.Operator, lit); ok2 {
				return folded, true
			}
		}
		if !changed {
			return e, false
		}
		return &ast.UnaryExpression{Base: e.Base, Operator: e.Operator, Operand: noperand}, true

	case *ast.BinaryExpression:
		nleft, lc := foldExpr(e.Left)
		nright, rc := foldExpr(e.Right)
		if llit, ok := nleft.(*ast.Literal); ok {
			if rlit, ok2 := nright.(*ast.Literal); ok2 {
				if folded, ok3 := foldBinary(e.Operator, llit, rlit, e.Base.Location); ok3 {
					return folded, true
				}
			}
		}
		if !lc && !rc {
			return e, false
		}
		return &ast.BinaryExpression{Base: e.Base, Left: nleft, Operator: e.Operator, Right: nright}, true

	case *ast.AssignmentExpression:
		nright, c := foldExpr(e.Right)
		if !c {
			return e, false
		}
		return &ast.AssignmentExpression{Base: e.Base, Target: e.Target, Right: nright}, true

	case *ast.CallExpression:
		changed := false
		nargs := make([]ast.Expression, len(e.Arguments))
		for i, a := range e.Arguments {
			na, c := foldExpr(a)
			nargs[i] = na
			if c {
				changed = true
			}
		}
		if !changed {
			return e, false
		}
		return &ast.CallExpression{Base: e.Base, Callee: e.Callee, Arguments: nargs}, true

	default:
		return expr, false
	}
}

func foldUnary(op string, lit *ast.Literal) (*ast.Literal, bool) {
	switch op {
	case "-":
		if lit.Kind == ast.NumberLiteral {
			return ast.NewNumberLiteral(lit.Loc(), -lit.Num), true
		}
	case "+":
		if lit.Kind == ast.NumberLiteral {
			return ast.NewNumberLiteral(lit.Loc(), lit.Num), true
		}
	}
	return nil, false
}

func foldBinary(op string, l, r *ast.Literal, loc vmerrors.Location) (*ast.Literal, bool) {
	switch op {
	case "+":
		if l.Kind == ast.NumberLiteral && r.Kind == ast.NumberLiteral {
			return ast.NewNumberLiteral(loc, l.Num+r.Num), true
		}
		if l.Kind == ast.StringLiteral && r.Kind == ast.StringLiteral {
			return ast.NewStringLiteral(loc, l.Str+r.Str), true
		}
		return nil, false

	case "-", "*", "/", "%":
		if l.Kind != ast.NumberLiteral || r.Kind != ast.NumberLiteral {
			return nil, false
		}
		switch op {
		case "-":
			return ast.NewNumberLiteral(loc, l.Num-r.Num), true
		case "*":
			return ast.NewNumberLiteral(loc, l.Num*r.Num), true
		case "/":
			if r.Num == 0 {
				return nil, false // leave division-by-zero for the VM to fault on
			}
			return ast.NewNumberLiteral(loc, l.Num/r.Num), true
		case "%":
			if r.Num == 0 {
				return nil, false
			}
			return ast.NewNumberLiteral(loc, math.Mod(l.Num, r.Num)), true
		}

	case "==", "!=":
		eq := literalsEqual(l, r)
		if op == "==" {
			return ast.NewBooleanLiteral(loc, eq), true
		}
		return ast.NewBooleanLiteral(loc, !eq), true

	case "<", "<=", ">", ">=":
		if l.Kind != ast.NumberLiteral || r.Kind != ast.NumberLiteral {
			return nil, false
		}
		switch op {
		case "<":
			return ast.NewBooleanLiteral(loc, l.Num < r.Num), true
		case "<=":
			return ast.NewBooleanLiteral(loc, l.Num <= r.Num), true
		case ">":
			return ast.NewBooleanLiteral(loc, l.Num > r.Num), true
		case ">=":
			return ast.NewBooleanLiteral(loc, l.Num >= r.Num), true
		}

	case "&&":
		return ast.NewBooleanLiteral(loc, literalTruthy(l) && literalTruthy(r)), true
	case "||":
		return ast.NewBooleanLiteral(loc, literalTruthy(l) || literalTruthy(r)), true
	}
	return nil, false
}

func literalsEqual(l, r *ast.Literal) bool {
	if l.Kind != r.Kind {
		return false
	}
	switch l.Kind {
	case ast.NumberLiteral:
		return l.Num == r.Num
	case ast.StringLiteral:
		return l.Str == r.Str
	case ast.BooleanLiteral:
		return l.Bool == r.Bool
	default:
		return false
	}
}

func literalTruthy(l *ast.Literal) bool {
	switch l.Kind {
	case ast.NumberLiteral:
		return l.Num != 0
	case ast.StringLiteral:
		return l.Str != ""
	case ast.BooleanLiteral:
		return l.Bool
	default:
		return false
	}
}

// countStatements counts every statement and expression node reachable from
// the given list, used to report the before/after size in Metrics.
func countStatements(stmts []ast.Statement) int {
	n := 0
	for _, s := range stmts {
		n += countStatement(s)
	}
	return n
}

func countStatement(s ast.Statement) int {
	if s == nil {
		return 0
	}
	switch st := s.(type) {
	case *ast.BlockStatement:
		return 1 + countStatements(st.Body)
	case *ast.VariableDeclaration:
		return 1 + countExprOrZero(st.Initializer)
	case *ast.ExpressionStatement:
		return 1 + countExpr(st.Expr)
	case *ast.IfStatement:
		return 1 + countExpr(st.Condition) + countStatement(st.Consequent) + countStatement(st.Alternate)
	case *ast.WhileStatement:
		return 1 + countExpr(st.Condition) + countStatement(st.Body)
	case *ast.ReturnStatement:
		return 1 + countExprOrZero(st.Argument)
	case *ast.FunctionDeclaration:
		return 1 + countStatements(st.Body.Body)
	default:
		return 1
	}
}

func countExprOrZero(e ast.Expression) int {
	if e == nil {
		return 0
	}
	return countExpr(e)
}

func countExpr(e ast.Expression) int {
	switch expr := e.(type) {
	case *ast.BinaryExpression:
		return 1 + countExpr(expr.Left) + countExpr(expr.Right)
	case *ast.UnaryExpression:
		return 1 + countExpr(expr.Operand)
	case *ast.AssignmentExpression:
		return 1 + countExpr(expr.Right)
	case *ast.CallExpression:
		n := 1
		for _, a := range expr.Arguments {
			n += countExpr(a)
		}
		return n
	default:
		return 1
	}
}
