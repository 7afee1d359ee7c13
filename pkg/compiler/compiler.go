// Package compiler lowers an (optimized) AST into a bytecode.Module.
//
// Variables are name-keyed end to end (spec §4.4/§4.7/§9 "string-keyed
// variable store"): LOAD/STORE instructions carry the variable's name
// directly, the same name a running VM frame maps to a value, so there is
// no compile-time slot allocation to keep in sync with the runtime frame
// layout. The compiler still threads a symboltable.Table through nested
// block scopes, but only to catch "undefined variable"/"redeclared in this
// scope" as compile-time semantic errors before a program ever runs — the
// table is consulted, never encoded into the bytecode it emits.
//
// Control flow (if/while) is compiled with the classic two-step jump: emit
// the jump with a placeholder operand, keep compiling, then patch the
// operand to the now-known target address once the jump's destination is
// reached.
//
// Function call targets are resolved via Module.Functions, a name-to-address
// table the compiler builds in two passes: Compile first pre-scans
// every top-level FunctionDeclaration (recording its parameter names, so
// forward-referenced calls can be arity-checked immediately) before any
// code is emitted, and fills in each entry's real address as that function
// is actually compiled. By the time the VM runs, the table is complete
// regardless of whether a call textually precedes its declaration. CALL
// carries only the callee's name — no argument count — so arity is always
// validated here, at compile time, against either Module.Functions or
// BuiltinArity.
package compiler

import (
	"fmt"

	"github.com/miniscript-lang/miniscript/pkg/ast"
	"github.com/miniscript-lang/miniscript/pkg/bytecode"
	"github.com/miniscript-lang/miniscript/pkg/symboltable"
	"github.com/miniscript-lang/miniscript/pkg/vmerrors"
)

// BuiltinArity lists the built-in functions the compiler recognizes as call
// targets when a name isn't a user-defined function, and the exact argument
// count each requires (spec §4.6/§7 — every built-in has a fixed,
// statically-known arity, so CALL never needs to carry one). pkg/vm keeps
// its own copy of this table (builtinArity) rather than importing this
// package, so the two must be kept in step by hand.
var BuiltinArity = map[string]int{
	"print":     1,
	"abs":       1,
	"sqrt":      1,
	"pow":       2,
	"length":    1,
	"substring": 3,
	"concat":    2,
	"toString":  1,
	"toNumber":  1,
	"toBoolean": 1,
}

// Compiler lowers a single program. Create a fresh one per compile.
type Compiler struct {
	instructions []bytecode.Instruction

	functions map[string]bytecode.FunctionInfo

	scope *symboltable.Table

	errors []*vmerrors.CompileError
}

// New creates a compiler ready for Compile.
func New() *Compiler {
	return &Compiler{
		functions: make(map[string]bytecode.FunctionInfo),
		scope:     symboltable.New(),
	}
}

// Errors returns every semantic error accumulated while compiling.
func (c *Compiler) Errors() []*vmerrors.CompileError { return c.errors }

func (c *Compiler) addError(loc vmerrors.Location, format string, args ...interface{}) {
	c.errors = append(c.errors, vmerrors.NewCompileError(vmerrors.SemanticError, loc, fmt.Sprintf(format, args...)))
}

// Compile lowers prog into a bytecode.Module. The returned module is valid
// even when Errors() is non-empty, mirroring the parser's best-effort
// contract; callers should check Errors() before trusting the output.
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.Module, error) {
	c.preScanFunctions(prog.Body)

	for _, stmt := range prog.Body {
		c.compileStatement(stmt)
	}
	c.emit(bytecode.NoOperand(bytecode.HALT))

	module := &bytecode.Module{
		Instructions: c.instructions,
		Functions:    c.functions,
	}
	if len(c.errors) > 0 {
		return module, fmt.Errorf("%d semantic error(s), first: %v", len(c.errors), c.errors[0])
	}
	return module, nil
}

// preScanFunctions registers every top-level function's name and parameter
// list with a placeholder address of -1, so compileCall's arity check and
// user-function/built-in disambiguation work regardless of declaration
// order. The real address is filled in by compileFunctionDeclaration once
// the body is actually compiled.
func (c *Compiler) preScanFunctions(body []ast.Statement) {
	for _, stmt := range body {
		if fn, ok := stmt.(*ast.FunctionDeclaration); ok {
			c.functions[fn.Name] = bytecode.FunctionInfo{Address: -1, Parameters: append([]string{}, fn.Parameters...)}
		}
	}
}

func (c *Compiler) emit(ins bytecode.Instruction) int {
	c.instructions = append(c.instructions, ins)
	return len(c.instructions) - 1
}

func (c *Compiler) patchJump(index, target int) {
	c.instructions[index] = bytecode.IntOperand(c.instructions[index].Op, target)
}

func (c *Compiler) here() int { return len(c.instructions) }

// declare records name in the current scope purely for compile-time
// undefined-variable/redeclaration checks; the bytecode it emits carries
// the name itself, not a slot.
func (c *Compiler) declare(loc vmerrors.Location, name string, kind symboltable.Kind) {
	if err := c.scope.Declare(name, kind, 0); err != nil {
		c.addError(loc, "%v", err)
	}
}

func (c *Compiler) compileStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.VariableDeclaration:
		if s.Initializer != nil {
			c.compileExpression(s.Initializer)
		} else {
			c.emit(bytecode.FloatOperand(bytecode.PUSH, 0))
		}
		c.declare(s.Loc(), s.Name, symboltable.VariableKind)
		c.emit(bytecode.StringOperand(bytecode.STORE, s.Name))

	case *ast.ExpressionStatement:
		// Residual value deliberately left on the stack (spec §4.5/§9): no
		// implicit pop after an expression statement. A bare assignment is
		// stored without the DUP a nested assignment needs, so it leaves
		// no value behind.
		if a, ok := s.Expr.(*ast.AssignmentExpression); ok {
			c.compileExpression(a.Right)
			if _, found := c.scope.Lookup(a.Target); found {
				c.emit(bytecode.StringOperand(bytecode.STORE, a.Target))
			} else {
				c.addError(a.Loc(), "undefined variable %q", a.Target)
			}
		} else {
			c.compileExpression(s.Expr)
		}

	case *ast.BlockStatement:
		c.scope.EnterScope()
		for _, inner := range s.Body {
			c.compileStatement(inner)
		}
		c.scope.ExitScope()

	case *ast.IfStatement:
		c.compileExpression(s.Condition)
		jumpToElse := c.emit(bytecode.IntOperand(bytecode.JUMP_IF_FALSE, -1))
		c.compileStatement(s.Consequent)
		if s.Alternate != nil {
			jumpToEnd := c.emit(bytecode.IntOperand(bytecode.JUMP, -1))
			c.patchJump(jumpToElse, c.here())
			c.compileStatement(s.Alternate)
			c.patchJump(jumpToEnd, c.here())
		} else {
			c.patchJump(jumpToElse, c.here())
		}

	case *ast.WhileStatement:
		loopStart := c.here()
		c.compileExpression(s.Condition)
		jumpToEnd := c.emit(bytecode.IntOperand(bytecode.JUMP_IF_FALSE, -1))
		c.compileStatement(s.Body)
		c.emit(bytecode.IntOperand(bytecode.JUMP, loopStart))
		c.patchJump(jumpToEnd, c.here())

	case *ast.ReturnStatement:
		if s.Argument != nil {
			c.compileExpression(s.Argument)
		} else {
			c.emit(bytecode.FloatOperand(bytecode.PUSH, 0))
		}
		c.emit(bytecode.NoOperand(bytecode.RETURN))

	case *ast.FunctionDeclaration:
		c.compileFunctionDeclaration(s)

	default:
		c.addError(stmt.Loc(), "unsupported statement type %T", stmt)
	}
}

// compileFunctionDeclaration emits a JUMP over the function body (so
// top-level execution doesn't fall into it), records the body's real
// address in the function table, then compiles the body in its own fresh
// variable scope with parameters declared as its first bindings.
func (c *Compiler) compileFunctionDeclaration(fn *ast.FunctionDeclaration) {
	skip := c.emit(bytecode.IntOperand(bytecode.JUMP, -1))

	savedScope := c.scope
	c.scope = symboltable.New()

	addr := c.here()

	for _, param := range fn.Parameters {
		c.declare(fn.Loc(), param, symboltable.ParameterKind)
	}
	for _, stmt := range fn.Body.Body {
		c.compileStatement(stmt)
	}
	// Fall-through return for a body with no explicit return.
	c.emit(bytecode.FloatOperand(bytecode.PUSH, 0))
	c.emit(bytecode.NoOperand(bytecode.RETURN))

	c.functions[fn.Name] = bytecode.FunctionInfo{
		Address:    addr,
		Parameters: append([]string{}, fn.Parameters...),
	}

	c.scope = savedScope
	c.patchJump(skip, c.here())
}

func (c *Compiler) compileExpression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.Literal:
		c.compileLiteral(e)

	case *ast.Identifier:
		if _, ok := c.scope.Lookup(e.Name); !ok {
			c.addError(e.Loc(), "undefined variable %q", e.Name)
			c.emit(bytecode.FloatOperand(bytecode.PUSH, 0))
			return
		}
		c.emit(bytecode.StringOperand(bytecode.LOAD, e.Name))

	case *ast.AssignmentExpression:
		c.compileExpression(e.Right)
		if _, ok := c.scope.Lookup(e.Target); !ok {
			c.addError(e.Loc(), "undefined variable %q", e.Target)
			return
		}
		c.emit(bytecode.NoOperand(bytecode.DUP))
		c.emit(bytecode.StringOperand(bytecode.STORE, e.Target))

	case *ast.UnaryExpression:
		c.compileExpression(e.Operand)
		switch e.Operator {
		case "-":
			c.emit(bytecode.FloatOperand(bytecode.PUSH, -1))
			c.emit(bytecode.NoOperand(bytecode.MUL))
		case "+":
			// Unary plus is a no-op coercion; the VM's arithmetic path
			// already coerces its operand to a number.
		default:
			c.addError(e.Loc(), "unsupported unary operator %q", e.Operator)
		}

	case *ast.BinaryExpression:
		c.compileBinary(e)

	case *ast.CallExpression:
		c.compileCall(e)

	default:
		c.addError(expr.Loc(), "unsupported expression type %T", expr)
	}
}

func (c *Compiler) compileLiteral(lit *ast.Literal) {
	switch lit.Kind {
	case ast.NumberLiteral:
		c.emit(bytecode.FloatOperand(bytecode.PUSH, lit.Num))
	case ast.StringLiteral:
		c.emit(bytecode.StringOperand(bytecode.PUSH, lit.Str))
	case ast.BooleanLiteral:
		c.emit(bytecode.BoolOperand(bytecode.PUSH, lit.Bool))
	}
}

// compileBinary lowers && and || to short-circuiting jumps and everything
// else to a straightforward eval-both-sides-then-opcode sequence.
func (c *Compiler) compileBinary(e *ast.BinaryExpression) {
	switch e.Operator {
	case "&&":
		c.compileExpression(e.Left)
		c.emit(bytecode.NoOperand(bytecode.DUP))
		shortCircuit := c.emit(bytecode.IntOperand(bytecode.JUMP_IF_FALSE, -1))
		c.emit(bytecode.NoOperand(bytecode.POP))
		c.compileExpression(e.Right)
		c.patchJump(shortCircuit, c.here())
		return

	case "||":
		c.compileExpression(e.Left)
		c.emit(bytecode.NoOperand(bytecode.DUP))
		jumpIfFalse := c.emit(bytecode.IntOperand(bytecode.JUMP_IF_FALSE, -1))
		// Left was truthy: it's already the correct result, skip right.
		jumpEnd := c.emit(bytecode.IntOperand(bytecode.JUMP, -1))
		c.patchJump(jumpIfFalse, c.here())
		c.emit(bytecode.NoOperand(bytecode.POP))
		c.compileExpression(e.Right)
		c.patchJump(jumpEnd, c.here())
		return
	}

	c.compileExpression(e.Left)
	c.compileExpression(e.Right)
	switch e.Operator {
	case "+":
		c.emit(bytecode.NoOperand(bytecode.ADD))
	case "-":
		c.emit(bytecode.NoOperand(bytecode.SUB))
	case "*":
		c.emit(bytecode.NoOperand(bytecode.MUL))
	case "/":
		c.emit(bytecode.NoOperand(bytecode.DIV))
	case "%":
		c.emit(bytecode.NoOperand(bytecode.MOD))
	case "==":
		c.emit(bytecode.NoOperand(bytecode.EQ))
	case "!=":
		c.emit(bytecode.NoOperand(bytecode.NE))
	case "<":
		c.emit(bytecode.NoOperand(bytecode.LT))
	case ">":
		c.emit(bytecode.NoOperand(bytecode.GT))
	case "<=":
		c.emit(bytecode.NoOperand(bytecode.LE))
	case ">=":
		c.emit(bytecode.NoOperand(bytecode.GE))
	default:
		c.addError(e.Loc(), "unsupported binary operator %q", e.Operator)
	}
}

// compileCall validates arity against the callee's known signature — a
// user function's declared parameter list, or a built-in's fixed arity —
// since CALL carries only a name and never an argument count.
func (c *Compiler) compileCall(e *ast.CallExpression) {
	for _, arg := range e.Arguments {
		c.compileExpression(arg)
	}

	if info, isUser := c.functions[e.Callee]; isUser {
		if len(e.Arguments) != info.ParamCount() {
			c.addError(e.Loc(), "function %q expects %d argument(s), got %d", e.Callee, info.ParamCount(), len(e.Arguments))
		}
	} else if arity, isBuiltin := BuiltinArity[e.Callee]; isBuiltin {
		if len(e.Arguments) != arity {
			c.addError(e.Loc(), "built-in %q expects %d argument(s), got %d", e.Callee, arity, len(e.Arguments))
		}
	} else {
		c.addError(e.Loc(), "undefined function %q", e.Callee)
	}

	c.emit(bytecode.StringOperand(bytecode.CALL, e.Callee))
}
