// Built-in functions callable from miniscript source via CALL, one
// coercion-wrapping function per entry — the same shape as the teacher's
// primitive table, trimmed to the arithmetic/string operations spec §4.6
// names instead of its HTTP/crypto/JSON surface.
//
// Each built-in has a fixed, statically-known arity (spec §4.6/§7): CALL
// carries only a name, never an argument count, so builtinArity is what
// tells vm.call how many operand-stack values to pop before invoking it.
// Domain/type faults (a negative sqrt, a non-string length argument, ...)
// are returned as plain errors; vm.call wraps them as a TypeMismatch
// RuntimeError via vmerrors.WrapBuiltin.
package vm

import (
	"fmt"
	"math"

	"github.com/miniscript-lang/miniscript/pkg/value"
)

var builtinArity = map[string]int{
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

func (vm *VM) defaultBuiltins() map[string]Builtin {
	return map[string]Builtin{
		"print":     builtinPrint(vm),
		"abs":       builtinAbs,
		"sqrt":      builtinSqrt,
		"pow":       builtinPow,
		"length":    builtinLength,
		"substring": builtinSubstring,
		"concat":    builtinConcat,
		"toString":  builtinToString,
		"toNumber":  builtinToNumber,
		"toBoolean": builtinToBoolean,
	}
}

func requireString(name string, v value.Value) (string, error) {
	if v.Kind != value.String {
		return "", fmt.Errorf("%s requires a string argument", name)
	}
	return v.Str, nil
}

func builtinPrint(vm *VM) Builtin {
	return func(args []value.Value) (value.Value, error) {
		vm.PrintFunc(args[0].ToString())
		return value.Zero, nil
	}
}

func builtinAbs(args []value.Value) (value.Value, error) {
	n, err := args[0].ToNumber()
	if err != nil {
		return value.Zero, err
	}
	return value.Num64(math.Abs(n)), nil
}

// builtinSqrt faults on a negative input rather than silently yielding NaN
// (spec §4.6: "sqrt(x) faults on negative input").
func builtinSqrt(args []value.Value) (value.Value, error) {
	n, err := args[0].ToNumber()
	if err != nil {
		return value.Zero, err
	}
	if n < 0 {
		return value.Zero, fmt.Errorf("sqrt requires a non-negative argument, got %v", n)
	}
	return value.Num64(math.Sqrt(n)), nil
}

// builtinPow faults on 0 raised to a negative exponent and on any
// non-finite result (spec §4.6: "pow(b, e) faults on 0^negative and
// non-finite result").
func builtinPow(args []value.Value) (value.Value, error) {
	base, err := args[0].ToNumber()
	if err != nil {
		return value.Zero, err
	}
	exp, err := args[1].ToNumber()
	if err != nil {
		return value.Zero, err
	}
	if base == 0 && exp < 0 {
		return value.Zero, fmt.Errorf("pow: 0 cannot be raised to a negative exponent (%v)", exp)
	}
	result := math.Pow(base, exp)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return value.Zero, fmt.Errorf("pow(%v, %v) is not finite", base, exp)
	}
	return value.Num64(result), nil
}

// builtinLength requires a string argument (spec §4.6: "length(s) requires
// string").
func builtinLength(args []value.Value) (value.Value, error) {
	s, err := requireString("length", args[0])
	if err != nil {
		return value.Zero, err
	}
	return value.Num64(float64(len([]rune(s)))), nil
}

// builtinSubstring requires a string first argument and non-negative
// integer indices with a <= b <= |s| (spec §4.6: "substring(s, a, b)
// requires string and non-negative integer indices with a <= b <= |s|").
func builtinSubstring(args []value.Value) (value.Value, error) {
	s, err := requireString("substring", args[0])
	if err != nil {
		return value.Zero, err
	}
	runes := []rune(s)

	start, err := args[1].ToNumber()
	if err != nil {
		return value.Zero, err
	}
	end, err := args[2].ToNumber()
	if err != nil {
		return value.Zero, err
	}
	if start != math.Trunc(start) || end != math.Trunc(end) {
		return value.Zero, fmt.Errorf("substring requires integer indices, got %v and %v", start, end)
	}
	a, b := int(start), int(end)
	if a < 0 || b > len(runes) || a > b {
		return value.Zero, fmt.Errorf("substring index out of range [%d:%d] for length %d", a, b, len(runes))
	}
	return value.Str64(string(runes[a:b])), nil
}

// builtinConcat is fixed 2-arity (spec §4.6: "concat(a, b) coerces both via
// toString"), not variadic.
func builtinConcat(args []value.Value) (value.Value, error) {
	return value.Str64(args[0].ToString() + args[1].ToString()), nil
}

func builtinToString(args []value.Value) (value.Value, error) {
	return value.Str64(args[0].ToString()), nil
}

func builtinToNumber(args []value.Value) (value.Value, error) {
	n, err := args[0].ToNumber()
	if err != nil {
		return value.Zero, err
	}
	return value.Num64(n), nil
}

func builtinToBoolean(args []value.Value) (value.Value, error) {
	return value.Bool64(args[0].ToBoolean()), nil
}
