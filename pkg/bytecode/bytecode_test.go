package bytecode

import "testing"

func TestOpcodeString(t *testing.T) {
	if PUSH.String() != "PUSH" || HALT.String() != "HALT" {
		t.Fatalf("unexpected opcode names: %s, %s", PUSH, HALT)
	}
	if Opcode(99).String() == "" {
		t.Fatalf("expected a fallback name for an unknown opcode")
	}
}

func TestOperandTagString(t *testing.T) {
	if TagInt.String() != "int" || TagString.String() != "string" {
		t.Fatalf("unexpected tag names: %s, %s", TagInt, TagString)
	}
	if OperandTag(99).String() == "" {
		t.Fatalf("expected a fallback name for an unknown tag")
	}
}

func TestInstructionConstructors(t *testing.T) {
	if ins := NoOperand(HALT); ins.Tag != TagAbsent {
		t.Fatalf("expected TagAbsent, got %s", ins.Tag)
	}
	if ins := IntOperand(JUMP, 7); ins.Tag != TagInt || ins.Int != 7 {
		t.Fatalf("expected int operand 7, got %+v", ins)
	}
	if ins := FloatOperand(PUSH, 3.5); ins.Tag != TagFloat || ins.Float != 3.5 {
		t.Fatalf("expected float operand 3.5, got %+v", ins)
	}
	if ins := StringOperand(LOAD, "x"); ins.Tag != TagString || ins.Str != "x" {
		t.Fatalf("expected string operand %q, got %+v", "x", ins)
	}
	if ins := BoolOperand(PUSH, true); ins.Tag != TagBool || !ins.Bool {
		t.Fatalf("expected bool operand true, got %+v", ins)
	}
}

func TestFunctionInfo_ParamCount(t *testing.T) {
	info := FunctionInfo{Address: 4, Parameters: []string{"a", "b", "c"}}
	if info.ParamCount() != 3 {
		t.Fatalf("expected ParamCount 3, got %d", info.ParamCount())
	}
	if (FunctionInfo{}).ParamCount() != 0 {
		t.Fatalf("expected ParamCount 0 for a zero-value FunctionInfo")
	}
}
