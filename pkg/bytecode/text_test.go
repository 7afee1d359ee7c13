package bytecode

import (
	"strings"
	"testing"
)

func TestAssemble_SimpleProgram(t *testing.T) {
	src := `
		PUSH 1
		PUSH 2
		ADD
		PRINT
		HALT
	`
	m, err := Assemble(src, AssembleOptions{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(m.Instructions) != 5 {
		t.Fatalf("expected 5 instructions, got %d", len(m.Instructions))
	}
	if m.Instructions[2].Op != ADD || m.Instructions[4].Op != HALT {
		t.Fatalf("unexpected instruction stream: %#v", m.Instructions)
	}
	if m.Instructions[0].Tag != TagFloat || m.Instructions[0].Float != 1 {
		t.Fatalf("expected the first PUSH to carry its literal inline, got %#v", m.Instructions[0])
	}
}

func TestAssemble_LoadStoreCarryNameOperand(t *testing.T) {
	src := "STORE total\nLOAD total\nHALT\n"
	m, err := Assemble(src, AssembleOptions{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if m.Instructions[0].Op != STORE || m.Instructions[0].Str != "total" {
		t.Fatalf("expected STORE total, got %#v", m.Instructions[0])
	}
	if m.Instructions[1].Op != LOAD || m.Instructions[1].Str != "total" {
		t.Fatalf("expected LOAD total, got %#v", m.Instructions[1])
	}
}

func TestAssemble_PushStringAndBoolLiterals(t *testing.T) {
	src := `PUSH "hi"` + "\n" + "PUSH true\nHALT\n"
	m, err := Assemble(src, AssembleOptions{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if m.Instructions[0].Tag != TagString || m.Instructions[0].Str != "hi" {
		t.Fatalf("expected PUSH \"hi\", got %#v", m.Instructions[0])
	}
	if m.Instructions[1].Tag != TagBool || !m.Instructions[1].Bool {
		t.Fatalf("expected PUSH true, got %#v", m.Instructions[1])
	}
}

func TestAssemble_LabelsResolveJumps(t *testing.T) {
	src := `
		PUSH true
	loop:
		JUMP_IF_FALSE done
		JUMP loop
	done:
		HALT
	`
	m, err := Assemble(src, AssembleOptions{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	jumpIfFalse := m.Instructions[1]
	if jumpIfFalse.Op != JUMP_IF_FALSE || jumpIfFalse.Int != 3 {
		t.Fatalf("expected JUMP_IF_FALSE to target address 3, got %#v", jumpIfFalse)
	}
	jump := m.Instructions[2]
	if jump.Op != JUMP || jump.Int != 1 {
		t.Fatalf("expected JUMP to target address 1, got %#v", jump)
	}
}

func TestAssemble_UndefinedLabelIsError(t *testing.T) {
	_, err := Assemble("JUMP nowhere\nHALT\n", AssembleOptions{})
	if err == nil {
		t.Fatalf("expected an error for an undefined label")
	}
}

func TestAssemble_UnknownMnemonicIsError(t *testing.T) {
	_, err := Assemble("FROBNICATE\n", AssembleOptions{})
	if err == nil {
		t.Fatalf("expected an error for an unknown mnemonic")
	}
}

func TestAssemble_StrictModeRejectsLowercase(t *testing.T) {
	_, err := Assemble("push 1\nhalt\n", AssembleOptions{StrictMode: true})
	if err == nil {
		t.Fatalf("expected strict mode to reject lowercase mnemonics")
	}
}

func TestDisassemble_RoundTripsThroughAssemble(t *testing.T) {
	src := "PUSH 1\nPUSH 2\nADD\nPRINT\nHALT\n"
	m, err := Assemble(src, AssembleOptions{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	text := Disassemble(m)

	reassembled, err := Assemble(text, AssembleOptions{})
	if err != nil {
		t.Fatalf("Assemble(Disassemble(m)): %v", err)
	}
	if len(reassembled.Instructions) != len(m.Instructions) {
		t.Fatalf("instruction count changed across round trip: %d vs %d", len(m.Instructions), len(reassembled.Instructions))
	}
	for i := range m.Instructions {
		if reassembled.Instructions[i].Op != m.Instructions[i].Op {
			t.Fatalf("instruction %d opcode changed: %s vs %s", i, m.Instructions[i].Op, reassembled.Instructions[i].Op)
		}
	}
}

func TestDisassemble_RoundTripsLoadStoreNames(t *testing.T) {
	m := &Module{Instructions: []Instruction{
		StringOperand(STORE, "x"),
		StringOperand(LOAD, "x"),
		NoOperand(HALT),
	}}
	text := Disassemble(m)
	if !strings.Contains(text, "STORE") || !strings.Contains(text, "x") {
		t.Fatalf("expected disassembly to contain the variable name, got:\n%s", text)
	}
	reassembled, err := Assemble(text, AssembleOptions{})
	if err != nil {
		t.Fatalf("Assemble(Disassemble(m)): %v", err)
	}
	if reassembled.Instructions[0].Str != "x" || reassembled.Instructions[1].Str != "x" {
		t.Fatalf("expected variable name to survive the round trip, got %#v", reassembled.Instructions)
	}
}

func TestDisassemble_GeneratesLabelsForJumpTargets(t *testing.T) {
	m := &Module{
		Instructions: []Instruction{
			BoolOperand(PUSH, true),
			IntOperand(JUMP_IF_FALSE, 3),
			IntOperand(JUMP, 0),
			NoOperand(HALT),
		},
	}
	out := Disassemble(m)
	if !strings.Contains(out, "L0:") {
		t.Fatalf("expected a generated label for the jump target, got:\n%s", out)
	}
}
