// Textual assembly format: a human-writable, human-readable mirror of the
// binary module format, for the `assemble`/`disassemble` CLI subcommands.
//
// Syntax, one instruction per line:
//
//	[label:] MNEMONIC [operand]  [; comment]
//
// A label definition on its own line or prefixed to an instruction binds the
// following instruction's address to that name; JUMP/JUMP_IF_FALSE operands
// may reference a label instead of a raw address. PUSH operands are literal
// values (numbers, quoted strings, true/false) carried directly on the
// instruction; LOAD/STORE/CALL operands are bare names, also carried
// directly — there is no constant pool to intern into or cross-reference.
//
// Resolution is two-pass, the same shape as a classic assembler: pass one
// walks every line assigning addresses and collecting label definitions,
// pass two re-walks resolving label references to (now known) addresses.
// Mnemonics are matched case-insensitively unless StrictMode is set.
package bytecode

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// AssembleOptions configures Assemble's leniency.
type AssembleOptions struct {
	// StrictMode requires exact-case mnemonics when true; otherwise
	// mnemonics are matched case-insensitively.
	StrictMode bool
}

var mnemonicTable = map[string]Opcode{
	"PUSH": PUSH, "POP": POP, "DUP": DUP,
	"ADD": ADD, "SUB": SUB, "MUL": MUL, "DIV": DIV, "MOD": MOD,
	"EQ": EQ, "NE": NE, "LT": LT, "GT": GT, "LE": LE, "GE": GE,
	"JUMP": JUMP, "JUMP_IF_FALSE": JUMP_IF_FALSE,
	"LOAD": LOAD, "STORE": STORE,
	"CALL": CALL, "RETURN": RETURN,
	"PRINT": PRINT, "HALT": HALT,
}

type pendingInstruction struct {
	addr      int
	op        Opcode
	ins       Instruction // fully resolved, except jumpsToID below
	line      int
	jumpsToID string // set when the operand refers to a label rather than a literal address
}

// Assemble parses assembly text into a Module. Errors report the 1-based
// source line they came from.
func Assemble(source string, opts AssembleOptions) (*Module, error) {
	labels := make(map[string]int)
	var pending []pendingInstruction

	addr := 0
	lineNo := 0
	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// A line may be "label:" alone, or "label: MNEMONIC operand".
		if idx := strings.Index(line, ":"); idx >= 0 && !looksLikeString(line[:idx]) {
			label := strings.TrimSpace(line[:idx])
			if label == "" {
				return nil, fmt.Errorf("line %d: empty label", lineNo)
			}
			if _, exists := labels[label]; exists {
				return nil, fmt.Errorf("line %d: label %q redefined", lineNo, label)
			}
			labels[label] = addr
			rest := strings.TrimSpace(line[idx+1:])
			if rest == "" {
				continue
			}
			line = rest
		}

		fields := strings.SplitN(line, " ", 2)
		mnemonic := fields[0]
		lookupKey := mnemonic
		if !opts.StrictMode {
			lookupKey = strings.ToUpper(mnemonic)
		}
		op, ok := mnemonicTable[lookupKey]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown mnemonic %q", lineNo, mnemonic)
		}

		operand := ""
		if len(fields) == 2 {
			operand = strings.TrimSpace(fields[1])
		}

		pi := pendingInstruction{addr: addr, op: op, line: lineNo}
		switch op {
		case JUMP, JUMP_IF_FALSE:
			if operand == "" {
				return nil, fmt.Errorf("line %d: %s requires a label or address operand", lineNo, mnemonic)
			}
			if n, err := strconv.Atoi(operand); err == nil {
				pi.ins = IntOperand(op, n)
			} else {
				pi.jumpsToID = operand
			}

		case PUSH:
			lit, err := parseLiteral(operand)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			pi.ins = lit

		case LOAD, STORE, CALL:
			if operand == "" {
				return nil, fmt.Errorf("line %d: %s requires a name operand", lineNo, mnemonic)
			}
			pi.ins = StringOperand(op, operand)

		default:
			if operand != "" {
				return nil, fmt.Errorf("line %d: %s takes no operand", lineNo, mnemonic)
			}
			pi.ins = NoOperand(op)
		}

		pending = append(pending, pi)
		addr++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	instructions := make([]Instruction, len(pending))
	for i, pi := range pending {
		if pi.jumpsToID != "" {
			target, ok := labels[pi.jumpsToID]
			if !ok {
				return nil, fmt.Errorf("line %d: undefined label %q", pi.line, pi.jumpsToID)
			}
			instructions[i] = IntOperand(pi.op, target)
			continue
		}
		instructions[i] = pi.ins
	}

	return &Module{Instructions: instructions}, nil
}

// parseLiteral parses a PUSH operand: a quoted string, true/false, or a bare
// number.
func parseLiteral(literal string) (Instruction, error) {
	switch {
	case literal == "":
		return Instruction{}, fmt.Errorf("PUSH requires an operand")
	case literal == "true" || literal == "false":
		return BoolOperand(PUSH, literal == "true"), nil
	case strings.HasPrefix(literal, "\"") && strings.HasSuffix(literal, "\"") && len(literal) >= 2:
		unquoted, err := strconv.Unquote(literal)
		if err != nil {
			return Instruction{}, fmt.Errorf("invalid PUSH string literal %s: %w", literal, err)
		}
		return StringOperand(PUSH, unquoted), nil
	default:
		n, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return Instruction{}, fmt.Errorf("invalid PUSH literal %q", literal)
		}
		return FloatOperand(PUSH, n), nil
	}
}

func looksLikeString(s string) bool {
	return strings.Contains(s, "\"")
}

func stripComment(line string) string {
	inString := false
	for i, ch := range line {
		switch ch {
		case '"':
			inString = !inString
		case ';':
			if !inString {
				return line[:i]
			}
		}
	}
	return line
}

// Disassemble renders a Module back to assembly text, replacing jump targets
// with generated labels (L0, L1, ...) for every address a
// JUMP/JUMP_IF_FALSE references.
func Disassemble(m *Module) string {
	targets := make(map[int]bool)
	for _, ins := range m.Instructions {
		if ins.Op == JUMP || ins.Op == JUMP_IF_FALSE {
			targets[int(ins.Int)] = true
		}
	}
	labelNames := make(map[int]string)
	for addr := range targets {
		labelNames[addr] = fmt.Sprintf("L%d", len(labelNames))
	}

	var b strings.Builder
	for addr, ins := range m.Instructions {
		if name, ok := labelNames[addr]; ok {
			fmt.Fprintf(&b, "%s:\n", name)
		}
		fmt.Fprintf(&b, "    %-14s", ins.Op.String())
		switch ins.Op {
		case JUMP, JUMP_IF_FALSE:
			if name, ok := labelNames[int(ins.Int)]; ok {
				b.WriteString(name)
			} else {
				fmt.Fprintf(&b, "%d", ins.Int)
			}
		case PUSH:
			b.WriteString(formatLiteral(ins))
		case LOAD, STORE, CALL:
			b.WriteString(ins.Str)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatLiteral(ins Instruction) string {
	switch ins.Tag {
	case TagFloat:
		return strconv.FormatFloat(ins.Float, 'g', -1, 64)
	case TagString:
		return strconv.Quote(ins.Str)
	case TagBool:
		return strconv.FormatBool(ins.Bool)
	default:
		return "<bad-push-operand>"
	}
}
