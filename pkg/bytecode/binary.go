// Binary serialization for compiled modules (the .msb format).
//
// Instruction section layout (spec §4.6/§10, bit-exact):
//
//	[Count]   4 bytes, little-endian
//	[Instruction]*
//	  Opcode       1 byte
//	  Operand tag  1 byte (0=absent, 1=i64, 2=f64, 3=utf8 string, 4=bool)
//	  Operand payload, per tag:
//	    absent  -> nothing
//	    i64     -> 8 bytes, little-endian
//	    f64     -> 8 bytes, little-endian (IEEE-754 bit pattern)
//	    string  -> 4-byte little-endian length, then that many UTF-8 bytes
//	    bool    -> 1 byte, 0 or 1
//
// EncodeInstructions/DecodeInstructions implement exactly this layout, with
// nothing before or after it, so instructions -> binary -> instructions is
// bit-for-bit exact.
//
// Encode/Decode additionally append a Functions section after the
// instruction stream (count, then per entry: name, address, parameter
// names) so a .msb file loaded by the CLI keeps the name->address table the
// compiler's two-pass CALL resolution (see pkg/compiler) depends on — the
// instruction section a reader parses first is unaffected and still matches
// the spec layout byte-for-byte; see DESIGN.md for why this table isn't
// itself part of the spec's literal binary format.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// EncodeInstructions writes instructions to w in the exact binary layout
// spec §4.6/§10 describes: no header, no magic number, no version.
func EncodeInstructions(instructions []Instruction, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(instructions))); err != nil {
		return err
	}
	for i, ins := range instructions {
		if err := writeInstruction(w, ins); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	return nil
}

// DecodeInstructions reads instructions previously written by
// EncodeInstructions, with nothing else in r.
func DecodeInstructions(r io.Reader) ([]Instruction, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	out := make([]Instruction, 0, count)
	for i := uint32(0); i < count; i++ {
		ins, err := readInstruction(r)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		out = append(out, ins)
	}
	return out, nil
}

func writeInstruction(w io.Writer, ins Instruction) error {
	if _, err := w.Write([]byte{byte(ins.Op), byte(ins.Tag)}); err != nil {
		return err
	}
	switch ins.Tag {
	case TagAbsent:
		return nil
	case TagInt:
		return binary.Write(w, binary.LittleEndian, ins.Int)
	case TagFloat:
		return binary.Write(w, binary.LittleEndian, math.Float64bits(ins.Float))
	case TagString:
		b := []byte(ins.Str)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
			return err
		}
		_, err := w.Write(b)
		return err
	case TagBool:
		var b byte
		if ins.Bool {
			b = 1
		}
		_, err := w.Write([]byte{b})
		return err
	default:
		return fmt.Errorf("unknown operand tag %d", ins.Tag)
	}
}

func readInstruction(r io.Reader) (Instruction, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Instruction{}, err
	}
	ins := Instruction{Op: Opcode(header[0]), Tag: OperandTag(header[1])}
	switch ins.Tag {
	case TagAbsent:
		return ins, nil
	case TagInt:
		if err := binary.Read(r, binary.LittleEndian, &ins.Int); err != nil {
			return Instruction{}, err
		}
		return ins, nil
	case TagFloat:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return Instruction{}, err
		}
		ins.Float = math.Float64frombits(bits)
		return ins, nil
	case TagString:
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return Instruction{}, err
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Instruction{}, err
		}
		ins.Str = string(buf)
		return ins, nil
	case TagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Instruction{}, err
		}
		ins.Bool = b[0] != 0
		return ins, nil
	default:
		return Instruction{}, fmt.Errorf("unknown operand tag %d", ins.Tag)
	}
}

// Encode writes m to w: the spec-exact instruction section (see
// EncodeInstructions) followed by this format's own Functions section.
func Encode(m *Module, w io.Writer) error {
	if err := EncodeInstructions(m.Instructions, w); err != nil {
		return fmt.Errorf("write instructions: %w", err)
	}
	return writeFunctions(w, m.Functions)
}

// Decode reads a module previously written by Encode.
func Decode(r io.Reader) (*Module, error) {
	instructions, err := DecodeInstructions(r)
	if err != nil {
		return nil, fmt.Errorf("read instructions: %w", err)
	}
	functions, err := readFunctions(r)
	if err != nil {
		return nil, fmt.Errorf("read functions: %w", err)
	}
	return &Module{Instructions: instructions, Functions: functions}, nil
}

func writeFunctions(w io.Writer, functions map[string]FunctionInfo) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(functions))); err != nil {
		return err
	}
	for name, info := range functions {
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(info.Address)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(info.Parameters))); err != nil {
			return err
		}
		for _, p := range info.Parameters {
			if err := writeString(w, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func readFunctions(r io.Reader) (map[string]FunctionInfo, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	functions := make(map[string]FunctionInfo, count)
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		var addr uint32
		if err := binary.Read(r, binary.LittleEndian, &addr); err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		var paramCount uint32
		if err := binary.Read(r, binary.LittleEndian, &paramCount); err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		params := make([]string, paramCount)
		for j := range params {
			p, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("function %d param %d: %w", i, j, err)
			}
			params[j] = p
		}
		functions[name] = FunctionInfo{Address: int(addr), Parameters: params}
	}
	return functions, nil
}

func writeString(w io.Writer, s string) error {
	b := []byte(s)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
