// Package vm implements the stack-based bytecode interpreter.
//
// Virtual Machine Architecture:
//
//  1. Operand stack: holds intermediate values during computation, shared
//     across every call frame.
//  2. Call stack: one Frame per active function invocation, each owning its
//     own name-keyed variable store (spec §9 "string-keyed variable store":
//     a scoped-stack of maps; a single top map per frame is sufficient since
//     this language has no nested lexical closures over an enclosing call).
//  3. Function table: loaded once per Module, read-only during execution.
//     Built-ins live in a separate, fixed table the VM owns itself.
//
// Execution Model:
//
// Step executes exactly one instruction and advances the instruction
// pointer, so Run (which just loops Step to completion) and a debugger's
// single-step command are the same primitive at different granularities.
// Jumps set ip to an absolute instruction index rather than a relative
// offset (spec §4.6). Every Instruction already carries its own literal
// operand (PUSH's value, LOAD/STORE/CALL's name, JUMP's target) — there is
// no constant pool to index into.
//
// Resource Limits:
//
// MaxOperandDepth, MaxCallDepth, and MaxSteps bound a runaway program: the
// first two fault as StackOverflow, the last as BudgetExceeded (spec §4.7,
// §6 resource model). MaxHeapBlocks bounds the auxiliary heap the same way,
// faulting OutOfMemory once a collection cycle can't bring usage back
// under the ceiling.
//
// Memory Manager:
//
// Every string-valued variable is backed by a block on a pkg/memory.Heap:
// STORE (and argument binding on CALL) allocates a block and roots it,
// reassigning the variable releases the old block first, and a frame's
// exit (RETURN or HALT) releases every root it still owns. Stack
// temporaries that never get STOREd into a name (e.g. an intermediate
// concatenation result) aren't heap-tracked — only named variables, the
// heap's natural root set, are.
package vm

import (
	"fmt"
	"math"

	"github.com/miniscript-lang/miniscript/pkg/bytecode"
	"github.com/miniscript-lang/miniscript/pkg/memory"
	"github.com/miniscript-lang/miniscript/pkg/value"
	"github.com/miniscript-lang/miniscript/pkg/vmerrors"
)

// heapKindString tags every heap block the VM allocates; strings are the
// only heap-allocated payload this language has.
const heapKindString = 1

// State is the VM's coarse execution phase.
type State int

const (
	StateReady State = iota
	StateRunning
	StateHalted
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateHalted:
		return "Halted"
	case StateFaulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// Frame is one call's activation record: its own name-keyed variable store
// and the instruction address to resume at on RETURN. heapRoots tracks,
// for every variable in Vars currently holding a String value, the heap
// block backing it (spec §4.8's memory manager): STORE allocates and roots
// a block per string variable, and the frame's exit releases every root it
// still owns.
type Frame struct {
	FuncName   string
	ReturnAddr int
	Vars       map[string]value.Value
	heapRoots  map[string]int
}

// Hook lets an external driver (the debugger) observe execution without the
// VM importing the debugger package. While a hook is attached, Run consults
// ShouldPause before every instruction; a direct Step call does not.
type Hook interface {
	ShouldPause(vm *VM) bool
}

// Limits bounds VM resource usage (spec §6).
type Limits struct {
	MaxOperandDepth int
	MaxCallDepth    int
	MaxSteps        int
	MaxHeapBlocks   int
}

// DefaultLimits mirrors the [execution]/[memory] section defaults in
// SPEC_FULL.md's configuration schema.
var DefaultLimits = Limits{
	MaxOperandDepth: 1000,
	MaxCallDepth:    100,
	MaxSteps:        100000,
	MaxHeapBlocks:   100000,
}

// Builtin is a native function the VM can CALL by name.
type Builtin func(args []value.Value) (value.Value, error)

// VM executes a single compiled Module at a time. Create one with New and
// call Load before Run/Step.
type VM struct {
	module *bytecode.Module
	stack  []value.Value
	frames []*Frame
	ip     int
	steps  int
	state  State

	limits   Limits
	builtins map[string]Builtin
	hook     Hook

	heap            *memory.Heap
	heapInitialSize int
	heapGCThreshold int

	// PrintFunc is where PRINT writes; defaults to a fmt.Println
	// equivalent, overridable (e.g. by the CLI for colorized output, or by
	// tests to capture output).
	PrintFunc func(string)
}

// New creates a VM with the default resource limits, built-in table, and
// heap sizing.
func New() *VM {
	vm := &VM{
		limits:          DefaultLimits,
		heapInitialSize: 256,
		heapGCThreshold: 4096,
		PrintFunc:       func(s string) { fmt.Println(s) },
	}
	vm.builtins = vm.defaultBuiltins()
	vm.heap = memory.New(vm.heapInitialSize, vm.heapGCThreshold)
	return vm
}

// SetLimits overrides the default resource limits (e.g. from loaded config).
func (vm *VM) SetLimits(l Limits) { vm.limits = l }

// SetHeap reconfigures the heap's initial size and collection threshold;
// the new sizing takes effect the next time Load runs (Load always starts
// a program with a fresh heap).
func (vm *VM) SetHeap(initialSize, gcThreshold int) {
	vm.heapInitialSize = initialSize
	vm.heapGCThreshold = gcThreshold
}

// HeapStats reports the auxiliary heap's current statistics, for the
// debugger's memory view and the CLI's --heap-stats flag.
func (vm *VM) HeapStats() memory.Statistics { return vm.heap.Stats() }

// SetHook attaches a debugger hook; pass nil to detach.
func (vm *VM) SetHook(h Hook) { vm.hook = h }

// State returns the VM's current execution phase.
func (vm *VM) State() State { return vm.state }

// IP returns the current instruction pointer.
func (vm *VM) IP() int { return vm.ip }

// Module returns the loaded module, or nil if none is loaded.
func (vm *VM) Module() *bytecode.Module { return vm.module }

// Stack returns the live operand stack, for debugger inspection. Callers
// must not retain or mutate the returned slice across further Step calls.
func (vm *VM) Stack() []value.Value { return vm.stack }

// Frames returns the live call stack, outermost first.
func (vm *VM) Frames() []*Frame { return vm.frames }

// Load resets the VM and prepares it to execute m from the beginning,
// starting from a fresh heap sized per SetHeap (or the defaults from New).
func (vm *VM) Load(m *bytecode.Module) {
	vm.module = m
	vm.stack = vm.stack[:0]
	vm.ip = 0
	vm.steps = 0
	vm.state = StateReady
	vm.heap = memory.New(vm.heapInitialSize, vm.heapGCThreshold)
	vm.frames = []*Frame{vm.newFrame("<main>", 0)}
}

func (vm *VM) newFrame(funcName string, returnAddr int) *Frame {
	return &Frame{
		FuncName:   funcName,
		ReturnAddr: returnAddr,
		Vars:       make(map[string]value.Value),
		heapRoots:  make(map[string]int),
	}
}

// Run executes instructions until the program halts, faults, or a hook
// requests a pause. A pause returns nil with state left Running so
// the caller (typically a debugger Session) can inspect state and call Run
// again to resume.
func (vm *VM) Run() error {
	vm.state = StateRunning
	for {
		if vm.hook != nil && vm.hook.ShouldPause(vm) {
			return nil
		}
		halted, err := vm.Step()
		if err != nil {
			vm.state = StateFaulted
			return err
		}
		if halted {
			vm.state = StateHalted
			return nil
		}
	}
}

// Step executes exactly one instruction. halted is true once the program
// has finished (HALT reached, or RETURN from the outermost frame).
func (vm *VM) Step() (halted bool, err error) {
	if vm.ip < 0 || vm.ip >= len(vm.module.Instructions) {
		return true, nil
	}

	vm.steps++
	if vm.steps > vm.limits.MaxSteps {
		return false, vm.fault(vmerrors.BudgetExceeded, fmt.Sprintf("exceeded step budget of %d instructions", vm.limits.MaxSteps))
	}

	inst := vm.module.Instructions[vm.ip]
	vm.ip++

	switch inst.Op {
	case bytecode.PUSH:
		return false, vm.push(instructionToValue(inst))

	case bytecode.POP:
		_, err := vm.pop()
		return false, err

	case bytecode.DUP:
		v, err := vm.top()
		if err != nil {
			return false, err
		}
		return false, vm.push(v)

	case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD,
		bytecode.EQ, bytecode.NE, bytecode.LT, bytecode.GT, bytecode.LE, bytecode.GE:
		return false, vm.binaryOp(inst.Op)

	case bytecode.JUMP:
		vm.ip = int(inst.Int)
		return false, nil

	case bytecode.JUMP_IF_FALSE:
		cond, err := vm.pop()
		if err != nil {
			return false, err
		}
		if !cond.Truthy() {
			vm.ip = int(inst.Int)
		}
		return false, nil

	case bytecode.LOAD:
		frame := vm.currentFrame()
		v, ok := frame.Vars[inst.Str]
		if !ok {
			return false, vm.fault(vmerrors.UndefinedVariable, fmt.Sprintf("undefined variable %q", inst.Str))
		}
		return false, vm.push(v)

	case bytecode.STORE:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if err := vm.bindVar(vm.currentFrame(), inst.Str, v); err != nil {
			return false, err
		}
		return false, nil

	case bytecode.CALL:
		return false, vm.call(inst.Str)

	case bytecode.RETURN:
		return vm.doReturn()

	case bytecode.PRINT:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		vm.PrintFunc(v.ToString())
		return false, nil

	case bytecode.HALT:
		vm.releaseFrame(vm.currentFrame())
		return true, nil

	default:
		return false, vm.fault(vmerrors.InvalidJump, fmt.Sprintf("unknown opcode %d at ip=%d", inst.Op, vm.ip-1))
	}
}

func (vm *VM) currentFrame() *Frame { return vm.frames[len(vm.frames)-1] }

// bindVar assigns v to name in frame, maintaining the heap root backing
// that variable: a prior string occupant is released, and a new string
// value is allocated and rooted. Non-string values hold no heap block.
func (vm *VM) bindVar(frame *Frame, name string, v value.Value) error {
	if old, ok := frame.heapRoots[name]; ok {
		vm.heap.RemoveRoot(old)
		vm.heap.Release(old)
		delete(frame.heapRoots, name)
	}
	frame.Vars[name] = v
	if v.Kind == value.String {
		addr, err := vm.allocHeapString(v.Str)
		if err != nil {
			return err
		}
		vm.heap.AddRoot(addr)
		frame.heapRoots[name] = addr
	}
	return nil
}

// allocHeapString allocates a heap block for a string value, running a
// collection cycle and faulting OutOfMemory if the configured block
// ceiling is still exceeded afterward.
func (vm *VM) allocHeapString(s string) (int, error) {
	if vm.heap.Stats().Allocated >= vm.limits.MaxHeapBlocks {
		vm.heap.Collect()
		if vm.heap.Stats().Allocated >= vm.limits.MaxHeapBlocks {
			return 0, memory.OutOfMemory(fmt.Sprintf("heap exhausted: %d blocks allocated", vm.limits.MaxHeapBlocks))
		}
	}
	addr, err := vm.heap.Allocate(heapKindString, []byte(s), nil)
	if err != nil {
		return 0, memory.OutOfMemory(err.Error())
	}
	return addr, nil
}

// releaseFrame releases every heap root the frame still owns, run on
// RETURN and HALT so a function's (or the program's) string variables
// don't outlive their scope.
func (vm *VM) releaseFrame(frame *Frame) {
	for name, addr := range frame.heapRoots {
		vm.heap.RemoveRoot(addr)
		vm.heap.Release(addr)
		delete(frame.heapRoots, name)
	}
}

func (vm *VM) push(v value.Value) error {
	if len(vm.stack) >= vm.limits.MaxOperandDepth {
		return vm.fault(vmerrors.StackOverflow, "operand stack overflow")
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (value.Value, error) {
	if len(vm.stack) == 0 {
		return value.Value{}, vm.fault(vmerrors.StackOverflow, "operand stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) top() (value.Value, error) {
	if len(vm.stack) == 0 {
		return value.Value{}, vm.fault(vmerrors.StackOverflow, "operand stack underflow")
	}
	return vm.stack[len(vm.stack)-1], nil
}

func (vm *VM) fault(kind vmerrors.RuntimeKind, message string) error {
	return vmerrors.NewRuntimeError(kind, message, vm.trace())
}

func (vm *VM) trace() []vmerrors.Frame {
	out := make([]vmerrors.Frame, len(vm.frames))
	for i, f := range vm.frames {
		out[i] = vmerrors.Frame{Address: f.ReturnAddr, FunctionName: f.FuncName}
	}
	return out
}

// instructionToValue converts a PUSH instruction's own literal operand into
// the value it pushes; there is no constant pool to look up.
func instructionToValue(ins bytecode.Instruction) value.Value {
	switch ins.Tag {
	case bytecode.TagInt:
		return value.Num64(float64(ins.Int))
	case bytecode.TagFloat:
		return value.Num64(ins.Float)
	case bytecode.TagString:
		return value.Str64(ins.Str)
	case bytecode.TagBool:
		return value.Bool64(ins.Bool)
	default:
		return value.Zero
	}
}

func (vm *VM) binaryOp(op bytecode.Opcode) error {
	right, err := vm.pop()
	if err != nil {
		return err
	}
	left, err := vm.pop()
	if err != nil {
		return err
	}

	switch op {
	case bytecode.ADD:
		if left.Kind == value.String || right.Kind == value.String {
			return vm.push(value.Str64(left.ToString() + right.ToString()))
		}
		ln, rn, err := vm.coercePair(left, right)
		if err != nil {
			return err
		}
		return vm.push(value.Num64(ln + rn))

	case bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD:
		ln, rn, err := vm.coercePair(left, right)
		if err != nil {
			return err
		}
		switch op {
		case bytecode.SUB:
			return vm.push(value.Num64(ln - rn))
		case bytecode.MUL:
			return vm.push(value.Num64(ln * rn))
		case bytecode.DIV:
			if rn == 0 {
				return vm.fault(vmerrors.DivisionByZero, "division by zero")
			}
			return vm.push(value.Num64(ln / rn))
		case bytecode.MOD:
			if rn == 0 {
				return vm.fault(vmerrors.DivisionByZero, "modulo by zero")
			}
			return vm.push(value.Num64(math.Mod(ln, rn)))
		}

	case bytecode.EQ:
		return vm.push(value.Bool64(left.Equal(right)))
	case bytecode.NE:
		return vm.push(value.Bool64(!left.Equal(right)))

	case bytecode.LT, bytecode.GT, bytecode.LE, bytecode.GE:
		ln, rn, err := vm.coercePair(left, right)
		if err != nil {
			return err
		}
		switch op {
		case bytecode.LT:
			return vm.push(value.Bool64(ln < rn))
		case bytecode.GT:
			return vm.push(value.Bool64(ln > rn))
		case bytecode.LE:
			return vm.push(value.Bool64(ln <= rn))
		case bytecode.GE:
			return vm.push(value.Bool64(ln >= rn))
		}
	}
	return vm.fault(vmerrors.TypeMismatch, fmt.Sprintf("unsupported binary opcode %s", op))
}

func (vm *VM) coercePair(left, right value.Value) (float64, float64, error) {
	ln, err := left.ToNumber()
	if err != nil {
		return 0, 0, vm.fault(vmerrors.TypeMismatch, err.Error())
	}
	rn, err := right.ToNumber()
	if err != nil {
		return 0, 0, vm.fault(vmerrors.TypeMismatch, err.Error())
	}
	return ln, rn, nil
}

// call resolves name against the user-function table first, then the
// built-in table. Neither CALL nor either table carries an explicit
// argument count on the instruction itself: a user function's arity is the
// length of its declared parameter list, and every built-in has a fixed
// arity recorded in builtinArity (spec §4.6/§4.7 — CALL names its callee
// and nothing else).
func (vm *VM) call(name string) error {
	if info, ok := vm.module.Functions[name]; ok {
		argc := info.ParamCount()
		if len(vm.frames) >= vm.limits.MaxCallDepth {
			return vm.fault(vmerrors.StackOverflow, fmt.Sprintf("call depth exceeded calling %q", name))
		}
		args := make([]value.Value, argc)
		for i := argc - 1; i >= 0; i-- {
			v, err := vm.pop()
			if err != nil {
				return err
			}
			args[i] = v
		}
		frame := vm.newFrame(name, vm.ip)
		for i, param := range info.Parameters {
			if err := vm.bindVar(frame, param, args[i]); err != nil {
				return err
			}
		}
		vm.frames = append(vm.frames, frame)
		vm.ip = info.Address
		return nil
	}

	if builtin, ok := vm.builtins[name]; ok {
		argc, ok := builtinArity[name]
		if !ok {
			return vm.fault(vmerrors.UndefinedFunction, fmt.Sprintf("no arity registered for built-in %q", name))
		}
		args := make([]value.Value, argc)
		for i := argc - 1; i >= 0; i-- {
			v, err := vm.pop()
			if err != nil {
				return err
			}
			args[i] = v
		}
		result, err := builtin(args)
		if err != nil {
			return vmerrors.WrapBuiltin(name, err, vm.trace())
		}
		return vm.push(result)
	}

	return vm.fault(vmerrors.UndefinedFunction, fmt.Sprintf("undefined function %q", name))
}

func (vm *VM) doReturn() (halted bool, err error) {
	retVal, err := vm.pop()
	if err != nil {
		return false, err
	}
	if len(vm.frames) <= 1 {
		vm.releaseFrame(vm.currentFrame())
		if err := vm.push(retVal); err != nil {
			return false, err
		}
		return true, nil
	}
	frame := vm.currentFrame()
	vm.releaseFrame(frame)
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.ip = frame.ReturnAddr
	return false, vm.push(retVal)
}
