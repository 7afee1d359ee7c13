// Package debugger implements the Session API of spec §4.9: breakpoints,
// single-stepping, budgeted continue, execution trace, and event
// subscription over a running VM.
//
// It generalizes the teacher's vm.Debugger — a map-of-bool breakpoint set,
// a stepMode flag, and a synchronous InteractivePrompt reading os.Stdin —
// into a programmatic API a caller drives directly (the CLI's `repl`
// subcommand does not use it; it runs the VM directly). Breakpoints gain
// IDs, hit counts, and an optional condition; the teacher's blocking REPL
// loop becomes explicit Start/Step/Continue calls plus a synchronous event
// callback so any caller can observe execution the same way.
package debugger

import (
	"fmt"

	"github.com/miniscript-lang/miniscript/pkg/bytecode"
	"github.com/miniscript-lang/miniscript/pkg/memory"
	"github.com/miniscript-lang/miniscript/pkg/value"
	"github.com/miniscript-lang/miniscript/pkg/vm"
)

// Breakpoint is one address-triggered pause point.
type Breakpoint struct {
	ID        int
	Address   int
	Enabled   bool
	HitCount  int
	Condition string // non-empty: only an unconditional pause is implemented (see DESIGN.md)
}

// EventKind discriminates the events a Session publishes.
type EventKind int

const (
	EventStart EventKind = iota
	EventStep
	EventBreakpoint
	EventHalt
	EventError
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventStep:
		return "step"
	case EventBreakpoint:
		return "breakpoint"
	case EventHalt:
		return "halt"
	case EventError:
		return "error"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event is published to subscribers on every state transition of interest.
type Event struct {
	Kind EventKind
	IP   int
	Err  error
}

// TraceEntry records one executed instruction, for Session.Trace.
type TraceEntry struct {
	IP          int
	Instruction bytecode.Instruction
}

// Session drives a VM under debugger control.
type Session struct {
	vm     *vm.VM
	module *bytecode.Module

	breakpoints map[int]*Breakpoint
	nextBPID    int

	stepMode bool
	tracing  bool
	trace    []TraceEntry

	subscribers map[EventKind][]func(Event)
}

// NewSession creates a session over a freshly loaded module.
func NewSession(m *bytecode.Module) *Session {
	s := &Session{
		vm:          vm.New(),
		module:      m,
		breakpoints: make(map[int]*Breakpoint),
		subscribers: make(map[EventKind][]func(Event)),
	}
	s.vm.Load(m)
	s.vm.SetHook(s)
	return s
}

// VM exposes the underlying VM for inspection by callers that need more
// than Session's own accessors.
func (s *Session) VM() *vm.VM { return s.vm }

// Subscribe registers fn to be called synchronously whenever an event of
// kind k is published.
func (s *Session) Subscribe(kind EventKind, fn func(Event)) {
	s.subscribers[kind] = append(s.subscribers[kind], fn)
}

func (s *Session) emit(e Event) {
	for _, fn := range s.subscribers[e.Kind] {
		fn(e)
	}
}

// ShouldPause implements vm.Hook: stepMode pauses after every instruction;
// otherwise a hit, enabled breakpoint at the current IP pauses.
func (s *Session) ShouldPause(v *vm.VM) bool {
	if s.stepMode {
		return true
	}
	if bp, ok := s.breakpoints[v.IP()]; ok && bp.Enabled {
		bp.HitCount++
		s.emit(Event{Kind: EventBreakpoint, IP: v.IP()})
		return true
	}
	return false
}

// EnableTrace turns on instruction tracing (Session.Trace accumulates an
// entry per executed instruction); DisableTrace turns it back off.
func (s *Session) EnableTrace()  { s.tracing = true }
func (s *Session) DisableTrace() { s.tracing = false }

// Trace returns every instruction executed so far while tracing was on.
func (s *Session) Trace() []TraceEntry { return s.trace }

// Start begins execution from the current IP (normally 0, right after
// Reset/NewSession), running until a breakpoint, halt, or fault.
func (s *Session) Start() error {
	s.emit(Event{Kind: EventStart, IP: s.vm.IP()})
	return s.runToPause()
}

// Step executes exactly one instruction regardless of breakpoints.
func (s *Session) Step() error {
	if s.tracing {
		if ip := s.vm.IP(); ip >= 0 && ip < len(s.module.Instructions) {
			s.trace = append(s.trace, TraceEntry{IP: ip, Instruction: s.module.Instructions[ip]})
		}
	}
	halted, err := s.vm.Step()
	if err != nil {
		s.emit(Event{Kind: EventError, IP: s.vm.IP(), Err: err})
		return err
	}
	if halted {
		s.emit(Event{Kind: EventHalt, IP: s.vm.IP()})
		return nil
	}
	s.emit(Event{Kind: EventStep, IP: s.vm.IP()})
	return nil
}

// Continue resumes execution (clearing single-step mode) until the next
// breakpoint, halt, or fault.
func (s *Session) Continue() error {
	s.stepMode = false
	return s.runToPause()
}

// ContinueBudget runs up to maxSteps instructions (or until a pause/halt/
// fault, whichever comes first) and reports whether the budget was
// exhausted without the program finishing.
func (s *Session) ContinueBudget(maxSteps int) (budgetExhausted bool, err error) {
	s.stepMode = false
	for i := 0; i < maxSteps; i++ {
		if bp, ok := s.breakpoints[s.vm.IP()]; ok && bp.Enabled {
			bp.HitCount++
			s.emit(Event{Kind: EventBreakpoint, IP: s.vm.IP()})
			return false, nil
		}
		halted, err := s.vm.Step()
		if err != nil {
			s.emit(Event{Kind: EventError, IP: s.vm.IP(), Err: err})
			return false, err
		}
		if halted {
			s.emit(Event{Kind: EventHalt, IP: s.vm.IP()})
			return false, nil
		}
	}
	return true, nil
}

func (s *Session) runToPause() error {
	err := s.vm.Run()
	if err != nil {
		s.emit(Event{Kind: EventError, IP: s.vm.IP(), Err: err})
		return err
	}
	if s.vm.State() == vm.StateHalted {
		s.emit(Event{Kind: EventHalt, IP: s.vm.IP()})
	}
	return nil
}

// SetStepMode toggles single-instruction pausing.
func (s *Session) SetStepMode(on bool) { s.stepMode = on }

// AddBreakpoint registers a breakpoint at address and returns its ID.
// Condition is stored but not evaluated — an unconditional breakpoint is
// the only kind implemented (see DESIGN.md's Open Question decision).
func (s *Session) AddBreakpoint(address int, condition string) int {
	s.nextBPID++
	s.breakpoints[address] = &Breakpoint{ID: s.nextBPID, Address: address, Enabled: true, Condition: condition}
	return s.nextBPID
}

// RemoveBreakpoint deletes the breakpoint with the given ID.
func (s *Session) RemoveBreakpoint(id int) bool {
	for addr, bp := range s.breakpoints {
		if bp.ID == id {
			delete(s.breakpoints, addr)
			return true
		}
	}
	return false
}

// ToggleBreakpoint flips a breakpoint's enabled flag.
func (s *Session) ToggleBreakpoint(id int) bool {
	for _, bp := range s.breakpoints {
		if bp.ID == id {
			bp.Enabled = !bp.Enabled
			return true
		}
	}
	return false
}

// ClearBreakpoints removes every breakpoint.
func (s *Session) ClearBreakpoints() { s.breakpoints = make(map[int]*Breakpoint) }

// Breakpoints lists every registered breakpoint.
func (s *Session) Breakpoints() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(s.breakpoints))
	for _, bp := range s.breakpoints {
		out = append(out, bp)
	}
	return out
}

// Reset reloads m (or the current module if m is nil) from the beginning.
func (s *Session) Reset(m *bytecode.Module) {
	if m != nil {
		s.module = m
	}
	s.vm.Load(s.module)
	s.vm.SetHook(s)
	s.trace = nil
	s.emit(Event{Kind: EventReset, IP: 0})
}

// Stack returns the live operand stack.
func (s *Session) Stack() []value.Value { return s.vm.Stack() }

// Locals returns the current frame's variable store, keyed by name.
func (s *Session) Locals() map[string]value.Value {
	frames := s.vm.Frames()
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1].Vars
}

// CallStack returns the active call frames, outermost first.
func (s *Session) CallStack() []*vm.Frame { return s.vm.Frames() }

// HeapStats reports the underlying VM's auxiliary heap statistics, for a
// memory view alongside Stack/Locals/CallStack.
func (s *Session) HeapStats() memory.Statistics { return s.vm.HeapStats() }

// CurrentInstruction returns the instruction about to execute.
func (s *Session) CurrentInstruction() (bytecode.Instruction, bool) {
	ip := s.vm.IP()
	if ip < 0 || ip >= len(s.module.Instructions) {
		return bytecode.Instruction{}, false
	}
	return s.module.Instructions[ip], true
}

// DescribeInstruction renders the instruction at ip for display, matching
// the teacher's listInstructions formatting.
func (s *Session) DescribeInstruction(ip int) string {
	if ip < 0 || ip >= len(s.module.Instructions) {
		return fmt.Sprintf("%d: <out of range>", ip)
	}
	ins := s.module.Instructions[ip]
	switch ins.Tag {
	case bytecode.TagInt:
		return fmt.Sprintf("%4d: %s %d", ip, ins.Op, ins.Int)
	case bytecode.TagFloat:
		return fmt.Sprintf("%4d: %s %v", ip, ins.Op, ins.Float)
	case bytecode.TagString:
		return fmt.Sprintf("%4d: %s %q", ip, ins.Op, ins.Str)
	case bytecode.TagBool:
		return fmt.Sprintf("%4d: %s %v", ip, ins.Op, ins.Bool)
	default:
		return fmt.Sprintf("%4d: %s", ip, ins.Op)
	}
}
