package debugger

import (
	"testing"

	"github.com/miniscript-lang/miniscript/pkg/bytecode"
)

func sampleModule() *bytecode.Module {
	return &bytecode.Module{
		Instructions: []bytecode.Instruction{
			/*0*/ bytecode.FloatOperand(bytecode.PUSH, 1),
			/*1*/ bytecode.FloatOperand(bytecode.PUSH, 2),
			/*2*/ bytecode.NoOperand(bytecode.ADD),
			/*3*/ bytecode.NoOperand(bytecode.HALT),
		},
	}
}

func TestSession_StepExecutesOneInstructionAtATime(t *testing.T) {
	s := NewSession(sampleModule())
	if err := s.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Stack()) != 1 {
		t.Fatalf("expected exactly one value pushed after one Step, got %#v", s.Stack())
	}
}

func TestSession_BreakpointPausesContinue(t *testing.T) {
	s := NewSession(sampleModule())
	s.AddBreakpoint(2, "")
	if err := s.Continue(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.VM().IP() != 2 {
		t.Fatalf("expected execution to pause at IP 2, got %d", s.VM().IP())
	}
	bps := s.Breakpoints()
	if len(bps) != 1 || bps[0].HitCount != 1 {
		t.Fatalf("expected the breakpoint's hit count to be 1, got %#v", bps)
	}
}

func TestSession_ContinueRunsToHaltWithNoBreakpoints(t *testing.T) {
	s := NewSession(sampleModule())
	if err := s.Continue(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stack := s.Stack()
	if len(stack) != 1 || stack[0].Num != 3 {
		t.Fatalf("expected [3] on the stack after a full run, got %#v", stack)
	}
}

func TestSession_RemoveBreakpointStopsItFromPausing(t *testing.T) {
	s := NewSession(sampleModule())
	id := s.AddBreakpoint(2, "")
	if !s.RemoveBreakpoint(id) {
		t.Fatalf("expected RemoveBreakpoint to report success")
	}
	if err := s.Continue(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Stack()) != 1 || s.Stack()[0].Num != 3 {
		t.Fatalf("expected the run to go straight to completion once the breakpoint was removed")
	}
}

func TestSession_ToggleBreakpointDisablesPausing(t *testing.T) {
	s := NewSession(sampleModule())
	id := s.AddBreakpoint(2, "")
	s.ToggleBreakpoint(id)
	if err := s.Continue(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Stack()) != 1 || s.Stack()[0].Num != 3 {
		t.Fatalf("expected a disabled breakpoint to not pause execution")
	}
}

func TestSession_ClearBreakpointsRemovesAll(t *testing.T) {
	s := NewSession(sampleModule())
	s.AddBreakpoint(1, "")
	s.AddBreakpoint(2, "")
	s.ClearBreakpoints()
	if len(s.Breakpoints()) != 0 {
		t.Fatalf("expected no breakpoints after ClearBreakpoints")
	}
}

func TestSession_ContinueBudgetReportsExhaustion(t *testing.T) {
	s := NewSession(sampleModule())
	exhausted, err := s.ContinueBudget(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exhausted {
		t.Fatalf("expected the 2-step budget to be exhausted before the 4-instruction program halts")
	}
	exhausted, err = s.ContinueBudget(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exhausted {
		t.Fatalf("expected the remaining instructions to finish well within a 10-step budget")
	}
}

func TestSession_TraceAccumulatesExecutedInstructions(t *testing.T) {
	s := NewSession(sampleModule())
	s.EnableTrace()
	_ = s.Step()
	_ = s.Step()
	trace := s.Trace()
	if len(trace) != 2 {
		t.Fatalf("expected 2 trace entries, got %d", len(trace))
	}
	if trace[0].IP != 0 || trace[1].IP != 1 {
		t.Fatalf("expected trace IPs [0, 1], got [%d, %d]", trace[0].IP, trace[1].IP)
	}
}

func TestSession_DisableTraceStopsAccumulating(t *testing.T) {
	s := NewSession(sampleModule())
	s.EnableTrace()
	_ = s.Step()
	s.DisableTrace()
	_ = s.Step()
	if len(s.Trace()) != 1 {
		t.Fatalf("expected trace to stop growing once disabled, got %d entries", len(s.Trace()))
	}
}

func TestSession_SubscribeReceivesBreakpointEvent(t *testing.T) {
	s := NewSession(sampleModule())
	s.AddBreakpoint(2, "")
	var gotEvent Event
	var called bool
	s.Subscribe(EventBreakpoint, func(e Event) {
		called = true
		gotEvent = e
	})
	if err := s.Continue(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected the breakpoint subscriber to be invoked")
	}
	if gotEvent.IP != 2 {
		t.Fatalf("expected the event IP to be 2, got %d", gotEvent.IP)
	}
}

func TestSession_ResetReloadsFromTheBeginning(t *testing.T) {
	s := NewSession(sampleModule())
	_ = s.Step()
	_ = s.Step()
	s.Reset(nil)
	if s.VM().IP() != 0 {
		t.Fatalf("expected IP to be reset to 0, got %d", s.VM().IP())
	}
	if len(s.Stack()) != 0 {
		t.Fatalf("expected the stack to be empty after Reset, got %#v", s.Stack())
	}
	if len(s.Trace()) != 0 {
		t.Fatalf("expected the trace to be cleared after Reset")
	}
}

func TestSession_CurrentInstructionReportsNextToExecute(t *testing.T) {
	s := NewSession(sampleModule())
	ins, ok := s.CurrentInstruction()
	if !ok || ins.Op != bytecode.PUSH {
		t.Fatalf("expected the first instruction to be PUSH, got %#v (ok=%v)", ins, ok)
	}
}

func TestSession_DescribeInstructionOutOfRange(t *testing.T) {
	s := NewSession(sampleModule())
	desc := s.DescribeInstruction(99)
	if desc == "" {
		t.Fatalf("expected a non-empty description even for an out-of-range address")
	}
}
