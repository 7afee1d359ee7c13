package symboltable

import "testing"

func TestDeclareAndLookup(t *testing.T) {
	tbl := New()
	if err := tbl.Declare("x", VariableKind, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, ok := tbl.Lookup("x")
	if !ok {
		t.Fatalf("expected to find x")
	}
	if entry.Slot != 0 || entry.Kind != VariableKind {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestDeclare_RedeclarationInSameScopeErrors(t *testing.T) {
	tbl := New()
	if err := tbl.Declare("x", VariableKind, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tbl.Declare("x", VariableKind, 1); err == nil {
		t.Fatalf("expected a redeclaration error")
	}
}

func TestDeclare_ShadowingInNestedScopeIsAllowed(t *testing.T) {
	tbl := New()
	_ = tbl.Declare("x", VariableKind, 0)
	tbl.EnterScope()
	if err := tbl.Declare("x", VariableKind, 1); err != nil {
		t.Fatalf("expected shadowing in a nested scope to be allowed: %v", err)
	}
	entry, _ := tbl.Lookup("x")
	if entry.Slot != 1 {
		t.Fatalf("expected lookup to find the innermost x (slot 1), got slot %d", entry.Slot)
	}
	tbl.ExitScope()
	entry, _ = tbl.Lookup("x")
	if entry.Slot != 0 {
		t.Fatalf("expected the outer x (slot 0) to resurface after ExitScope, got slot %d", entry.Slot)
	}
}

func TestLookup_UnknownNameNotFound(t *testing.T) {
	tbl := New()
	if _, ok := tbl.Lookup("missing"); ok {
		t.Fatalf("expected missing to not be found")
	}
}

func TestLookupLocal_OnlySearchesInnermostScope(t *testing.T) {
	tbl := New()
	_ = tbl.Declare("outer", VariableKind, 0)
	tbl.EnterScope()
	if _, ok := tbl.LookupLocal("outer"); ok {
		t.Fatalf("expected LookupLocal to not see the outer scope's declarations")
	}
	if _, ok := tbl.Lookup("outer"); !ok {
		t.Fatalf("expected Lookup to still find the outer scope's declarations")
	}
}

func TestExitScope_NoOpBelowGlobalScope(t *testing.T) {
	tbl := New()
	tbl.ExitScope()
	if tbl.Depth() != 0 {
		t.Fatalf("expected ExitScope on the global scope to be a no-op, depth=%d", tbl.Depth())
	}
}

func TestReset_DiscardsAllButGlobalScope(t *testing.T) {
	tbl := New()
	_ = tbl.Declare("x", VariableKind, 0)
	tbl.EnterScope()
	_ = tbl.Declare("y", VariableKind, 1)
	tbl.Reset()
	if tbl.Depth() != 0 {
		t.Fatalf("expected depth 0 after Reset, got %d", tbl.Depth())
	}
	if _, ok := tbl.Lookup("x"); ok {
		t.Fatalf("expected Reset to clear the global scope's declarations too")
	}
}

func TestDepth_TracksNesting(t *testing.T) {
	tbl := New()
	if tbl.Depth() != 0 {
		t.Fatalf("expected initial depth 0, got %d", tbl.Depth())
	}
	tbl.EnterScope()
	tbl.EnterScope()
	if tbl.Depth() != 2 {
		t.Fatalf("expected depth 2 after two EnterScope calls, got %d", tbl.Depth())
	}
}
