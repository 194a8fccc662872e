package errors

import (
	"fmt"
	"testing"
)

func TestExitCodeFollowsWrappedError(t *testing.T) {
	base := New(CodeChainMismatch, "chain mismatch")
	wrapped := fmt.Errorf("approve stage: %w", base)
	if got := ExitCode(wrapped); got != int(CodeChainMismatch) {
		t.Fatalf("expected exit code %d, got %d", CodeChainMismatch, got)
	}
	if !HasCode(wrapped, CodeChainMismatch) {
		t.Fatal("expected HasCode to see through wrapping")
	}
	if HasCode(wrapped, CodeUsage) {
		t.Fatal("unexpected usage code match")
	}
}

func TestWithDetailAccumulates(t *testing.T) {
	err := New(CodeUnsupportedOrderType, "unsupported order").
		WithDetail("order_type", "FOO").
		WithDetail("request", `{"order":{}}`)
	if len(err.Details) != 2 {
		t.Fatalf("expected two details, got %#v", err.Details)
	}
	if err.Details["order_type"] != "FOO" {
		t.Fatalf("unexpected order_type detail: %v", err.Details["order_type"])
	}
}

func TestExitCodeForPlainError(t *testing.T) {
	if got := ExitCode(fmt.Errorf("boom")); got != int(CodeInternal) {
		t.Fatalf("expected internal exit code, got %d", got)
	}
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected success exit code, got %d", got)
	}
}

func TestTypeName(t *testing.T) {
	if TypeName(CodeInvalidLazyProof) != "invalid_lazy_proof" {
		t.Fatalf("unexpected type name: %s", TypeName(CodeInvalidLazyProof))
	}
	if TypeName(Code(999)) != "internal_error" {
		t.Fatalf("unexpected fallback type name: %s", TypeName(Code(999)))
	}
}

func TestCodesHaveTypeNames(t *testing.T) {
	seen := map[string]bool{}
	for _, code := range Codes() {
		name := TypeName(code)
		if code != CodeInternal && name == "internal_error" {
			t.Fatalf("code %d has no type name", code)
		}
		if seen[name] {
			t.Fatalf("duplicate type name %s", name)
		}
		seen[name] = true
	}
}
