package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestBuildSchema(t *testing.T) {
	root := &cobra.Command{Use: "orderfill"}
	root.PersistentFlags().String("network", "mainnet", "network name")
	child := &cobra.Command{Use: "attempts", Short: "fill attempts"}
	leaf := &cobra.Command{Use: "list", Short: "list attempts"}
	leaf.Flags().Int("limit", 20, "limit results")
	child.AddCommand(leaf)
	root.AddCommand(child)

	s, err := Build(root, "attempts list")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "orderfill attempts list" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if len(s.Flags) != 2 || s.Flags[0].Name != "limit" {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}
	if !s.Flags[1].Inherited || s.Flags[1].Name != "network" {
		t.Fatalf("expected inherited network flag, got %+v", s.Flags[1])
	}
}

func TestBuildSchemaRequiredFlag(t *testing.T) {
	root := &cobra.Command{Use: "orderfill"}
	leaf := &cobra.Command{Use: "fill"}
	leaf.Flags().String("order", "", "order file")
	_ = leaf.MarkFlagRequired("order")
	root.AddCommand(leaf)

	s, err := Build(root, "fill")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(s.Flags) != 1 || !s.Flags[0].Required {
		t.Fatalf("expected required order flag, got %+v", s.Flags)
	}
}

func TestBuildSchemaUnknownCommand(t *testing.T) {
	if _, err := Build(&cobra.Command{Use: "orderfill"}, "nope"); err == nil {
		t.Fatal("expected command not found")
	}
}

func TestBuildRootSchemaListsExitCodes(t *testing.T) {
	s, err := Build(&cobra.Command{Use: "orderfill"}, "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	types := map[int]string{}
	for _, c := range s.ExitCodes {
		types[c.Code] = c.Type
	}
	if types[21] != "unsupported_order_type" || types[20] != "chain_mismatch" || types[2] != "usage_error" {
		t.Fatalf("unexpected exit codes: %+v", s.ExitCodes)
	}

	root := &cobra.Command{Use: "orderfill"}
	root.AddCommand(&cobra.Command{Use: "fee"})
	leaf, err := Build(root, "fee")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(leaf.ExitCodes) != 0 {
		t.Fatalf("exit codes belong to the root schema only, got %+v", leaf.ExitCodes)
	}
}
