package schema

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

type CommandSchema struct {
	Path        string          `json:"path"`
	Use         string          `json:"use"`
	Short       string          `json:"short"`
	Aliases     []string        `json:"aliases,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
	ExitCodes   []ExitCode      `json:"exit_codes,omitempty"`
}

// ExitCode pairs a process exit code with the error type printed in failure
// envelopes.
type ExitCode struct {
	Code int    `json:"code"`
	Type string `json:"type"`
}

type FlagSchema struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required,omitempty"`
	Inherited bool   `json:"inherited,omitempty"`
}

func Build(root *cobra.Command, commandPath string) (CommandSchema, error) {
	cmd := root
	if strings.TrimSpace(commandPath) != "" {
		parts := strings.Fields(strings.TrimSpace(commandPath))
		for _, p := range parts {
			found := false
			for _, c := range cmd.Commands() {
				if c.Name() == p || contains(c.Aliases, p) {
					cmd = c
					found = true
					break
				}
			}
			if !found {
				return CommandSchema{}, fmt.Errorf("command not found: %s", commandPath)
			}
		}
	}
	out := serialize(cmd)
	if cmd == root {
		out.ExitCodes = exitCodes()
	}
	return out, nil
}

func exitCodes() []ExitCode {
	codes := clierr.Codes()
	items := make([]ExitCode, 0, len(codes))
	for _, code := range codes {
		items = append(items, ExitCode{Code: int(code), Type: clierr.TypeName(code)})
	}
	return items
}

func serialize(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Path:    strings.TrimSpace(cmd.CommandPath()),
		Use:     cmd.Use,
		Short:   cmd.Short,
		Aliases: cmd.Aliases,
		Flags:   collectFlags(cmd),
	}

	subs := cmd.Commands()
	for _, sub := range subs {
		if sub.Hidden {
			continue
		}
		s.Subcommands = append(s.Subcommands, serialize(sub))
	}

	return s
}

// collectFlags lists local flags first, then persistent flags inherited from
// parents, so agents see the full surface of a leaf command.
func collectFlags(cmd *cobra.Command) []FlagSchema {
	items := []FlagSchema{}
	visit := func(inherited bool) func(*pflag.Flag) {
		return func(f *pflag.Flag) {
			if f.Hidden {
				return
			}
			_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
			items = append(items, FlagSchema{
				Name:      f.Name,
				Shorthand: f.Shorthand,
				Type:      f.Value.Type(),
				Usage:     f.Usage,
				Default:   f.DefValue,
				Required:  required,
				Inherited: inherited,
			})
		}
	}
	cmd.NonInheritedFlags().VisitAll(visit(false))
	cmd.InheritedFlags().VisitAll(visit(true))
	return items
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
