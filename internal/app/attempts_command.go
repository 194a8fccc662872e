package app

import (
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/fill"
)

func (s *runtimeState) newAttemptsCommand() *cobra.Command {
	root := &cobra.Command{Use: "attempts", Short: "Inspect recorded fill attempts"}

	var listStatus string
	var listLimit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent fill attempts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := strings.ToLower(strings.TrimSpace(listStatus))
			switch fill.AttemptStatus(status) {
			case "", fill.AttemptRunning, fill.AttemptCompleted, fill.AttemptFailed:
			default:
				return clierr.New(clierr.CodeUsage, "--status must be running, completed, or failed")
			}
			store, err := s.ensureAttemptStore()
			if err != nil {
				return err
			}
			items, err := store.List(status, listLimit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list attempts", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, nil)
		},
	}
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (running|completed|failed)")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum attempts to return")

	var statusAttemptID string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Get a fill attempt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			attemptID := strings.TrimSpace(statusAttemptID)
			if attemptID == "" {
				return clierr.New(clierr.CodeUsage, "--attempt-id is required")
			}
			store, err := s.ensureAttemptStore()
			if err != nil {
				return err
			}
			attempt, err := store.Get(attemptID)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), attempt, nil)
		},
	}
	statusCmd.Flags().StringVar(&statusAttemptID, "attempt-id", "", "Attempt identifier")

	root.AddCommand(listCmd)
	root.AddCommand(statusCmd)
	return root
}
