package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/orderfill/internal/cache"
	"github.com/ggonzalez94/orderfill/internal/config"
	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/fill"
	"github.com/ggonzalez94/orderfill/internal/model"
	"github.com/ggonzalez94/orderfill/internal/out"
	"github.com/ggonzalez94/orderfill/internal/registry"
	"github.com/ggonzalez94/orderfill/internal/schema"
	"github.com/ggonzalez94/orderfill/internal/version"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		stdin:  os.Stdin,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	network     registry.Network
	logger      *slog.Logger
	cache       *cache.Store
	attempts    *fill.Store
	wallet      *wallet.RPC
	root        *cobra.Command
	lastCommand string
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if err != nil {
		state.renderError("", err)
	}
	state.close()
	return clierr.ExitCode(err)
}

func (s *runtimeState) close() {
	if s.wallet != nil {
		s.wallet.Close()
	}
	if s.attempts != nil {
		_ = s.attempts.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Fill NFT marketplace orders from the command line",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.lastCommand = trimRootPath(cmd.CommandPath())

			s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			if settings.Verbose {
				s.logger = slog.New(slog.NewTextHandler(s.runner.stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
			}

			network, err := registry.ParseNetwork(settings.Network)
			if err != nil {
				return err
			}
			s.network = network

			if settings.CacheEnabled && shouldOpenCache(s.lastCommand) && s.cache == nil {
				cacheStore, err := cache.Open(settings.CachePath, settings.CacheLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open cache", err)
				}
				s.cache = cacheStore
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Command timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per HTTP request")
	cmd.PersistentFlags().StringVar(&s.flags.MaxStale, "max-stale", "", "Maximum stale fallback window after TTL expiry")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable cache reads and writes")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.EnvFile, "env-file", "", "Path to a dotenv file")
	cmd.PersistentFlags().BoolVarP(&s.flags.Verbose, "verbose", "v", false, "Log pipeline progress to stderr")
	cmd.PersistentFlags().StringVar(&s.flags.Network, "network", "", "Network name or chain id")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "JSON-RPC endpoint override")
	cmd.PersistentFlags().StringVar(&s.flags.APIURL, "api-url", "", "Marketplace API base URL override")
	cmd.PersistentFlags().StringVar(&s.flags.FeeURL, "fee-url", "", "Fee config URL override")

	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newFillCommand(fill.IntentFill))
	cmd.AddCommand(s.newFillCommand(fill.IntentBuy))
	cmd.AddCommand(s.newFillCommand(fill.IntentAcceptBid))
	cmd.AddCommand(s.newTxDataCommand())
	cmd.AddCommand(s.newInvertCommand())
	cmd.AddCommand(s.newFeeCommand())
	cmd.AddCommand(s.newAttemptsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
	return cmd
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta:     s.meta(commandPath),
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := clierr.TypeName(clierr.CodeInternal)
	message := err.Error()
	var details map[string]any
	if cErr, ok := clierr.As(err); ok {
		typ = clierr.TypeName(cErr.Code)
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		details = cErr.Details
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
			Details: details,
		},
		Meta: s.meta(commandPath),
	}
	_ = out.RenderError(s.runner.stderr, env, settings)
}

func (s *runtimeState) meta(commandPath string) model.EnvelopeMeta {
	return model.EnvelopeMeta{
		RequestID: newRequestID(),
		Timestamp: s.runner.now().UTC(),
		Command:   commandPath,
		Network:   s.network.Name,
		ChainID:   s.network.ChainID,
	}
}

func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

// shouldOpenCache limits the sqlite cache to commands that fetch fee configs
// or lazy items.
func shouldOpenCache(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "", "version", "schema", "attempts list", "attempts status":
		return false
	default:
		return true
	}
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(commandPath)), " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
