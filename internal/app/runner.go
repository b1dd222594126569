package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/aptos-agent-cli/internal/cache"
	"github.com/ggonzalez94/aptos-agent-cli/internal/catalog"
	"github.com/ggonzalez94/aptos-agent-cli/internal/config"
	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	"github.com/ggonzalez94/aptos-agent-cli/internal/dex/cellana"
	"github.com/ggonzalez94/aptos-agent-cli/internal/dex/liquidswap"
	"github.com/ggonzalez94/aptos-agent-cli/internal/dex/panora"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/httpx"
	"github.com/ggonzalez94/aptos-agent-cli/internal/ledger"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
	"github.com/ggonzalez94/aptos-agent-cli/internal/out"
	"github.com/ggonzalez94/aptos-agent-cli/internal/policy"
	"github.com/ggonzalez94/aptos-agent-cli/internal/registry"
	"github.com/ggonzalez94/aptos-agent-cli/internal/schema"
	"github.com/ggonzalez94/aptos-agent-cli/internal/version"
	"github.com/ggonzalez94/aptos-agent-cli/internal/wallet"
	"github.com/ggonzalez94/aptos-agent-cli/internal/workflow"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner       *Runner
	flags        config.GlobalFlags
	settings     config.Settings
	log          zerolog.Logger
	cache        *cache.Store
	workflows    *workflow.Store
	root         *cobra.Command
	lastCommand  string
	lastWarnings []string
	lastAdapters []model.AdapterStatus
	lastPartial  bool

	ledger       *ledger.Client
	gas          *ledger.Estimator
	wallets      *wallet.Client
	catalog      *catalog.Service
	agg          *dex.Aggregator
	adapterInfos []model.AdapterInfo
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	state.resetCommandDiagnostics()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	state.closeStores()
	if err == nil {
		return 0
	}

	state.renderError("", err, state.lastWarnings, state.lastAdapters, state.lastPartial)
	return clierr.ExitCode(err)
}

func (s *runtimeState) closeStores() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.workflows != nil {
		_ = s.workflows.Close()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Agent-first value movement CLI for Move fullnodes",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = newLogger(s.runner.stderr, settings.LogLevel)

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if settings.CacheEnabled && shouldOpenCache(path) && s.cache == nil {
				cacheStore, err := cache.Open(settings.CachePath, settings.CacheLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open cache", err)
				}
				s.cache = cacheStore
			}

			if s.ledger == nil {
				httpClient := httpx.New(settings.Timeout, settings.Retries)
				s.ledger = ledger.New(httpClient, settings.NodeURL, s.log)
				s.gas = ledger.NewEstimator(s.ledger, s.log)
				s.wallets = wallet.NewClient(httpClient, settings.WalletServiceURL)
				s.catalog = catalog.New(httpClient, settings.CatalogURL, s.cache, s.log)

				reserves := dex.NewReserveCache(dex.ReserveTTL)
				s.agg = dex.NewAggregator(s.log,
					cellana.New(s.ledger, registry.CellanaRouter, s.log),
					liquidswap.New(s.ledger, s.catalog, reserves, registry.LiquidswapRouter, s.log),
					panora.New(httpClient, settings.PanoraBaseURL, settings.PanoraAPIKey, s.log),
				)
				s.adapterInfos = s.agg.Infos()
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
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Upstream request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per upstream request")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable cache reads and writes")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newAdaptersCommand())
	cmd.AddCommand(s.newAssetsCommand())
	cmd.AddCommand(s.newAccountCommand())
	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newTransferCommand())
	cmd.AddCommand(s.newWorkflowsCommand())
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
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, cacheMetaBypass(), nil, false)
		},
	}
	return cmd
}

func (s *runtimeState) newAdaptersCommand() *cobra.Command {
	root := &cobra.Command{Use: "adapters", Short: "Swap venue adapter commands"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List configured swap adapters and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			venues, err := s.catalog.DEXes(ctx)
			if err != nil {
				return err
			}
			byName := make(map[string]registry.DEX, len(venues))
			for _, v := range venues {
				byName[strings.ToLower(v.Name)] = v
			}
			infos := make([]model.AdapterInfo, len(s.adapterInfos))
			copy(infos, s.adapterInfos)
			for i := range infos {
				if v, ok := byName[infos[i].Name]; ok {
					infos[i].Router = v.Router
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), infos, nil, cacheMetaBypass(), nil, false)
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newAssetsCommand() *cobra.Command {
	root := &cobra.Command{Use: "assets", Short: "Asset catalog commands"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List known assets with both addressing conventions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			tokens, err := s.catalog.Tokens(ctx)
			if err != nil {
				return err
			}
			views := make([]model.AssetView, 0, len(tokens))
			for _, token := range tokens {
				views = append(views, assetView(token))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), views, nil, cacheMetaBypass(), nil, false)
		},
	}

	var input string
	resolve := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a symbol, coin type, or metadata address to a catalog asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			asset, err := s.catalog.ResolveAsset(ctx, input)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), assetView(asset), nil, cacheMetaBypass(), nil, false)
		},
	}
	resolve.Flags().StringVar(&input, "asset", "", "Asset symbol, coin type, or metadata address")
	_ = resolve.MarkFlagRequired("asset")

	root.AddCommand(list)
	root.AddCommand(resolve)
	return root
}

// openWorkflows lazily opens the workflow store for commands that persist
// or read workflow state.
func (s *runtimeState) openWorkflows() (*workflow.Store, error) {
	if s.workflows != nil {
		return s.workflows, nil
	}
	store, err := workflow.OpenStore(s.settings.WorkflowStorePath, s.settings.WorkflowLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open workflow store", err)
	}
	s.workflows = store
	return store, nil
}

func (s *runtimeState) newSwapEngine(store *workflow.Store) *workflow.SwapEngine {
	return workflow.NewSwapEngine(store, s.agg, s.ledger, s.gas, s.wallets, s.settings.ExplorerBaseURL, s.log)
}

func (s *runtimeState) newTransferEngine(store *workflow.Store) *workflow.TransferEngine {
	return workflow.NewTransferEngine(store, s.ledger, s.gas, s.wallets, s.settings.ExplorerBaseURL, s.log)
}

type fetchFn func(ctx context.Context) (data any, adapters []model.AdapterStatus, warnings []string, partial bool, err error)

// commandContext bounds one command invocation. Receipt polling alone can
// take thirty seconds, so the budget is wider than the per-request timeout.
func (s *runtimeState) commandContext() (context.Context, context.CancelFunc) {
	budget := 2 * time.Minute
	if s.settings.Timeout > budget {
		budget = s.settings.Timeout
	}
	return context.WithTimeout(context.Background(), budget)
}

func (s *runtimeState) runCachedCommand(commandPath, key string, ttl time.Duration, fetch fetchFn) error {
	s.resetCommandDiagnostics()

	if s.settings.CacheEnabled && s.cache != nil {
		var data any
		hit, err := s.cache.GetJSON(key, &data)
		if err == nil && hit {
			res, _ := s.cache.Get(key)
			status := model.CacheStatus{Status: "hit", AgeMS: res.Age.Milliseconds()}
			return s.emitSuccess(commandPath, data, nil, status, nil, false)
		}
	}

	ctx, cancel := s.commandContext()
	defer cancel()
	data, adapters, warnings, partial, err := fetch(ctx)
	s.captureCommandDiagnostics(warnings, adapters, partial)
	if err != nil {
		return err
	}

	cacheStatus := cacheMetaMiss()
	if s.settings.CacheEnabled && s.cache != nil {
		if payload, err := json.Marshal(data); err == nil {
			_ = s.cache.Set(key, payload, ttl)
			cacheStatus = model.CacheStatus{Status: "write"}
		}
	}
	return s.emitSuccess(commandPath, data, warnings, cacheStatus, adapters, partial)
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, cacheStatus model.CacheStatus, adapters []model.AdapterStatus, partial bool) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Adapters:  adapters,
			Cache:     cacheStatus,
			Partial:   partial,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string, adapters []model.AdapterStatus, partial bool) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}

	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
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
			Code:    clierr.ExitCode(err),
			Type:    clierr.Type(err),
			Message: message,
		},
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Adapters:  adapters,
			Cache:     cacheMetaBypass(),
			Partial:   partial,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.TrimSpace(level))
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func cacheKey(commandPath string, req any) string {
	buf, _ := json.Marshal(req)
	sum := sha256.Sum256(append([]byte(commandPath+"|"), buf...))
	return hex.EncodeToString(sum[:])
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func cacheMetaBypass() model.CacheStatus {
	return model.CacheStatus{Status: "bypass", AgeMS: 0, Stale: false}
}

func cacheMetaMiss() model.CacheStatus {
	return model.CacheStatus{Status: "miss", AgeMS: 0, Stale: false}
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

func shouldOpenCache(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "", "version", "schema", "adapters", "adapters list":
		return false
	default:
		return true
	}
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func (s *runtimeState) resetCommandDiagnostics() {
	s.lastWarnings = nil
	s.lastAdapters = nil
	s.lastPartial = false
}

func (s *runtimeState) captureCommandDiagnostics(warnings []string, adapters []model.AdapterStatus, partial bool) {
	if len(warnings) == 0 {
		s.lastWarnings = nil
	} else {
		s.lastWarnings = append([]string(nil), warnings...)
	}
	if len(adapters) == 0 {
		s.lastAdapters = nil
	} else {
		s.lastAdapters = append([]model.AdapterStatus(nil), adapters...)
	}
	s.lastPartial = partial
}
