package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/archive"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/dispatch"
	"github.com/zen-systems/switchyard/pkg/feedback"
	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/store"
	"github.com/zen-systems/switchyard/pkg/task"
	"github.com/zen-systems/switchyard/pkg/telemetry"
)

const version = "0.1.0"

var (
	routingFile  string
	logLevelFlag string
	ephemeral    bool

	logger = zerolog.Nop()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "switchyard",
		Short: "Local-first model routing with privacy guarantees",
		Long: `Switchyard decides which language model should handle a task, preferring
	local models, escalating to cloud models only when it helps, and never
	sending privacy sensitive work off the machine.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&routingFile, "routing", "", "path to routing tables file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep performance records in memory only")

	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(insightsCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(tablesCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(w io.Writer) error {
	level := logLevelFlag
	if level == "" {
		level = os.Getenv("SWITCHYARD_LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(parsed).
		With().Timestamp().Logger()
	return nil
}

func routeCmd() *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "route [task]",
		Short: "Show the routing decision for a classified task",
		Long: `Runs the routing pipeline and prints the decision together with the
	privacy analysis, capability assessment, override evaluation and
	validation result. Nothing is invoked or recorded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			req, err := flags.build(firstArg(args), cfg.Profile, time.Now())
			if err != nil {
				return err
			}

			r := newRouter(cfg, nil)
			eval, err := r.Evaluate(req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), eval)
		},
	}

	flags.register(cmd)
	return cmd
}

func askCmd() *cobra.Command {
	flags := &requestFlags{}
	var rating int
	var sessionID string
	var maxTokens int64

	cmd := &cobra.Command{
		Use:   "ask [task]",
		Short: "Route a task, invoke the chosen model and record the outcome",
		Long: `Routes the task, then invokes the primary model and, on failure, each
	fallback in order. Every attempt is recorded so later decisions can be
	calibrated. Privacy protected decisions never reach a cloud model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			shutdown, err := telemetry.Init(ctx, telemetry.Config{
				Endpoint:    cfg.OTLPEndpoint,
				ServiceName: "switchyard",
				Version:     version,
				Insecure:    true,
			}, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("tracing unavailable")
			} else {
				defer func() {
					if err := shutdown(context.Background()); err != nil {
						logger.Debug().Err(err).Msg("telemetry shutdown")
					}
				}()
			}

			recordStore, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			recOpts := []feedback.RecorderOption{feedback.WithLogger(logger)}
			if arch, err := archive.NewStore(cfg.ArchivePath); err != nil {
				logger.Warn().Err(err).Msg("decision archive unavailable")
			} else {
				recOpts = append(recOpts, feedback.WithArchive(arch))
			}
			recorder := feedback.NewRecorder(recordStore, recOpts...)

			calibrator := feedback.NewCalibrator(recorder, cfg.Catalog, feedback.WithCalibratorLogger(logger))
			defer startCalibrator(ctx, calibrator, cfg.CalibrationSchedule)()

			req, err := flags.build(args[0], cfg.Profile, time.Now())
			if err != nil {
				return err
			}
			decision, err := newRouter(cfg, calibrator).Route(req)
			if err != nil {
				return err
			}
			logger.Info().
				Str("model", decision.Model).
				Str("strategy", string(decision.Strategy)).
				Float64("confidence", decision.Confidence).
				Msg(decision.Reason)

			adapters, errs := adapter.FromConfig(cfg)
			for _, err := range errs {
				logger.Debug().Err(err).Msg("adapter unavailable")
			}

			exec := dispatch.NewExecutor(adapters,
				dispatch.WithRecorder(recorder),
				dispatch.WithRegistry(cfg.Catalog),
				dispatch.WithRetry(cfg.Retry),
				dispatch.WithPricing(cfg.Pricing),
				dispatch.WithLogger(logger),
			)

			opts := dispatch.ExecuteOptions{
				TaskType:  req.Classification.Type,
				SessionID: sessionID,
				Generate:  adapter.Options{MaxTokens: maxTokens},
			}
			if opts.SessionID == "" {
				opts.SessionID = uuid.NewString()
			}
			if cmd.Flags().Changed("rating") {
				opts.UserRating = &rating
			}

			result, err := exec.Execute(ctx, decision, args[0], opts)
			for _, skip := range result.Skipped {
				logger.Debug().Str("model", skip.Model).Msg(skip.Reason)
			}
			if err != nil {
				return err
			}

			if result.Cost.IsEstimate {
				logger.Info().Str("model", result.Model).Float64("cost_usd", result.Cost.Amount).Int("tokens", result.Usage.TotalTokens).Msg("call complete")
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Response.Content)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&rating, "rating", 0, "rate the answer 1-5 (recorded with the outcome)")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to group outcomes")
	cmd.Flags().Int64Var(&maxTokens, "max-tokens", 0, "max completion tokens")

	return cmd
}

func insightsCmd() *cobra.Command {
	var typeFlag string
	var window int

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show performance insights for a task type",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			tt, err := task.ParseTaskType(typeFlag)
			if err != nil {
				return err
			}

			recordStore, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			recorder := feedback.NewRecorder(recordStore, feedback.WithLogger(logger))
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return printJSON(cmd.OutOrStdout(), recorder.Insights(ctx, tt, window))
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", "general", "task type")
	cmd.Flags().IntVar(&window, "window", feedback.DefaultWindowHours, "window in hours")
	return cmd
}

func modelsCmd() *cobra.Command {
	var aliasesFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known models and their availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if aliasesFlag {
				return showAliases(cmd.OutOrStdout(), cfg.Catalog)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tPLACEMENT\tSTATUS")
			for _, provider := range cfg.Catalog.ListProviders() {
				status := "no key"
				if cfg.HasAdapter(provider) {
					status = "ready"
				}
				for _, model := range cfg.Catalog.GetProviderModels(provider) {
					placement := "cloud"
					if cfg.Catalog.IsLocal(model) {
						placement = "local"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", model, placement, status)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&aliasesFlag, "aliases", false, "show aliases and what they resolve to")
	return cmd
}

func showAliases(out io.Writer, catalog *config.ModelCatalog) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL\tPROVIDER")

	aliasMap := catalog.ListAliases()
	var names []string
	for name := range aliasMap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, alias := range names {
		model := aliasMap[alias]
		fmt.Fprintf(w, "%s\t%s\t%s\n", alias, model, catalog.GetProviderForModel(model))
	}
	return w.Flush()
}

func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Print the effective routing tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.Routing); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the routing tables against the model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			errs := cfg.Catalog.ValidateRoutingTables(cfg.Routing)
			if len(errs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Routing tables are consistent with the model catalog.")
				return nil
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Found %d validation errors:\n", len(errs))
			for _, err := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", err)
			}
			return fmt.Errorf("validation failed")
		},
	}
}

func loadConfig() (*config.Config, error) {
	if routingFile != "" {
		return config.LoadWithRoutingFile(routingFile)
	}
	return config.Load()
}

func newRouter(cfg *config.Config, hints router.HintSource) *router.Router {
	opts := []router.Option{
		router.WithLogger(logger),
		router.WithRegistry(cfg.Catalog),
	}
	if hints != nil {
		opts = append(opts, router.WithHints(hints))
	}
	return router.New(cfg.Routing, opts...)
}

func openStore(cfg *config.Config) (feedback.Store, func(), error) {
	if ephemeral {
		return store.NewMemory(), func() {}, nil
	}
	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, func() {
		if err := db.Close(); err != nil {
			logger.Debug().Err(err).Msg("close database")
		}
	}, nil
}

// startCalibrator keeps hints fresh for the life of the command and returns
// the matching stop. A rejected schedule still refreshes once.
func startCalibrator(ctx context.Context, c *feedback.Calibrator, schedule string) func() {
	if err := c.Start(ctx, schedule); err != nil {
		logger.Warn().Err(err).Msg("calibration schedule rejected")
		c.Refresh(ctx)
		return func() {}
	}
	return c.Stop
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
