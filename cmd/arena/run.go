package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/callwise/arena/config"
	"github.com/callwise/arena/engine"
	"github.com/callwise/arena/logger"
	"github.com/callwise/arena/metrics"
	"github.com/callwise/arena/results"
	"github.com/callwise/arena/results/jsonrepo"
	"github.com/callwise/arena/results/junit"
	"github.com/callwise/arena/statestore"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run goal tests against the target agent",
	Long: `Run every scenario in the arena manifest as a multi-turn conversation
against the configured target agent and report per-test verdicts.

The command exits non-zero when any test fails or errors, so it can gate CI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTests(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "arena.yaml", "Arena manifest path")
	runCmd.Flags().StringSlice("scenario", []string{}, "Scenarios to run (default all)")
	runCmd.Flags().IntP("concurrency", "j", 0, "Concurrent test cases (overrides manifest)")
	runCmd.Flags().StringP("out", "o", "", "Output directory (overrides manifest)")
	runCmd.Flags().String("junit", "", "Write a JUnit XML report to this path")
	runCmd.Flags().Bool("junit-transcript", false, "Embed transcripts in the JUnit report")
	runCmd.Flags().Bool("mock", false, "Replace the target with each scenario's scripted replies")
	runCmd.Flags().BoolP("verbose", "v", false, "Enable verbose debug logging")

	viper.SetEnvPrefix("ARENA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	_ = viper.BindPFlag("concurrency", runCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("out", runCmd.Flags().Lookup("out"))
	_ = viper.BindPFlag("junit", runCmd.Flags().Lookup("junit"))
	_ = viper.BindPFlag("mock", runCmd.Flags().Lookup("mock"))
}

func runTests(cmd *cobra.Command) error {
	cfg, err := loadManifest(cmd)
	if err != nil {
		return err
	}

	if scenarios, _ := cmd.Flags().GetStringSlice("scenario"); len(scenarios) > 0 {
		if err := filterScenarios(cfg, scenarios); err != nil {
			return err
		}
	}
	if c := viper.GetInt("concurrency"); c > 0 {
		cfg.Defaults.Concurrency = c
	}
	if out := viper.GetString("out"); out != "" {
		cfg.OutputDir = out
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	repos := []results.Repository{jsonrepo.New(cfg.OutputDir)}
	if junitPath := viper.GetString("junit"); junitPath != "" {
		var junitOpts []junit.Option
		if cfg.Name != "" {
			junitOpts = append(junitOpts, junit.WithSuiteName(cfg.Name))
		}
		if withTranscript, _ := cmd.Flags().GetBool("junit-transcript"); withTranscript {
			junitOpts = append(junitOpts, junit.WithTranscript())
		}
		repos = append(repos, junit.New(junitPath, junitOpts...))
	}

	opts := []engine.Option{
		engine.WithStore(store),
		engine.WithRepositories(repos...),
	}
	if viper.GetBool("mock") {
		opts = append(opts, engine.WithMockMode())
	}

	eng, err := engine.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics := startMetrics(cfg)
	defer shutdownMetrics()

	summary, _, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(cmd, summary)

	if failed := summary.Failed + summary.Errors; failed > 0 {
		return fmt.Errorf("%d of %d tests did not pass", failed, summary.TotalTests)
	}
	return nil
}

func loadManifest(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	// A directory means "the arena.yaml inside it".
	if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
		path = filepath.Join(path, "arena.yaml")
	}
	return config.Load(path)
}

func filterScenarios(cfg *config.Config, names []string) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var kept []config.Scenario
	for _, sc := range cfg.Scenarios {
		if want[sc.Name] {
			kept = append(kept, sc)
			delete(want, sc.Name)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for n := range want {
			unknown = append(unknown, n)
		}
		return fmt.Errorf("unknown scenario(s): %s", strings.Join(unknown, ", "))
	}
	cfg.Scenarios = kept
	return nil
}

func buildStore(cfg *config.Config) (statestore.Store, error) {
	switch cfg.StateStore.Type {
	case "", "memory":
		return statestore.NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.StateStore.RedisAddr})
		var opts []statestore.RedisOption
		if ttl := cfg.StateStore.RedisTTL.Std(); ttl > 0 {
			opts = append(opts, statestore.WithTTL(ttl))
		}
		return statestore.NewRedisStore(client, opts...), nil
	default:
		return nil, fmt.Errorf("unknown state store type %q", cfg.StateStore.Type)
	}
}

// startMetrics launches the Prometheus exporter when enabled and returns the
// shutdown hook; without metrics the hook is a no-op.
func startMetrics(cfg *config.Config) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}
	exporter := metrics.NewExporter(cfg.Metrics.Addr)
	go func() {
		if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics exporter stopped", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = exporter.Shutdown(ctx)
	}
}

func printSummary(cmd *cobra.Command, s *results.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun %s: %d tests, %d passed, %d failed, %d errors",
		s.RunID, s.TotalTests, s.Passed, s.Failed, s.Errors)
	if s.Cancelled > 0 {
		fmt.Fprintf(out, ", %d cancelled", s.Cancelled)
	}
	fmt.Fprintf(out, " (%d turns in %s)\n", s.TotalTurns, s.TotalDuration.Round(time.Millisecond))
}
