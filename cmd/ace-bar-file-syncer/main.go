// ace-bar-file-syncer watches a directory for BAR files and uploads them to
// an IBM App Connect instance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jareeve/ace-bar-file-syncer/internal/config"
	"github.com/jareeve/ace-bar-file-syncer/internal/metrics"
	"github.com/jareeve/ace-bar-file-syncer/internal/svc"
	"github.com/jareeve/ace-bar-file-syncer/internal/syncer"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile  string
	logLevel string

	// true when --log-level was given explicitly; the flag then wins over
	// the config file and environment.
	logLevelSet bool
)

func main() {
	if svc.IsServiceMode(os.Args) {
		runAsService()
		return
	}

	rootCmd := &cobra.Command{
		Use:   "ace-bar-file-syncer",
		Short: "Sync BAR files to IBM App Connect",
		Long: `ace-bar-file-syncer watches a directory for new or modified BAR files
and uploads each one to an IBM App Connect instance.

Configuration comes from environment variables (WATCH_DIRECTORY,
API_BASE_URL, CLIENT_ID, CLIENT_SECRET, API_KEY, INSTANCE_ID,
INTEGRATION_SERVER_ID, and optionally FILE_EXTENSION, DEBOUNCE_MS,
LOG_LEVEL, METRICS_ADDR), with an optional YAML file via --config that
the environment overrides.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevelSet = cmd.Flags().Changed("log-level")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigChan
				log.Info().Str("signal", sig.String()).Msg("shutting down")
				cancel()
			}()

			return runWatch(ctx, cfgFile)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ace-bar-file-syncer %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newServiceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging configures zerolog with console output on stderr.
func setupLogging(logLevel string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || logLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// runWatch loads and validates configuration, then runs the syncer until
// ctx is cancelled. Configuration problems are all reported before the
// non-zero exit.
func runWatch(ctx context.Context, cfgFile string) error {
	cfg, errs := config.Load(cfgFile, config.GetenvPresent)
	if len(errs) > 0 {
		for _, err := range errs {
			log.Error().Err(err).Msg("configuration error")
		}
		return fmt.Errorf("invalid configuration")
	}
	if err := config.CheckWatchDirectory(cfg.WatchDirectory); err != nil {
		log.Error().Err(err).Msg("configuration error")
		return err
	}

	// The loaded log_level takes effect unless --log-level was given
	// explicitly.
	if !logLevelSet {
		setupLogging(cfg.LogLevel)
	}

	log.Info().
		Str("version", Version).
		Str("dir", cfg.WatchDirectory).
		Str("api", cfg.APIBaseURL).
		Str("integration_server", cfg.IntegrationServerID).
		Msg("starting BAR file syncer")

	m := metrics.InitMetrics(cfg.InstanceID)
	s, err := syncer.New(cfg, m)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// runAsService runs under the platform service manager. Logging starts at
// the default level; runWatch applies the configured log_level once the
// configuration is loaded.
func runAsService() {
	setupLogging("")

	configPath := ""
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			configPath = os.Args[i+1]
		}
	}

	prg := &svc.Program{
		ConfigPath: configPath,
		RunWatch:   runWatch,
	}
	cfg := &svc.ServiceConfig{Name: svc.DefaultServiceName, ConfigPath: configPath}
	if err := svc.Run(prg, cfg); err != nil {
		log.Error().Err(err).Msg("service error")
		os.Exit(1)
	}
}
