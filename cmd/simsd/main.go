package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BATSNet/sims-sub000/internal/api"
	"github.com/BATSNet/sims-sub000/internal/config"
	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/BATSNet/sims-sub000/internal/delivery/plugins"
	"github.com/BATSNet/sims-sub000/internal/logging"
	"github.com/BATSNet/sims-sub000/internal/store"
	"github.com/BATSNet/sims-sub000/internal/uplink"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	probe      bool
)

var rootCmd = &cobra.Command{
	Use:     "simsd",
	Short:   "SIMS delivery engine - multi-channel incident dispatch",
	Long:    `simsd receives incident reports (binary device uplinks or normalized JSON) and fans them out to the configured delivery integrations: webhooks, email, SEDAP battlefield management systems, and mesh radio gateways.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("simsd %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		registry := delivery.NewRegistry()
		plugins.Register(registry)
		for _, tmpl := range cfg.Templates {
			if !registry.IsRegistered(tmpl.Type) {
				return fmt.Errorf("template %s references unknown plugin type %q", tmpl.ID, tmpl.Type)
			}
		}
		for _, integ := range cfg.Integrations {
			found := false
			for _, tmpl := range cfg.Templates {
				if tmpl.ID != integ.TemplateID {
					continue
				}
				config, err := tmpl.ValidateConfig(integ.Config)
				if err != nil {
					return fmt.Errorf("integration %s: %w", integ.ID, err)
				}
				found = true
				if probe {
					plugin := registry.Get(tmpl.Type, config, integ.Credentials)
					if plugin == nil {
						return fmt.Errorf("integration %s: failed to build %q plugin", integ.ID, tmpl.Type)
					}
					ok, msg := plugin.TestConnection(cmd.Context())
					status := "ok"
					if !ok {
						status = "FAIL"
					}
					fmt.Printf("  %-24s %-8s %s\n", integ.ID, status, msg)
				}
				break
			}
			if !found {
				return fmt.Errorf("integration %s references unknown template %q", integ.ID, integ.TemplateID)
			}
		}
		fmt.Printf("%s: configuration valid (%d organizations, %d templates, %d integrations)\n",
			configPath, len(cfg.Organizations), len(cfg.Templates), len(cfg.Integrations))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/sims/config.yaml", "path to the configuration file")
	validateCmd.Flags().BoolVar(&probe, "probe", false, "also probe each integration endpoint (TestConnection)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	// Optional .env for local development; ignore when absent.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	// Baseline logger for early startup messages.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "simsd",
	})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Re-initialize logging with configuration-driven settings.
	logging.Init(logging.Config{
		Format:    cfg.Log.Format,
		Level:     cfg.Log.Level,
		Component: "simsd",
	})

	log.Info().Str("version", Version).Msg("Starting SIMS delivery engine")

	st, err := store.Open(filepath.Join(cfg.DataDir, "delivery.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open delivery store")
	}
	defer st.Close()

	registry := delivery.NewRegistry()
	plugins.Register(registry)
	log.Info().Strs("plugins", registry.Types()).Msg("Delivery plugins registered")

	source := config.NewSource(cfg, st)
	config.Watch(func(next *config.Config) {
		source.Reload(next)
	})

	orchestrator := delivery.NewOrchestrator(registry, source, st,
		delivery.WithMaxConcurrent(cfg.Delivery.MaxConcurrent))

	var transcriber uplink.Transcriber
	if wt, err := uplink.NewWhisperTranscriber(); err != nil {
		log.Warn().Err(err).Msg("Audio transcription disabled")
	} else if wt != nil {
		transcriber = wt
		log.Info().Msg("Audio transcription enabled")
	}

	router := api.NewRouter(source, orchestrator, registry, st, transcriber, Version)

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
