package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	otelexporter "github.com/emiliopalmerini/splitlab/internal/adapters/otel"
	"github.com/emiliopalmerini/splitlab/internal/adapters/turso"
	"github.com/emiliopalmerini/splitlab/internal/engine"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
	"github.com/emiliopalmerini/splitlab/internal/ports"
	"github.com/emiliopalmerini/splitlab/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the experimentation engine",
	Long: `Start the splitlab API server and the optimization scheduler.

Examples:
  splitlab serve              # Start on default port 8080
  splitlab serve --port 3000  # Start on port 3000`,
	RunE: runServe,
}

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides SPLITLAB_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	// Metrics: OTEL when configured, otherwise no-op.
	var metrics ports.MetricsExporter
	otelCfg := otelexporter.LoadConfig()
	if exporter, err := otelexporter.NewExporter(ctx, otelCfg); err == nil {
		metrics = exporter
		log.Printf("OTEL metrics enabled, endpoint %s", otelCfg.Endpoint)
	} else {
		metrics = otelexporter.NewNoOpExporter()
	}
	defer metrics.Close(context.Background())

	// Durability: a libsql definition store when configured. Without it
	// the engine runs purely in memory.
	var definitions ports.DefinitionStore
	var flagStore *turso.FlagStore
	if cfg.Database.URL != "" {
		db, err := turso.NewDB(cfg.Database.URL, cfg.Database.AuthToken)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := turso.EnsureSchema(ctx, db); err != nil {
			return err
		}
		definitions = turso.NewDefinitionStore(db)
		flagStore = turso.NewFlagStore(db)
		log.Printf("definition store enabled at %s", cfg.Database.URL)
	}

	eng := engine.New(engine.Options{
		MinSampleSize: cfg.MinSampleSize,
		Subjects:      engine.NewSubjectCache(cfg.SubjectCacheSize, cfg.SubjectTTL),
		Definitions:   definitions,
		Metrics:       metrics,
	})
	if err := eng.Load(ctx); err != nil {
		return fmt.Errorf("failed to load experiment definitions: %w", err)
	}

	// Flags fan out to the log, the in-memory ring for the API, and the
	// database when one is configured.
	ring := engine.NewFlagRing(cfg.FlagRingSize)
	sinks := []ports.FlagSink{ring, logFlagSink()}
	if flagStore != nil {
		sinks = append(sinks, flagStore)
	}

	scheduler := engine.NewScheduler(eng.Registry(), eng.Analyzer(), metrics, cfg.SchedulerInterval, sinks...)
	go scheduler.Run(ctx)

	var history ports.FlagStore
	if flagStore != nil {
		history = flagStore
	}
	server := web.NewServer(eng, ring, history, cfg.Port)
	return server.Start(ctx)
}
