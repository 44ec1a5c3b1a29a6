package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/moodtrack/internal/coach"
	"github.com/TobiSchelling/moodtrack/internal/config"
	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/logging"
	"github.com/TobiSchelling/moodtrack/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	userFlag   string
	cfg        *config.Config
	logger     = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "moodtrack",
	Short:   "Mood check-ins with adaptive coaching advice",
	Long:    "moodtrack records daily mood check-ins, drafts coaching advice with an LLM, and adapts its prompts to your ratings.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if userFlag != "" {
			cfg.User.ID = userFlag
		}

		logger, err = logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "Act as this user id instead of user.id from config")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(adviceCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(traitsCmd)
	rootCmd.AddCommand(enhancementCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("moodtrack", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/moodtrack/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the LLM provider, rating thresholds, and time zone.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}

		stats, err := db.GetStats(cmd.Context(), cfg.User.ID)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("User: %s\n", cfg.User.ID)
		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("Advice provider: %s\n\n", co.ProviderName())
		fmt.Println("Check-ins:")
		fmt.Printf("  Total: %d\n", stats.TotalCheckins)
		fmt.Printf("  Days with data: %d\n", stats.DaysWithData)
		fmt.Println("\nAdvice:")
		fmt.Printf("  Total: %d\n", stats.TotalAdvice)
		fmt.Printf("  Rated: %d\n", stats.RatedAdvice)
		fmt.Printf("  Enhanced: %d\n", stats.EnhancedAdvice)
		fmt.Printf("  Offline fallback: %d\n", stats.FallbackAdvice)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		co, err := newCoach(db)
		if err != nil {
			return err
		}

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting server at http://localhost:%d\n", cfg.Server.Port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, co, cfg, logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "moodtrack.db")
	return database.Open(dbPath, database.WithLogger(logger))
}

func newCoach(db *database.DB) (*coach.Coach, error) {
	return coach.New(cfg, db, coach.WithLogger(logger))
}
