package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/lepinkainen/ook/internal/cache"
	"github.com/lepinkainen/ook/internal/config"
	"github.com/spf13/viper"
)

var stdout io.Writer = os.Stdout

// logOutput keeps log lines off stdout so --json output stays parseable.
var logOutput io.Writer = os.Stderr

// CLI represents the complete command structure for the ook application
type CLI struct {
	// Global flags
	DB       string `help:"Path to the library database (overrides db.path)" placeholder:"PATH"`
	LogLevel string `help:"Log level: debug, info, warn, error (overrides log.level)"`
	JSON     bool   `help:"Print results as JSON"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file (overrides cache.dbfile)"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)"`

	Import   ImportCmd   `cmd:"" help:"Import books from a JSON, YAML or Goodreads CSV export"`
	Enrich   EnrichCmd   `cmd:"" help:"Fetch descriptions and subjects from OpenLibrary for unenriched books"`
	Embed    EmbedCmd    `cmd:"" help:"Generate embeddings for enriched books"`
	Sync     SyncCmd     `cmd:"" help:"Run import, enrich and embed in one pass"`
	Search   SearchCmd   `cmd:"" help:"Keyword search (supports title:, author:, description:, subject: filters)"`
	Semantic SemanticCmd `cmd:"" help:"Semantic search by meaning"`
	Stats    StatsCmd    `cmd:"" help:"Show library statistics"`
	Show     ShowCmd     `cmd:"" help:"Show one book with its metadata"`
	List     ListCmd     `cmd:"" help:"List books"`
	Subjects SubjectsCmd `cmd:"" help:"List distinct subjects"`
	Reset    ResetCmd    `cmd:"" help:"Clear metadata, embeddings and the search index to force re-enrichment"`
	Export   ExportCmd   `cmd:"" help:"Export the catalog as markdown notes or JSON"`
	Serve    ServeCmd    `cmd:"" help:"Serve the JSON API"`
	Cache    CacheCmd    `cmd:"" help:"Manage the OpenLibrary response cache"`
}

// CacheCmd groups cache maintenance subcommands
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Invalidate cached responses for a source"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(slog.LevelInfo)

	if err := initConfig(); err != nil {
		slog.Error("Fatal error config file", "error", err)
		os.Exit(1)
	}

	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("ook"),
		kong.Description("A personal library catalog with OpenLibrary enrichment and semantic search."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)
	applyLogLevel()

	if err := ctx.Run(&cli); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// initConfig registers defaults and reads config.yaml from the working
// directory, writing a default one on first run.
func initConfig() error {
	config.SetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		slog.Info("Config file not found, writing default config file...")
		if err := viper.SafeWriteConfig(); err != nil {
			slog.Warn("Error writing config file", "error", err)
		}
	}
	return nil
}

func updateGlobalConfig(cli *CLI) {
	if cli.DB != "" {
		viper.Set("db.path", cli.DB)
	}
	if cli.LogLevel != "" {
		viper.Set("log.level", cli.LogLevel)
	}
	if cli.CacheDBFile != "" {
		viper.Set("cache.dbfile", cli.CacheDBFile)
	}
	if cli.CacheTTL != "" {
		viper.Set("cache.ttl", cli.CacheTTL)
	}
}

func applyLogLevel() {
	level, err := parseLevel(viper.GetString("log.level"))
	if err != nil {
		slog.Warn("Ignoring log level", "error", err)
		return
	}
	initLogging(level)
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

func initLogging(level slog.Level) {
	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(logOutput, &humanlog.Options{
		Level: level,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}
