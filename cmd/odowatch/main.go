package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kfujino/odowatch/internal/api"
	"github.com/kfujino/odowatch/internal/flow"
	"github.com/kfujino/odowatch/internal/line"
	"github.com/kfujino/odowatch/internal/lockfile"
	"github.com/kfujino/odowatch/internal/store"
	"github.com/kfujino/odowatch/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for odowatch state data.
	DefaultStateDir = "/var/lib/odowatch"
	// DefaultSnapshotFileName is the default session snapshot filename.
	DefaultSnapshotFileName = "sessions.json"
)

// Config holds environment configuration.
type Config struct {
	ChannelToken  string
	ChannelSecret string
	DatabaseURL   string
	StateDir      string
	APIAddr       string
	Debug         bool
}

// Flags holds command line flag values.
type Flags struct {
	channelToken  *string
	channelSecret *string
	dbDSN         *string
	stateDir      *string
	apiAddr       *string
}

func main() {
	config := loadEnvironmentConfig()
	initializeLogger(config.Debug)
	flags := parseCommandLineFlags(config)

	// Provider credentials are startup-fatal when absent.
	if *flags.channelToken == "" {
		slog.Error("LINE_CHANNEL_ACCESS_TOKEN is required")
		os.Exit(1)
	}
	if *flags.channelSecret == "" {
		slog.Error("LINE_CHANNEL_SECRET is required")
		os.Exit(1)
	}

	sessions, release, err := buildSessionStore(flags)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer release()

	client, err := line.NewClient(*flags.channelSecret, *flags.channelToken)
	if err != nil {
		slog.Error("Failed to initialize LINE client", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(flow.NewEngine(), sessions, client, client)
	server := api.NewServer(handler, api.WithAddr(*flags.apiAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping odowatch", "addr", *flags.apiAddr, "db_dsn_set", *flags.dbDSN != "")
	if err := server.Run(ctx); err != nil {
		slog.Error("odowatch failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("odowatch exited successfully")
}

// initializeLogger sets up structured logging.
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and an
// optional .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		ChannelToken:  os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		ChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      util.StringEnv("ODOWATCH_STATE_DIR", DefaultStateDir),
		APIAddr:       util.StringEnv("API_ADDR", api.DefaultAddr),
		Debug:         util.BoolEnv("ODOWATCH_DEBUG", false),
	}

	slog.Debug("environment variables loaded",
		"LINE_CHANNEL_ACCESS_TOKEN_SET", config.ChannelToken != "",
		"LINE_CHANNEL_SECRET_SET", config.ChannelSecret != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ODOWATCH_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment
// defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		channelToken:  flag.String("channel-token", config.ChannelToken, "LINE channel access token (overrides $LINE_CHANNEL_ACCESS_TOKEN)"),
		channelSecret: flag.String("channel-secret", config.ChannelSecret, "LINE channel secret (overrides $LINE_CHANNEL_SECRET)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the SQL session store (overrides $DATABASE_URL)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for the snapshot session store (overrides $ODOWATCH_STATE_DIR)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}
	flag.Parse()

	slog.Debug("flags parsed",
		"channelToken_set", *flags.channelToken != "",
		"channelSecret_set", *flags.channelSecret != "",
		"dbDSN_set", *flags.dbDSN != "",
		"stateDir", *flags.stateDir,
		"apiAddr", *flags.apiAddr)

	return flags
}

// buildSessionStore selects the store backend from the DSN: PostgreSQL or
// SQLite when a DSN is configured, otherwise the in-memory snapshot store in
// the state directory. The returned release function closes the store and
// any held state-directory lock.
func buildSessionStore(flags Flags) (store.SessionStore, func(), error) {
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL session store")
			st, err := store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
			if err != nil {
				return nil, nil, err
			}
			return st, closeStore(st), nil
		}
		slog.Debug("Detected SQLite DSN, configuring SQLite session store", "db_path", *flags.dbDSN)
		st, err := store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
		if err != nil {
			return nil, nil, err
		}
		return st, closeStore(st), nil
	}

	slog.Debug("No database DSN provided, using snapshot session store", "state_dir", *flags.stateDir)
	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewSnapshotStore(store.WithSnapshotPath(filepath.Join(*flags.stateDir, DefaultSnapshotFileName)))
	if err != nil {
		lock.Release()
		return nil, nil, err
	}
	return st, func() {
		closeStore(st)()
		lock.Release()
	}, nil
}

func closeStore(st store.SessionStore) func() {
	return func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close session store", "error", err)
		}
	}
}
