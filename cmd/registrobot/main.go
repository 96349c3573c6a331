// Command registrobot runs the conversational registration bot: it collects
// sales, patients, and expenses over a chat transport and appends each
// completed record to the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/vmoreyra/registrobot/internal/api"
	"github.com/vmoreyra/registrobot/internal/flow"
	"github.com/vmoreyra/registrobot/internal/messaging"
	"github.com/vmoreyra/registrobot/internal/store"
	"github.com/vmoreyra/registrobot/internal/telegram"
	"github.com/vmoreyra/registrobot/internal/twiliosms"
	"github.com/vmoreyra/registrobot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for registrobot state data
	DefaultStateDir = "/var/lib/registrobot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "registrobot.db"
	// TransportTelegram selects the Telegram long-poll transport
	TransportTelegram = "telegram"
	// TransportTwilio selects the Twilio SMS webhook transport
	TransportTwilio = "twilio"
)

// Config holds environment configuration
type Config struct {
	Transport     string
	BotToken      string
	DatabaseURL   string
	StateDir      string
	RedisAddr     string
	APIAddr       string
	StockTracking bool
}

// Flags holds command line flag values
type Flags struct {
	transport     *string
	botToken      *string
	dbDSN         *string
	stateDir      *string
	redisAddr     *string
	apiAddr       *string
	stockTracking *bool
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("registrobot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("registrobot exited successfully")
}

// initializeLogger sets up structured logging
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Transport:     os.Getenv("TRANSPORT"),
		BotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("REGISTROBOT_STATE_DIR"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		APIAddr:       os.Getenv("API_ADDR"),
		StockTracking: util.ParseBoolEnv("STOCK_TRACKING", true),
	}

	if config.Transport == "" {
		config.Transport = TransportTelegram
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No REGISTROBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"TRANSPORT", config.Transport,
		"TELEGRAM_BOT_TOKEN_SET", config.BotToken != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REGISTROBOT_STATE_DIR", config.StateDir,
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"API_ADDR", config.APIAddr,
		"STOCK_TRACKING", config.StockTracking)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		transport:     flag.String("transport", config.Transport, "chat transport: telegram or twilio (overrides $TRANSPORT)"),
		botToken:      flag.String("bot-token", config.BotToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN, Postgres URL or SQLite path (overrides $DATABASE_URL)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for registrobot data (overrides $REGISTROBOT_STATE_DIR)"),
		redisAddr:     flag.String("redis-addr", config.RedisAddr, "Redis address for shared sessions (overrides $REDIS_ADDR)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		stockTracking: flag.Bool("stock-tracking", config.StockTracking, "enable the stock-aware sale flow (overrides $STOCK_TRACKING)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"transport", *flags.transport,
		"botToken_set", *flags.botToken != "",
		"dbDSN_set", *flags.dbDSN != "",
		"stateDir", *flags.stateDir,
		"redisAddr_set", *flags.redisAddr != "",
		"apiAddr", *flags.apiAddr,
		"stockTracking", *flags.stockTracking)

	return flags
}

// buildStore selects the store backend from the DSN shape.
func buildStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildSessions selects the session backend: Redis when configured,
// in-memory otherwise.
func buildSessions(ctx context.Context, redisAddr string) (flow.SessionManager, error) {
	if redisAddr == "" {
		slog.Debug("No Redis address provided, using in-memory sessions")
		return flow.NewInMemorySessionManager(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	return flow.NewRedisSessionManager(ctx, client, flow.DefaultSessionTTL)
}

// errMissingBotToken makes the token a fatal startup condition, not a
// runtime error.
var errMissingBotToken = errors.New("TELEGRAM_BOT_TOKEN is required for the telegram transport")

// buildTransport constructs the configured messaging service. The inbound
// webhook handler is non-nil only for the Twilio transport.
func buildTransport(flags Flags) (messaging.Service, http.HandlerFunc, error) {
	switch *flags.transport {
	case TransportTelegram:
		if *flags.botToken == "" {
			return nil, nil, errMissingBotToken
		}
		client, err := telegram.NewClient(telegram.WithToken(*flags.botToken))
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewTelegramService(client), nil, nil
	case TransportTwilio:
		client, err := twiliosms.NewClient()
		if err != nil {
			return nil, nil, err
		}
		svc := messaging.NewTwilioService(client)
		return svc, svc.WebhookHandler, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", *flags.transport)
	}
}

func run(flags Flags) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := buildStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	sessions, err := buildSessions(ctx, *flags.redisAddr)
	if err != nil {
		return err
	}

	svc, webhook, err := buildTransport(flags)
	if err != nil {
		return err
	}

	controller := flow.NewController(sessions, st, svc, flow.WithStockTracking(*flags.stockTracking))

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	apiSrv := api.NewServer(st, webhook, apiOpts...)

	if err := svc.Start(ctx); err != nil {
		return err
	}

	// One dispatch loop: responses for a conversation are handled strictly
	// in arrival order, so no two handlers for a session ever overlap.
	go func() {
		for resp := range svc.Responses() {
			if err := controller.HandleResponse(ctx, resp); err != nil {
				slog.Error("dispatch failed", "error", err, "from", resp.From)
			}
		}
		slog.Debug("dispatch loop finished")
	}()

	go func() {
		if err := apiSrv.Start(); err != nil {
			slog.Error("api server stopped", "error", err)
		}
	}()

	slog.Info("registrobot running", "transport", *flags.transport, "stock_tracking", *flags.stockTracking)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutdown requested")
	cancel()
	if err := svc.Stop(); err != nil {
		slog.Error("failed to stop transport", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down api server", "error", err)
	}

	return nil
}
