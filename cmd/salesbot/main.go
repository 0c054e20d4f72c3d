package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/api"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/flow"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/genai"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/lockfile"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/notify"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/scheduler"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/store"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for sales bot state data
	DefaultStateDir = "/var/lib/salesbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "salesbot.db"
	// DefaultConversationTTLDays is the conversation retention window in days
	DefaultConversationTTLDays = 30
	// DefaultLeadTTLDays is the lead retention window in days
	DefaultLeadTTLDays = 90
	// DefaultCleanupCron purges expired records hourly
	DefaultCleanupCron = "0 * * * *"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// SQLite is single-writer; refuse to start a second instance against
	// the same state directory.
	if *flags.storeBackend == "sqlite" {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	sched, err := startMaintenance(st, flags)
	if err != nil {
		slog.Error("Failed to start maintenance scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	genaiClient, err := buildGenAIClient(flags)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	dispatcher := buildDispatcher(st, flags)
	engine := flow.NewEngine(st, genaiClient,
		flow.WithNotifier(dispatcher),
		flow.WithConversationTTL(time.Duration(*flags.convTTLDays)*24*time.Hour),
	)

	server := api.NewServer(st, engine, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping sales bot", "backend", *flags.storeBackend, "api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("Sales bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Sales bot exited successfully")
}

// Config holds environment configuration
type Config struct {
	StoreBackend    string
	RedisURL        string
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	APIAddr         string
	WebhookURL      string
	SlackWebhookURL string
	DashboardURL    string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	TwilioTo        string
	ConvTTLDays     int
	LeadTTLDays     int
	CleanupCron     string
}

// Flags holds command line flag values
type Flags struct {
	storeBackend *string
	redisURL     *string
	dbDSN        *string
	stateDir     *string
	openaiKey    *string
	apiAddr      *string
	webhookURL   *string
	slackURL     *string
	dashboardURL *string
	twilioSID    *string
	twilioToken  *string
	twilioFrom   *string
	twilioTo     *string
	convTTLDays  *int
	leadTTLDays  *int
	cleanupCron  *string
}

// initializeLogger sets up structured logging. SALESBOT_DEBUG=true enables
// debug-level output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("SALESBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		StoreBackend:    os.Getenv("STORE_BACKEND"),
		RedisURL:        os.Getenv("REDIS_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("SALESBOT_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		WebhookURL:      os.Getenv("WEBHOOK_URL"),
		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		DashboardURL:    os.Getenv("DASHBOARD_URL"),
		TwilioSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:      os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioTo:        os.Getenv("TWILIO_NOTIFY_NUMBER"),
		ConvTTLDays:     util.ParseIntEnv("CONVERSATION_TTL_DAYS", DefaultConversationTTLDays),
		LeadTTLDays:     util.ParseIntEnv("LEAD_TTL_DAYS", DefaultLeadTTLDays),
		CleanupCron:     os.Getenv("CLEANUP_SCHEDULE"),
	}

	if config.CleanupCron == "" {
		config.CleanupCron = DefaultCleanupCron
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SALESBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Pick a backend from what is configured when none is named explicitly.
	if config.StoreBackend == "" {
		switch {
		case config.RedisURL != "":
			config.StoreBackend = "redis"
		case config.DatabaseURL != "":
			config.StoreBackend = "postgres"
		default:
			config.StoreBackend = "sqlite"
		}
		slog.Debug("No STORE_BACKEND set, inferred from configuration", "backend", config.StoreBackend)
	}

	slog.Debug("environment variables loaded",
		"STORE_BACKEND", config.StoreBackend,
		"REDIS_URL_SET", config.RedisURL != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SALESBOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"WEBHOOK_URL_SET", config.WebhookURL != "",
		"SLACK_WEBHOOK_URL_SET", config.SlackWebhookURL != "",
		"TWILIO_CONFIGURED", config.TwilioSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		storeBackend: flag.String("store-backend", config.StoreBackend, "store backend: redis, postgres, sqlite, or memory (overrides $STORE_BACKEND)"),
		redisURL:     flag.String("redis-url", config.RedisURL, "Redis connection URL (overrides $REDIS_URL)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "PostgreSQL DSN (overrides $DATABASE_URL)"),
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for SQLite data (overrides $SALESBOT_STATE_DIR)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		webhookURL:   flag.String("webhook-url", config.WebhookURL, "generic webhook URL for lead notifications (overrides $WEBHOOK_URL)"),
		slackURL:     flag.String("slack-webhook-url", config.SlackWebhookURL, "Slack incoming webhook URL (overrides $SLACK_WEBHOOK_URL)"),
		dashboardURL: flag.String("dashboard-url", config.DashboardURL, "dashboard base URL for Slack links (overrides $DASHBOARD_URL)"),
		twilioSID:    flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID for SMS notifications (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:  flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:   flag.String("twilio-from", config.TwilioFrom, "Twilio sender number (overrides $TWILIO_FROM_NUMBER)"),
		twilioTo:     flag.String("twilio-to", config.TwilioTo, "sales team number for SMS notifications (overrides $TWILIO_NOTIFY_NUMBER)"),
		convTTLDays:  flag.Int("conversation-ttl-days", config.ConvTTLDays, "conversation retention in days (overrides $CONVERSATION_TTL_DAYS)"),
		leadTTLDays:  flag.Int("lead-ttl-days", config.LeadTTLDays, "lead retention in days (overrides $LEAD_TTL_DAYS)"),
		cleanupCron:  flag.String("cleanup-schedule", config.CleanupCron, "cron schedule for expired record purges (overrides $CLEANUP_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"storeBackend", *flags.storeBackend,
		"redisURL_set", *flags.redisURL != "",
		"dbDSN_set", *flags.dbDSN != "",
		"stateDir", *flags.stateDir,
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"convTTLDays", *flags.convTTLDays,
		"leadTTLDays", *flags.leadTTLDays)

	return flags
}

// buildStore creates the configured store backend
func buildStore(flags Flags) (store.Store, error) {
	switch *flags.storeBackend {
	case "redis":
		if *flags.redisURL == "" {
			return nil, fmt.Errorf("redis backend selected but no Redis URL configured")
		}
		return store.NewRedisStore(store.WithRedisURL(*flags.redisURL))
	case "postgres":
		if *flags.dbDSN == "" {
			return nil, fmt.Errorf("postgres backend selected but no DSN configured")
		}
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	case "sqlite":
		path := filepath.Join(*flags.stateDir, DefaultDBFileName)
		return store.NewSQLiteStore(store.WithSQLitePath(path))
	case "memory":
		slog.Warn("Using in-memory store: state will not survive restarts")
		return store.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", *flags.storeBackend)
	}
}

// buildGenAIClient creates the generation client
func buildGenAIClient(flags Flags) (genai.ClientInterface, error) {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genai.NewClient(opts...)
}

// buildDispatcher wires the configured notification sinks
func buildDispatcher(st store.Store, flags Flags) *notify.Dispatcher {
	opts := []notify.DispatcherOption{
		notify.WithLeadTTL(time.Duration(*flags.leadTTLDays) * 24 * time.Hour),
	}

	if *flags.webhookURL != "" {
		opts = append(opts, notify.WithSink(notify.NewWebhookSink(*flags.webhookURL)))
		slog.Debug("Webhook sink configured")
	}
	if *flags.slackURL != "" {
		opts = append(opts, notify.WithSink(notify.NewSlackSink(*flags.slackURL, *flags.dashboardURL)))
		slog.Debug("Slack sink configured")
	}
	if *flags.twilioSID != "" && *flags.twilioToken != "" && *flags.twilioFrom != "" && *flags.twilioTo != "" {
		sms, err := notify.NewSMSSink(*flags.twilioSID, *flags.twilioToken, *flags.twilioFrom, *flags.twilioTo)
		if err != nil {
			slog.Warn("Skipping SMS sink", "error", err)
		} else {
			opts = append(opts, notify.WithSink(sms))
			slog.Debug("SMS sink configured")
		}
	}

	return notify.NewDispatcher(st, opts...)
}

// startMaintenance schedules the periodic purge of expired records. Redis
// expires keys natively; the SQL backends purge on the listing path, so
// the job just walks it.
func startMaintenance(st store.Store, flags Flags) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler()
	err := sched.AddJob(*flags.cleanupCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		conversations, err := st.ListConversations(ctx)
		if err != nil {
			slog.Warn("Maintenance purge failed", "error", err)
			return
		}
		slog.Debug("Maintenance purge complete", "live_conversations", len(conversations))
	})
	if err != nil {
		sched.Stop()
		return nil, err
	}
	return sched, nil
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
