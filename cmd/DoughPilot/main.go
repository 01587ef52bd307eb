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

	"github.com/doughlab/DoughPilot/internal/alarm"
	"github.com/doughlab/DoughPilot/internal/alert"
	"github.com/doughlab/DoughPilot/internal/api"
	"github.com/doughlab/DoughPilot/internal/genai"
	"github.com/doughlab/DoughPilot/internal/lockfile"
	"github.com/doughlab/DoughPilot/internal/recovery"
	"github.com/doughlab/DoughPilot/internal/scheduler"
	"github.com/doughlab/DoughPilot/internal/session"
	"github.com/doughlab/DoughPilot/internal/sheets"
	"github.com/doughlab/DoughPilot/internal/store"
	"github.com/doughlab/DoughPilot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for DoughPilot state data
	DefaultStateDir = "/var/lib/doughpilot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "doughpilot.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow device database filename
	DefaultWhatsAppDBFileName = "whatsapp.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("DoughPilot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("DoughPilot exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseURL    string
	WhatsAppDSN    string
	WhatsAppTo     string
	SMSTo          string
	OpenAIKey      string
	APIAddr        string
	SheetTabs      string
	DisableSound   bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	waDSN        *string
	waTo         *string
	smsTo        *string
	qrOutput     *string
	numeric      *bool
	openaiKey    *string
	apiAddr      *string
	sheetTabs    *string
	disableSound *bool
}

// initializeLogger sets up structured logging. DOUGHPILOT_DEBUG=true raises
// the level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DOUGHPILOT_DEBUG", false) {
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
		StateDir:     os.Getenv("DOUGHPILOT_STATE_DIR"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
		WhatsAppTo:   os.Getenv("ALERT_WHATSAPP_TO"),
		SMSTo:        os.Getenv("ALERT_SMS_TO"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		SheetTabs:    os.Getenv("SHEET_TABS"),
		DisableSound: util.ParseBoolEnv("DOUGHPILOT_DISABLE_SOUND", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DOUGHPILOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	// Without a DATABASE_URL the session store defaults to SQLite in the
	// state directory.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DOUGHPILOT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"ALERT_WHATSAPP_TO_SET", config.WhatsAppTo != "",
		"ALERT_SMS_TO_SET", config.SMSTo != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"SHEET_TABS", config.SheetTabs,
		"DOUGHPILOT_DISABLE_SOUND", config.DisableSound)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for DoughPilot data (overrides $DOUGHPILOT_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		waDSN:        flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "device database DSN for WhatsApp alerts (overrides $WHATSAPP_DB_DSN)"),
		waTo:         flag.String("whatsapp-to", config.WhatsAppTo, "phone number receiving WhatsApp alerts (overrides $ALERT_WHATSAPP_TO)"),
		smsTo:        flag.String("sms-to", config.SMSTo, "phone number receiving SMS alerts (overrides $ALERT_SMS_TO)"),
		qrOutput:     flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:      flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for alarm message composition (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sheetTabs:    flag.String("sheet-tabs", config.SheetTabs, "spreadsheet tabs to load as gid:name pairs (overrides $SHEET_TABS)"),
		disableSound: flag.Bool("disable-sound", config.DisableSound, "disable the audible alarm (overrides $DOUGHPILOT_DISABLE_SOUND)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"waDSN_set", *flags.waDSN != "",
		"apiAddr", *flags.apiAddr,
		"sheetTabs", *flags.sheetTabs,
		"disableSound", *flags.disableSound)

	return flags
}

func run(flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	// The audible alarm is best-effort; headless hosts run without it.
	var sound *alert.Sound
	if !*flags.disableSound {
		sound, err = alert.NewSound()
		if err != nil {
			slog.Warn("Audio unavailable, running without audible alarm", "error", err)
			sound = nil
		}
	}

	notifier := selectNotifier(flags)
	composer := genai.NewComposer(genai.WithAPIKey(*flags.openaiKey))

	// The scheduler fires into the delivery handler, which needs the
	// manager, which needs the scheduler; the closure breaks the cycle.
	var handler *alarm.Handler
	sched := scheduler.New(func(stepIndex int) {
		handler.HandleFire(stepIndex)
	})
	defer sched.Stop()

	var managerOpts []session.Option
	if sound != nil {
		managerOpts = append(managerOpts, session.WithSilencer(sound))
	}
	manager := session.NewManager(st, sched, managerOpts...)

	handlerOpts := []alarm.Option{
		alarm.WithNotifier(notifier),
		alarm.WithComposer(composer),
	}
	if sound != nil {
		handlerOpts = append(handlerOpts, alarm.WithSound(sound))
	}
	handler = alarm.NewHandler(manager, handlerOpts...)

	coord := recovery.New(manager, sched, handler.HandleFire)
	if _, err := coord.RecoverOnStartup(); err != nil {
		return err
	}
	if err := coord.StartWatchdog(); err != nil {
		return err
	}
	defer coord.StopWatchdog()

	loader, err := buildLoader(*flags.sheetTabs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, manager, loader, apiOpts...)

	slog.Info("DoughPilot started", "state_dir", *flags.stateDir)
	return server.Run(ctx)
}

// openStore picks the store backend from the DSN shape.
func openStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Info("Using PostgreSQL session store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Info("Using SQLite session store", "path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// selectNotifier picks the outbound alert channel: WhatsApp when a device
// database and recipient are configured, then Twilio SMS, then the log.
func selectNotifier(flags Flags) alert.Notifier {
	if *flags.waDSN != "" && *flags.waTo != "" {
		opts := []alert.WhatsAppOption{
			alert.WithWhatsAppDBDSN(*flags.waDSN),
			alert.WithWhatsAppRecipient(*flags.waTo),
		}
		if *flags.qrOutput != "" {
			opts = append(opts, alert.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			opts = append(opts, alert.WithNumericCode())
		}
		n, err := alert.NewWhatsAppNotifier(opts...)
		if err != nil {
			slog.Warn("WhatsApp notifier unavailable, falling back", "error", err)
		} else {
			slog.Info("Alerts will be sent via WhatsApp")
			return n
		}
	}

	if *flags.smsTo != "" {
		n, err := alert.NewTwilioNotifier(alert.WithTwilioTo(*flags.smsTo))
		if err != nil {
			slog.Warn("Twilio notifier unavailable, falling back", "error", err)
		} else {
			slog.Info("Alerts will be sent via SMS")
			return n
		}
	}

	slog.Info("No messaging channel configured, alerts go to the log")
	return alert.NewLogNotifier()
}

// buildLoader configures the sheet loader from the gid:name tab list.
func buildLoader(tabs string) (*sheets.Loader, error) {
	if tabs == "" {
		return sheets.NewLoader(), nil
	}
	parsed, err := sheets.ParseTabs(tabs)
	if err != nil {
		return nil, err
	}
	return sheets.NewLoader(sheets.WithTabs(parsed)), nil
}
