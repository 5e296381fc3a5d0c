// Command iae-bot runs the I.aê WhatsApp assistant: transport, conversation
// engine, HTTP surface, and background jobs in one process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/iae-bsb/iae-bot/internal/api"
	"github.com/iae-bsb/iae-bot/internal/flow"
	"github.com/iae-bsb/iae-bot/internal/llm"
	"github.com/iae-bsb/iae-bot/internal/lockfile"
	"github.com/iae-bsb/iae-bot/internal/messaging"
	"github.com/iae-bsb/iae-bot/internal/metrics"
	"github.com/iae-bsb/iae-bot/internal/persona"
	"github.com/iae-bsb/iae-bot/internal/places"
	"github.com/iae-bsb/iae-bot/internal/ranking"
	"github.com/iae-bsb/iae-bot/internal/scheduler"
	"github.com/iae-bsb/iae-bot/internal/session"
	"github.com/iae-bsb/iae-bot/internal/speech"
	"github.com/iae-bsb/iae-bot/internal/sponsor"
	"github.com/iae-bsb/iae-bot/internal/store"
	"github.com/iae-bsb/iae-bot/internal/util"
	"github.com/iae-bsb/iae-bot/internal/whatsapp"
)

const (
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "iae-bot.db"
	// DefaultWhatsmeowDBFileName holds the whatsmeow session store.
	DefaultWhatsmeowDBFileName = "whatsmeow.db"
	// sweepCronExpr drives the inactive-session flag sweep.
	sweepCronExpr = "*/10 * * * *"
)

// Config holds environment configuration.
type Config struct {
	EvolutionURL      string `envconfig:"EVOLUTION_URL"`
	EvolutionAPIKey   string `envconfig:"EVOLUTION_API_KEY"`
	EvolutionInstance string `envconfig:"EVOLUTION_INSTANCE"`
	GoogleMapsKey     string `envconfig:"GOOGLE_MAPS_API_KEY"`
	GeminiKey         string `envconfig:"GEMINI_API_KEY"`
	GeminiModel       string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	OpenAIKey         string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel       string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	SpeechKey         string `envconfig:"GOOGLE_SPEECH_API_KEY"`
	DatabaseURL       string `envconfig:"DATABASE_URL"`
	StateDir          string `envconfig:"IAE_STATE_DIR" default:"/var/lib/iae-bot"`
	APIAddr           string `envconfig:"API_ADDR" default:":8080"`
	PublicDir         string `envconfig:"PUBLIC_DIR"`
}

// Flags holds command line flag values.
type Flags struct {
	stateDir  *string
	dbDSN     *string
	apiAddr   *string
	publicDir *string
	qrOutput  *string
	numeric   *bool
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(config, flags); err != nil {
		slog.Error("iae-bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("iae-bot exited successfully")
}

// initializeLogger sets up structured logging. Debug level is the default so
// conversation dispatch stays traceable in the field; IAE_DEBUG=false lowers
// it to info.
func initializeLogger() {
	level := slog.LevelDebug
	if !util.ParseBoolEnv("IAE_DEBUG", true) {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from the .env file and the
// environment.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		slog.Error("Failed to parse environment configuration", "error", err)
		os.Exit(1)
	}

	slog.Debug("environment variables loaded",
		"EVOLUTION_URL_SET", config.EvolutionURL != "",
		"EVOLUTION_INSTANCE", config.EvolutionInstance,
		"GOOGLE_MAPS_API_KEY_SET", config.GoogleMapsKey != "",
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GOOGLE_SPEECH_API_KEY_SET", config.SpeechKey != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"IAE_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment
// defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for bot data (overrides $IAE_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN for the relational store (overrides $DATABASE_URL)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		publicDir: flag.String("public-dir", config.PublicDir, "directory of static web chat assets (overrides $PUBLIC_DIR)"),
		qrOutput:  flag.String("qr-output", "", "path to write the WhatsApp login QR code"),
		numeric:   flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
	}
	flag.Parse()

	if *flags.dbDSN == "" {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", *flags.dbDSN)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric)

	return flags
}

func run(config Config, flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		return err
	}
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	sponsors, err := sponsor.Load(filepath.Join(*flags.stateDir, "sponsored.json"))
	if err != nil {
		return err
	}
	personas, err := persona.NewCache(filepath.Join(*flags.stateDir, "personas"))
	if err != nil {
		return err
	}
	sink, err := metrics.Load(filepath.Join(*flags.stateDir, "metrics.json"))
	if err != nil {
		return err
	}
	go sink.Run(ctx)

	placesClient, err := places.NewClient(places.WithAPIKey(config.GoogleMapsKey))
	if err != nil {
		return err
	}

	generator := buildGenerator(ctx, config)
	var scorer ranking.Scorer
	if generator != nil {
		scorer = &llm.RelevanceScorer{Generator: generator}
	}

	var transcriber speech.Transcriber
	if config.SpeechKey != "" {
		transcriber, err = speech.NewGoogle(speech.WithAPIKey(config.SpeechKey))
		if err != nil {
			return err
		}
	} else {
		slog.Warn("No speech API key configured, voice notes will be declined")
	}

	msgService, err := buildMessagingService(config, flags)
	if err != nil {
		return err
	}
	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	sessions := session.NewMemoryStore()

	engineDeps := flow.Deps{
		Sessions:    sessions,
		Sender:      msgService,
		Places:      placesClient,
		Sponsors:    sponsors,
		Personas:    personas,
		Store:       st,
		Telemetry:   sink,
		Generator:   generator,
		Scorer:      scorer,
		Transcriber: transcriber,
	}
	engine, err := flow.NewEngine(engineDeps)
	if err != nil {
		return err
	}

	// Pump inbound socket events when the transport delivers them directly;
	// the Evolution transport delivers through the webhook instead.
	if events := msgService.Events(); events != nil {
		go func() {
			for ev := range events {
				go engine.HandleEvent(ctx, ev)
			}
		}()
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(sweepCronExpr, func() {
		cleared := sessions.SweepInactive(time.Now(), session.InactivityWindow)
		if cleared > 0 {
			slog.Info("Swept inactive session flows", "cleared", cleared)
		}
	}); err != nil {
		return err
	}

	server, err := api.NewServer(api.Deps{
		Handler:   engine,
		Sessions:  sessions,
		Sponsors:  sponsors,
		Metrics:   sink,
		Store:     st,
		PublicDir: *flags.publicDir,
		Probes:    buildProbes(placesClient, generator),
		EngineForSender: func(sender flow.Sender) (*flow.Engine, error) {
			deps := engineDeps
			deps.Sender = sender
			return flow.NewEngine(deps)
		},
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(*flags.apiAddr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received, draining")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	if err := sink.Flush(); err != nil {
		slog.Error("Final metrics flush failed", "error", err)
	}
	return nil
}

// buildGenerator picks the configured LLM backend: Gemini first, OpenAI as
// the alternative, nil when neither key is present.
func buildGenerator(ctx context.Context, config Config) llm.Generator {
	if config.GeminiKey != "" {
		g, err := llm.NewGemini(ctx, config.GeminiKey, config.GeminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini, continuing without LLM", "error", err)
			return nil
		}
		slog.Info("LLM backend initialized", "backend", "gemini", "model", config.GeminiModel)
		return g
	}
	if config.OpenAIKey != "" {
		g, err := llm.NewOpenAI(config.OpenAIKey, config.OpenAIModel)
		if err != nil {
			slog.Error("Failed to initialize OpenAI, continuing without LLM", "error", err)
			return nil
		}
		slog.Info("LLM backend initialized", "backend", "openai", "model", config.OpenAIModel)
		return g
	}
	slog.Warn("No LLM key configured, conversational fallbacks will be scripted")
	return nil
}

// buildMessagingService selects the transport: the Evolution gateway when
// configured, otherwise a direct whatsmeow session.
func buildMessagingService(config Config, flags Flags) (messaging.Service, error) {
	if config.EvolutionURL != "" {
		slog.Info("Using Evolution API transport", "instance", config.EvolutionInstance)
		return messaging.NewEvolutionService(
			messaging.WithEvolutionBaseURL(config.EvolutionURL),
			messaging.WithEvolutionAPIKey(config.EvolutionAPIKey),
			messaging.WithEvolutionInstance(config.EvolutionInstance),
		)
	}

	slog.Info("Using direct whatsmeow transport")
	waOpts := []whatsapp.Option{
		whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, DefaultWhatsmeowDBFileName)),
	}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsmeowService(client), nil
}

// buildProbes assembles the live connectivity checks behind /tech/test.
func buildProbes(placesClient *places.Client, generator llm.Generator) map[string]func(ctx context.Context) error {
	probes := map[string]func(ctx context.Context) error{
		"places": func(ctx context.Context) error {
			_, err := placesClient.FindPlace(ctx, "Esplanada dos Ministérios Brasília")
			return err
		},
	}
	if generator != nil {
		probes["llm"] = func(ctx context.Context) error {
			_, err := generator.Generate(ctx, "Responda apenas: ok", "ping")
			return err
		}
	}
	return probes
}
