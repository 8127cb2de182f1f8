package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telegram-emotion-diary/internal/config"
	"telegram-emotion-diary/internal/conversation"
	"telegram-emotion-diary/internal/gateway"
	"telegram-emotion-diary/internal/handlers"
	"telegram-emotion-diary/internal/logger"
	"telegram-emotion-diary/internal/metrics"
	"telegram-emotion-diary/internal/scheduler"
	"telegram-emotion-diary/internal/session"
	"telegram-emotion-diary/internal/storage"
	"telegram-emotion-diary/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "diary-bot",
		Short:         "Telegram food and emotion diary",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Optional YAML config file; environment variables take precedence")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the reminder schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remind",
		Short: "Send the reminder to every registered user once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return remind(configPath)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("diary-bot %s (build: %s)\n", Version, BuildTime)
		},
	})
	return cmd
}

// setup loads the configuration and the logger; both are needed before anything can be reported.
func setup(configPath string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Dir)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

func openDB(ctx context.Context, cfg config.Config) (*storage.DB, error) {
	return storage.New(ctx, cfg.DatabaseURL, storage.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		QueryTimeout:    cfg.DB.QueryTimeout,
		Location:        cfg.Location,
	})
}

func newReminder(cfg config.Config, db *storage.DB, bot gateway.Sender, log *zap.Logger) *scheduler.Reminder {
	return &scheduler.Reminder{
		Users:        db,
		Bot:          bot,
		Log:          log.Named("reminder"),
		Concurrency:  cfg.Reminder.Concurrency,
		SendInterval: cfg.Reminder.SendInterval,
	}
}

func serve(configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg)
	utils.Must(err)

	tg, err := gateway.NewTelegram(cfg.TelegramToken, cfg.PollTimeout, log.Named("telegram"))
	utils.Must(err)

	engine := conversation.New(db, session.NewStore(), log.Named("conversation"), conversation.Options{
		Location: cfg.Location,
	})
	h := handlers.NewHandler(tg, engine, log.Named("handlers"))

	sch, err := scheduler.Start(ctx, newReminder(cfg, db, tg, log), scheduler.Schedule{
		Cron:     cfg.Reminder.Cron,
		Interval: cfg.Reminder.Interval,
		Location: cfg.Location,
	})
	utils.Must(err)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error("metrics listener", zap.Error(err))
			}
		}()
	}

	log.Info("bot started", zap.String("version", Version), zap.String("timezone", cfg.Location.String()))

	// Returns once polling has stopped and every queued update is handled.
	d := handlers.NewDispatcher(h.HandleUpdate, 0)
	d.Overflow = h.Busy
	d.Serve(ctx, tg)

	log.Info("shutting down")
	if err := sch.Shutdown(); err != nil {
		log.Warn("scheduler shutdown", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
	return nil
}

func remind(configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	tg, err := gateway.NewTelegram(cfg.TelegramToken, cfg.PollTimeout, log.Named("telegram"))
	if err != nil {
		return err
	}

	rep, err := newReminder(cfg, db, tg, log).Broadcast(ctx)
	log.Info("reminder broadcast finished",
		zap.Int("attempted", rep.Attempted),
		zap.Int("delivered", rep.Delivered),
		zap.Int("failed", rep.Failed),
	)
	return err
}
