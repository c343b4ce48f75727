package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	appkg "github.com/xenking/buzzer/internal/app"
	"github.com/xenking/buzzer/internal/event"
	"github.com/xenking/buzzer/internal/notify"
	"github.com/xenking/buzzer/internal/storage/postgres"
)

// Config holds the notifier configuration, loaded like the API server's.
type Config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (BUZZER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Events      event.Config
	Telegram    TelegramConfig
}

// TelegramConfig configures the bot that sends vendor messages.
type TelegramConfig struct {
	Token string `usage:"Telegram bot token" flag:"telegram-token"`
	Debug bool   `default:"false" usage:"log Telegram API calls" flag:"telegram-debug"`
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		var cfg Config
		if err := appkg.Load(&cfg, false); err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("database URL is required: set BUZZER_DATABASE_URL")
		}
		if cfg.Telegram.Token == "" {
			return errors.New("telegram token is required: set BUZZER_TELEGRAM_TOKEN")
		}
		return run(ctx, lg, m, cfg)
	})
}

func run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg Config) error {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return errors.Wrap(err, "create telegram bot")
	}
	bot.Debug = cfg.Telegram.Debug
	lg.Info("Authorized on Telegram", zap.String("bot", bot.Self.UserName))

	sub, err := event.NewSubscriber(ctx, cfg.Events, m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "create event subscriber")
	}
	defer func() {
		if err := sub.Close(); err != nil {
			lg.Warn("Close event subscriber", zap.Error(err))
		}
	}()

	n := notify.New(postgres.NewAccountRepository(postgres.NewDB(pool)), bot)

	lg.Info("Listening for order events", zap.String("driver", cfg.Events.Driver))
	if err := sub.Subscribe(ctx, n.Handle); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "subscribe")
	}
	return nil
}
