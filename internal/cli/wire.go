package cli

import (
	"database/sql"
	"fmt"
	"time"

	"rosca_engine/internal/app"
	"rosca_engine/internal/infra/config"
	idb "rosca_engine/internal/infra/database"
	"rosca_engine/internal/infra/logger"
	"rosca_engine/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// components is everything a command needs, built once from configuration.
type components struct {
	cfg         *config.AppConfig
	db          *sql.DB
	cycles      *app.CycleEngine
	obligations *app.ObligationEngine
	ops         *app.OpsService
	bot         *telebot.Bot // nil when TELEGRAM_TOKEN is unset
}

func loadComponents() (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	log := logger.Component("main")
	log.WithFields(logrus.Fields{
		"environment":       cfg.Environment,
		"business_timezone": cfg.BusinessLocation.String(),
		"admin_id":          cfg.AdminTelegramID,
	}).Info("Configuration loaded")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	log.Info("Database connection established successfully.")

	cycleRepo := idb.NewPostgresCycleRepository(db)
	obligationRepo := idb.NewPostgresObligationRepository(db)
	runRepo := idb.NewPostgresRunReportRepository(db)

	var bot *telebot.Bot
	var alerter app.Alerter
	if cfg.TelegramToken != "" {
		bot, err = newBot(cfg.TelegramToken)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("could not create Telegram bot: %w", err)
		}
		alerter = telegram.NewRunAlerter(telegram.NewTelebotAdapter(bot), cfg.OpsTelegramChat)
		log.Info("Telegram ops alerts enabled.")
	} else {
		log.Warn("TELEGRAM_TOKEN not set, ops alerts and commands are disabled.")
	}

	reporter := app.NewReporter(runRepo, alerter, logger.Component("reporter"))

	return &components{
		cfg: cfg,
		db:  db,
		cycles: app.NewCycleEngine(
			cycleRepo,
			idb.NewPostgresPayoutExecutor(db),
			idb.NewPostgresAnnouncer(db),
			reporter,
			cfg.Policy,
			logger.Component("cycle_engine"),
		),
		obligations: app.NewObligationEngine(
			obligationRepo,
			idb.NewPostgresReputation(db),
			idb.NewPostgresReminders(db),
			reporter,
			cfg.Policy,
			cfg.BusinessLocation,
			logger.Component("obligation_engine"),
		),
		ops: app.NewOpsService(cycleRepo, runRepo, cfg.AdminTelegramID),
		bot: bot,
	}, nil
}

func newBot(token string) (*telebot.Bot, error) {
	botLog := logger.Component("telebot")
	return telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLog.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	})
}

func (c *components) Close() {
	if c.db != nil {
		c.db.Close()
	}
}
