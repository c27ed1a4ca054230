package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/app"
	"github.com/napryag/clinic_booking_bot/pkg/config"
	"github.com/napryag/clinic_booking_bot/pkg/domain/bot/receiver"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/napryag/clinic_booking_bot/pkg/utils/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	// 1) Config
	cfg, err := config.LoadConfig("")
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Err(errs.New("failed to load config").Wrap(err)).Msg("config init")
		os.Exit(1)
	}

	// 2) Logger
	log := logger.New(cfg.LogLevel, os.Stdout)

	if cfg.BotToken == "" {
		log.Error().Msg("TG_TOKEN is not set")
		os.Exit(1)
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Error().Err(err).Msg("create bot api")
		os.Exit(1)
	}
	bot.Debug = false
	log.Info().Str("bot", bot.Self.UserName).Msg("authorized")

	// Context that ends on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3) Services
	services, err := app.New(ctx, cfg, app.Notifier(cfg, bot, log), log)
	if err != nil {
		log.Error().Err(err).Msg("services init")
		os.Exit(1)
	}
	defer services.Close()

	handler := receiver.New(bot, services.Wizard, services.Sessions, services.Appointments, receiver.Options{
		Window:       cfg.Window(),
		SupportPhone: cfg.Clinic.SupportPhone,
	}, log)

	srv := metricsServer(cfg, services)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 10
	updates := bot.GetUpdatesChan(u)

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down bot")
		// stops long polling, the updates channel closes and the loop below ends
		bot.StopReceivingUpdates()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	for update := range updates {
		handler.HandleUpdate(ctx, update)
	}
	log.Info().Msg("bot stopped")
}

func metricsServer(cfg *config.Config, services *app.App) *http.Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
