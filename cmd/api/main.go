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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/app"
	"github.com/napryag/clinic_booking_bot/pkg/config"
	"github.com/napryag/clinic_booking_bot/pkg/domain/appointments"
	"github.com/napryag/clinic_booking_bot/pkg/domain/web"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/napryag/clinic_booking_bot/pkg/utils/logger"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Err(errs.New("failed to load config").Wrap(err)).Msg("config init")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// staff notices go out only when the bot token is configured
	var notifier appointments.Notifier
	if cfg.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			log.Warn().Err(err).Msg("create bot api, notifications disabled")
		} else {
			notifier = app.Notifier(cfg, bot, log)
		}
	}

	services, err := app.New(ctx, cfg, notifier, log)
	if err != nil {
		log.Error().Err(err).Msg("services init")
		os.Exit(1)
	}
	defer services.Close()

	h := web.NewHandler(services.Wizard, services.Sessions, services.Appointments, cfg.Location(), services.Registry, log)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Int("port", cfg.HTTPPort).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("listen")
		os.Exit(1)
	}
	log.Info().Msg("api stopped")
}
